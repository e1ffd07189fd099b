package attendance

import (
	"errors"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/danlang422/here-app/internal/clock"
	"github.com/danlang422/here-app/internal/logger"
	"github.com/danlang422/here-app/internal/models"
)

// Business-rule violations come back as these values, never as panics; handlers
// branch with errors.Is and turn them into flash messages.
var (
	ErrSectionNotFound   = errors.New("section not found")
	ErrPresenceDisabled  = errors.New("presence waves not enabled for this section")
	ErrNoCheckInRequired = errors.New("this section does not require check-in")
	ErrAlreadyCheckedIn  = errors.New("already checked in today")
	ErrAlreadyCheckedOut = errors.New("already checked out today")
	ErrNotCheckedIn      = errors.New("must check in before checking out")
)

// GeoPoint is a student-supplied location at check-in.
type GeoPoint struct {
	Lat float64
	Lng float64
}

// RecordPresenceWave inserts an "I'm here" interaction for today. Repeated
// waves insert repeated rows; only the UI debounces them.
func RecordPresenceWave(gdb *gorm.DB, clk clock.Clock, studentID, sectionID uint, mood string) (*models.Interaction, error) {
	var sec models.Section
	if err := gdb.First(&sec, sectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSectionNotFound
		}
		return nil, err
	}
	if !sec.PresenceEnabled {
		return nil, ErrPresenceDisabled
	}

	if mood == "" {
		mood = "👋"
	}
	wave := models.Interaction{
		Type:       models.InteractionPresence,
		SectionID:  sectionID,
		AuthorID:   studentID,
		AuthorRole: models.RoleStudent,
		EventDate:  clk.Today(),
		Content:    mood,
	}
	if err := gdb.Create(&wave).Error; err != nil {
		return nil, err
	}
	return &wave, nil
}

// RecordCheckIn records today's check-in for a remote or internship section and
// stores the plans prompt response against it. Internship locations get a soft
// geofence verification that is logged but never blocks the check-in.
func RecordCheckIn(gdb *gorm.DB, clk clock.Clock, studentID, sectionID uint, plans string, loc *GeoPoint) (*models.AttendanceEvent, error) {
	var sec models.Section
	if err := gdb.First(&sec, sectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSectionNotFound
		}
		return nil, err
	}
	if !sec.RequiresCheckIn() {
		return nil, ErrNoCheckInRequired
	}

	today := clk.Today()
	exists, err := hasEvent(gdb, studentID, sectionID, today, models.EventCheckIn)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyCheckedIn
	}

	event := models.AttendanceEvent{
		EventType: models.EventCheckIn,
		SectionID: sectionID,
		StudentID: studentID,
		EventDate: today,
		Timestamp: clk.Now(),
	}
	if sec.Type == models.SectionInternship && loc != nil {
		verified := withinGeofence(sec, *loc)
		event.LocationLat = &loc.Lat
		event.LocationLng = &loc.Lng
		event.LocationVerified = &verified
		if !verified {
			logger.Log.WithFields(map[string]interface{}{
				"student_id": studentID,
				"section_id": sectionID,
			}).Info("check-in location outside geofence (soft verification)")
		}
	}

	if err := gdb.Create(&event).Error; err != nil {
		// Two concurrent submits can both pass the existence check; the
		// unique index turns the loser into the already-done case.
		if isUniqueViolation(err) {
			return nil, ErrAlreadyCheckedIn
		}
		return nil, err
	}

	if err := createPromptResponse(gdb, &event, plans); err != nil {
		// The check-in itself stands even when storing the plans fails.
		logger.Log.WithError(err).Warn("failed to store check-in plans")
	}
	return &event, nil
}

// RecordCheckOut records today's check-out and the progress prompt response.
// A same-day check-in must exist first; there is no closing time.
func RecordCheckOut(gdb *gorm.DB, clk clock.Clock, studentID, sectionID uint, progress string) (*models.AttendanceEvent, error) {
	var sec models.Section
	if err := gdb.First(&sec, sectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSectionNotFound
		}
		return nil, err
	}

	today := clk.Today()
	out, err := hasEvent(gdb, studentID, sectionID, today, models.EventCheckOut)
	if err != nil {
		return nil, err
	}
	if out {
		return nil, ErrAlreadyCheckedOut
	}
	in, err := hasEvent(gdb, studentID, sectionID, today, models.EventCheckIn)
	if err != nil {
		return nil, err
	}
	if !in {
		return nil, ErrNotCheckedIn
	}

	event := models.AttendanceEvent{
		EventType: models.EventCheckOut,
		SectionID: sectionID,
		StudentID: studentID,
		EventDate: today,
		Timestamp: clk.Now(),
	}
	if err := gdb.Create(&event).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyCheckedOut
		}
		return nil, err
	}

	if err := createPromptResponse(gdb, &event, progress); err != nil {
		logger.Log.WithError(err).Warn("failed to store check-out progress")
	}
	return &event, nil
}

// Status is the per-day hydration the agenda pages and the eligibility inputs
// are built from.
type Status struct {
	HasCheckedIn  bool
	HasCheckedOut bool
	HasWaved      bool

	Plans    string
	Progress string

	CheckInAt       *time.Time
	CheckOutAt      *time.Time
	CheckInVerified *bool
	WaveMood        string
}

// GetStatus reads a student's events and prompt responses for one section/date.
func GetStatus(gdb *gorm.DB, studentID, sectionID uint, date string) (Status, error) {
	var st Status

	var events []models.AttendanceEvent
	if err := gdb.Where("student_id = ? AND section_id = ? AND event_date = ?",
		studentID, sectionID, date).Find(&events).Error; err != nil {
		return st, err
	}
	for i := range events {
		ev := events[i]
		switch ev.EventType {
		case models.EventCheckIn:
			st.HasCheckedIn = true
			ts := ev.Timestamp
			st.CheckInAt = &ts
			st.CheckInVerified = ev.LocationVerified
			st.Plans = promptContent(gdb, ev.ID)
		case models.EventCheckOut:
			st.HasCheckedOut = true
			ts := ev.Timestamp
			st.CheckOutAt = &ts
			st.Progress = promptContent(gdb, ev.ID)
		}
	}

	var wave models.Interaction
	err := gdb.Where("author_id = ? AND section_id = ? AND event_date = ? AND type = ?",
		studentID, sectionID, date, models.InteractionPresence).
		Order("created_at").First(&wave).Error
	if err == nil {
		st.HasWaved = true
		st.WaveMood = wave.Content
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return st, err
	}
	return st, nil
}

func hasEvent(gdb *gorm.DB, studentID, sectionID uint, date, eventType string) (bool, error) {
	var n int64
	err := gdb.Model(&models.AttendanceEvent{}).
		Where("student_id = ? AND section_id = ? AND event_date = ? AND event_type = ?",
			studentID, sectionID, date, eventType).
		Count(&n).Error
	return n > 0, err
}

func createPromptResponse(gdb *gorm.DB, event *models.AttendanceEvent, content string) error {
	if content == "" {
		return nil
	}
	eventID := event.ID
	return gdb.Create(&models.Interaction{
		Type:              models.InteractionPromptResponse,
		SectionID:         event.SectionID,
		AuthorID:          event.StudentID,
		AuthorRole:        models.RoleStudent,
		AttendanceEventID: &eventID,
		EventDate:         event.EventDate,
		Content:           content,
	}).Error
}

func promptContent(gdb *gorm.DB, eventID uint) string {
	var resp models.Interaction
	err := gdb.Where("attendance_event_id = ? AND type = ?", eventID, models.InteractionPromptResponse).
		First(&resp).Error
	if err != nil {
		return ""
	}
	return resp.Content
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// withinGeofence reports whether the point falls inside the section's
// registered radius. Sections with no registered location verify trivially.
func withinGeofence(sec models.Section, p GeoPoint) bool {
	if sec.ExpectedLat == nil || sec.ExpectedLng == nil || sec.GeofenceRadius == nil {
		return true
	}
	d := haversineMeters(*sec.ExpectedLat, *sec.ExpectedLng, p.Lat, p.Lng)
	return d <= float64(*sec.GeofenceRadius)
}

func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadius = 6371000.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(a))
}
