package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Role values carried on User and on the active-role cookie.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

type User struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	PublicID  string `gorm:"uniqueIndex;size:36"` // UUID used in URLs
	FirstName string
	LastName  string
	Email     string `gorm:"uniqueIndex;not null"`
	Role      string // admin | teacher | student
}

func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Section types. Remote and internship sections require check-in/check-out;
// in-person sections support only the optional presence wave.
const (
	SectionInPerson   = "in_person"
	SectionRemote     = "remote"
	SectionInternship = "internship"
)

// Schedule patterns.
const (
	PatternEveryDay     = "every_day"
	PatternSpecificDays = "specific_days"
	PatternADays        = "a_days"
	PatternBDays        = "b_days"
)

type Section struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	PublicID string `gorm:"uniqueIndex;size:36"`
	Name     string `gorm:"not null"`
	Type     string // in_person | remote | internship

	// Wall-clock times in the school timezone, zero-padded "HH:MM".
	StartTime string
	EndTime   string

	SchedulePattern string
	DaysOfWeek      string // comma-joined weekday indices (Mon=0..Fri=4); only for specific_days

	PresenceEnabled   bool
	AttendanceEnabled bool

	TeacherID uint

	// Internship location for soft geofence verification.
	ExpectedLat    *float64
	ExpectedLng    *float64
	GeofenceRadius *int // meters
}

// RequiresCheckIn reports whether the section uses the check-in/check-out flow.
func (s Section) RequiresCheckIn() bool {
	return s.Type == SectionRemote || s.Type == SectionInternship
}

// Weekdays parses the stored DaysOfWeek list. Invalid entries were rejected at
// the boundary, so parse errors here are treated as "no days".
func (s Section) Weekdays() []int {
	days, err := ParseWeekdays(s.DaysOfWeek)
	if err != nil {
		return nil
	}
	return days
}

// ParseWeekdays validates a comma-joined weekday list. Indices are Mon=0
// through Fri=4; duplicates collapse and the result is sorted.
func ParseWeekdays(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	seen := make(map[int]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid weekday %q", part)
		}
		if n < 0 || n > 4 {
			return nil, fmt.Errorf("weekday %d out of range (0=Mon..4=Fri)", n)
		}
		seen[n] = struct{}{}
	}
	days := make([]int, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Ints(days)
	return days, nil
}

// FormatWeekdays is the inverse of ParseWeekdays.
func FormatWeekdays(days []int) string {
	if len(days) == 0 {
		return ""
	}
	sorted := append([]int(nil), days...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, d := range sorted {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

// Enrollment is a soft-deleted (student, section) link: unenrolling flips
// Active to false so a later re-enrollment reactivates the same row.
type Enrollment struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	SectionID uint `gorm:"uniqueIndex:idx_enroll_section_student"`
	StudentID uint `gorm:"uniqueIndex:idx_enroll_section_student"`

	Active     bool
	EnrolledAt time.Time
}

// A/B rotation designations stored on CalendarDay.
const (
	ADay = "a_day"
	BDay = "b_day"
)

// CalendarDay is an explicit override for one date. Dates with no row are
// default school days with no A/B designation.
type CalendarDay struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Date          string `gorm:"uniqueIndex;size:10"` // YYYY-MM-DD
	IsSchoolDay   bool
	ABDesignation string // a_day | b_day | ""
	Notes         string
}

// Attendance event types.
const (
	EventCheckIn  = "check_in"
	EventCheckOut = "check_out"
)

type AttendanceEvent struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time

	EventType string `gorm:"uniqueIndex:idx_att_student_section_date_type"`
	SectionID uint   `gorm:"uniqueIndex:idx_att_student_section_date_type"`
	StudentID uint   `gorm:"uniqueIndex:idx_att_student_section_date_type"`

	// EventDate is the school-timezone calendar date of the event; the unique
	// index over it enforces at most one check-in and one check-out per day.
	EventDate string `gorm:"uniqueIndex:idx_att_student_section_date_type;size:10"`
	Timestamp time.Time

	LocationLat      *float64
	LocationLng      *float64
	LocationVerified *bool // soft geofence result; nil when no location given
}

// Interaction types.
const (
	InteractionPresence       = "presence"
	InteractionPromptResponse = "prompt_response"
)

// Interaction holds both presence waves and the free-text prompt responses
// linked to an attendance event (plans at check-in, progress at check-out).
type Interaction struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time

	Type       string
	SectionID  uint
	AuthorID   uint
	AuthorRole string

	AttendanceEventID *uint // set only for prompt responses
	EventDate         string `gorm:"size:10"`
	Content           string
}

// Teacher-marked attendance statuses.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
	StatusExcused AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusExcused:
		return true
	default:
		return false
	}
}

// AttendanceRecord is the teacher-marked status for one student on one date,
// upserted on (student, section, date).
type AttendanceRecord struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	StudentID uint   `gorm:"uniqueIndex:idx_record_student_section_date"`
	SectionID uint   `gorm:"uniqueIndex:idx_record_student_section_date"`
	Date      string `gorm:"uniqueIndex:idx_record_student_section_date;size:10"`

	Status     string
	Notes      string
	MarkedByID uint
}
