package attendance

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/danlang422/here-app/internal/models"
)

var ErrNotAssigned = errors.New("you are not assigned to this section")

// MarkEntry is one student's teacher-marked status for a date. An empty status
// means "unmarked": any existing record for that student is cleared.
type MarkEntry struct {
	StudentID uint
	Status    string
	Notes     string
}

// SaveAttendance upserts teacher-marked attendance for a section and date.
// Records conflict on (student, section, date) and update in place; entries
// with an empty status delete instead. Returns the number of saved records.
func SaveAttendance(gdb *gorm.DB, teacherID, sectionID uint, date string, entries []MarkEntry) (int, error) {
	var sec models.Section
	if err := gdb.First(&sec, sectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrSectionNotFound
		}
		return 0, err
	}
	if sec.TeacherID != teacherID {
		return 0, ErrNotAssigned
	}

	var toSave []models.AttendanceRecord
	var toClear []uint
	for _, e := range entries {
		status := strings.TrimSpace(e.Status)
		if status == "" {
			toClear = append(toClear, e.StudentID)
			continue
		}
		if !models.AttendanceStatus(status).Valid() {
			return 0, errors.New("invalid attendance status " + status)
		}
		toSave = append(toSave, models.AttendanceRecord{
			StudentID:  e.StudentID,
			SectionID:  sectionID,
			Date:       date,
			Status:     status,
			Notes:      e.Notes,
			MarkedByID: teacherID,
		})
	}

	err := gdb.Transaction(func(tx *gorm.DB) error {
		if len(toSave) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "student_id"}, {Name: "section_id"}, {Name: "date"},
				},
				DoUpdates: clause.AssignmentColumns([]string{"status", "notes", "marked_by_id", "updated_at"}),
			}).Create(&toSave).Error; err != nil {
				return err
			}
		}
		if len(toClear) > 0 {
			if err := tx.Where("section_id = ? AND date = ? AND student_id IN ?",
				sectionID, date, toClear).
				Delete(&models.AttendanceRecord{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(toSave), nil
}

// RecordsFor returns the marked records for a section/date keyed by student.
func RecordsFor(gdb *gorm.DB, sectionID uint, date string) (map[uint]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	if err := gdb.Where("section_id = ? AND date = ?", sectionID, date).
		Find(&records).Error; err != nil {
		return nil, err
	}
	byStudent := make(map[uint]models.AttendanceRecord, len(records))
	for _, rec := range records {
		byStudent[rec.StudentID] = rec
	}
	return byStudent, nil
}
