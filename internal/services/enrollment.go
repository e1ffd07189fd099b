package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/danlang422/here-app/internal/models"
)

// EnrollResult reports what an enrollment request actually did.
type EnrollResult struct {
	Enrolled int // new rows plus reactivated rows
	Skipped  int // already actively enrolled
}

// EnrollStudents enrolls students into a section idempotently: already-active
// enrollments are skipped, soft-deleted rows are reactivated in place, and
// only genuinely new students get new rows.
func EnrollStudents(gdb *gorm.DB, sectionID uint, studentIDs []uint) (EnrollResult, error) {
	var res EnrollResult
	if len(studentIDs) == 0 {
		return res, nil
	}

	err := gdb.Transaction(func(tx *gorm.DB) error {
		var existing []models.Enrollment
		if err := tx.Where("section_id = ? AND student_id IN ?", sectionID, studentIDs).
			Find(&existing).Error; err != nil {
			return err
		}
		activeByStudent := make(map[uint]bool, len(existing))
		for _, e := range existing {
			activeByStudent[e.StudentID] = e.Active
		}

		now := time.Now()
		var newRows []models.Enrollment
		var reactivate []uint
		for _, studentID := range studentIDs {
			active, found := activeByStudent[studentID]
			switch {
			case !found:
				newRows = append(newRows, models.Enrollment{
					SectionID:  sectionID,
					StudentID:  studentID,
					Active:     true,
					EnrolledAt: now,
				})
			case !active:
				reactivate = append(reactivate, studentID)
			default:
				res.Skipped++
			}
		}

		if len(newRows) > 0 {
			if err := tx.Create(&newRows).Error; err != nil {
				return err
			}
		}
		if len(reactivate) > 0 {
			if err := tx.Model(&models.Enrollment{}).
				Where("section_id = ? AND student_id IN ?", sectionID, reactivate).
				Updates(map[string]interface{}{"active": true, "enrolled_at": now}).Error; err != nil {
				return err
			}
		}
		res.Enrolled = len(newRows) + len(reactivate)
		return nil
	})
	if err != nil {
		return EnrollResult{}, err
	}
	return res, nil
}

// UnenrollStudent soft-deletes the enrollment so history survives and a later
// re-enrollment reactivates the same row.
func UnenrollStudent(gdb *gorm.DB, sectionID, studentID uint) error {
	return gdb.Model(&models.Enrollment{}).
		Where("section_id = ? AND student_id = ?", sectionID, studentID).
		Update("active", false).Error
}

// EnrolledStudents lists the active roster for a section, oldest first.
func EnrolledStudents(gdb *gorm.DB, sectionID uint) ([]models.User, error) {
	var students []models.User
	err := gdb.Joins("JOIN enrollments ON enrollments.student_id = users.id").
		Where("enrollments.section_id = ? AND enrollments.active = ?", sectionID, true).
		Order("enrollments.enrolled_at").
		Find(&students).Error
	return students, err
}
