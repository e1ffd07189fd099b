package services

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/danlang422/here-app/internal/models"
)

var validate = validator.New()

// ErrHasEnrollments blocks deleting a section that still has an active roster.
var ErrHasEnrollments = errors.New("cannot delete section with enrolled students")

// SectionInput is the validated admin form payload for creating or updating a
// section. Times are zero-padded 24-hour "HH:MM" in the school timezone.
type SectionInput struct {
	Name            string `validate:"required"`
	Type            string `validate:"required,oneof=in_person remote internship"`
	StartTime       string `validate:"required,datetime=15:04"`
	EndTime         string `validate:"required,datetime=15:04"`
	SchedulePattern string `validate:"required,oneof=every_day specific_days a_days b_days"`
	DaysOfWeek      []int  `validate:"dive,min=0,max=4"`

	PresenceEnabled   bool
	AttendanceEnabled bool
	TeacherID         uint

	ExpectedLat    *float64 `validate:"omitempty,latitude"`
	ExpectedLng    *float64 `validate:"omitempty,longitude"`
	GeofenceRadius *int     `validate:"omitempty,min=1"`
}

func (in *SectionInput) check() error {
	if err := validate.Struct(in); err != nil {
		return err
	}
	if in.SchedulePattern == models.PatternSpecificDays && len(in.DaysOfWeek) == 0 {
		return errors.New("specific_days schedule requires at least one weekday")
	}
	if in.SchedulePattern != models.PatternSpecificDays {
		// DaysOfWeek only means something for specific_days.
		in.DaysOfWeek = nil
	}
	return nil
}

func (in *SectionInput) apply(sec *models.Section) {
	sec.Name = in.Name
	sec.Type = in.Type
	sec.StartTime = in.StartTime
	sec.EndTime = in.EndTime
	sec.SchedulePattern = in.SchedulePattern
	sec.DaysOfWeek = models.FormatWeekdays(in.DaysOfWeek)
	sec.PresenceEnabled = in.PresenceEnabled
	sec.AttendanceEnabled = in.AttendanceEnabled
	sec.TeacherID = in.TeacherID
	sec.ExpectedLat = in.ExpectedLat
	sec.ExpectedLng = in.ExpectedLng
	sec.GeofenceRadius = in.GeofenceRadius
}

func CreateSection(gdb *gorm.DB, in SectionInput) (*models.Section, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	sec := models.Section{PublicID: uuid.NewString()}
	in.apply(&sec)
	if err := gdb.Create(&sec).Error; err != nil {
		return nil, err
	}
	return &sec, nil
}

func UpdateSection(gdb *gorm.DB, id uint, in SectionInput) (*models.Section, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	var sec models.Section
	if err := gdb.First(&sec, id).Error; err != nil {
		return nil, err
	}
	in.apply(&sec)
	if err := gdb.Save(&sec).Error; err != nil {
		return nil, err
	}
	return &sec, nil
}

// DeleteSection refuses while students are still actively enrolled.
func DeleteSection(gdb *gorm.DB, id uint) error {
	var n int64
	if err := gdb.Model(&models.Enrollment{}).
		Where("section_id = ? AND active = ?", id, true).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w (%d active)", ErrHasEnrollments, n)
	}
	return gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("section_id = ?", id).Delete(&models.Enrollment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Section{}, id).Error
	})
}
