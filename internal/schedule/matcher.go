package schedule

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/danlang422/here-app/internal/models"
)

// ActiveSections returns the sections active for a person on date, ordered by
// start time. Students match their active enrollments, teachers the sections
// they are assigned to. An explicit day off empties the result regardless of
// pattern.
func ActiveSections(gdb *gorm.DB, personID uint, role string, date string) ([]models.Section, error) {
	day, err := Resolve(gdb, date)
	if err != nil {
		return nil, err
	}
	if !day.IsSchoolDay {
		return nil, nil
	}

	weekday, err := weekdayIndex(date)
	if err != nil {
		return nil, err
	}

	var candidates []models.Section
	switch role {
	case models.RoleTeacher:
		if err := gdb.Where("teacher_id = ?", personID).Find(&candidates).Error; err != nil {
			return nil, err
		}
	default:
		if err := gdb.Joins("JOIN enrollments ON enrollments.section_id = sections.id").
			Where("enrollments.student_id = ? AND enrollments.active = ?", personID, true).
			Find(&candidates).Error; err != nil {
			return nil, err
		}
	}

	active := candidates[:0]
	for _, sec := range candidates {
		if matches(sec, day, weekday) {
			active = append(active, sec)
		}
	}

	// Lexical compare is correct for zero-padded 24-hour "HH:MM" times.
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].StartTime < active[j].StartTime
	})
	return active, nil
}

func matches(sec models.Section, day DayInfo, weekday int) bool {
	switch sec.SchedulePattern {
	case models.PatternEveryDay:
		return true
	case models.PatternSpecificDays:
		if weekday < 0 { // weekends never match
			return false
		}
		for _, d := range sec.Weekdays() {
			if d == weekday {
				return true
			}
		}
		return false
	case models.PatternADays:
		return day.ABDesignation == models.ADay
	case models.PatternBDays:
		return day.ABDesignation == models.BDay
	}
	return false
}

// weekdayIndex maps a YYYY-MM-DD date to the Mon=0..Fri=4 index used by
// specific_days sections, or -1 for weekends.
func weekdayIndex(date string) (int, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", date, err)
	}
	switch wd := t.Weekday(); wd {
	case time.Saturday, time.Sunday:
		return -1, nil
	default:
		return int(wd) - 1, nil
	}
}
