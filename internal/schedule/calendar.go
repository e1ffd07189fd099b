package schedule

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/danlang422/here-app/internal/models"
)

// DayInfo is the resolved school status of one calendar date.
type DayInfo struct {
	IsSchoolDay   bool
	ABDesignation string // a_day | b_day | ""
}

// Resolve looks up the explicit calendar row for date (YYYY-MM-DD). Dates with
// no row are default school days with no A/B designation; only an explicit
// is_school_day=false row marks a day off.
func Resolve(gdb *gorm.DB, date string) (DayInfo, error) {
	var day models.CalendarDay
	err := gdb.Where("date = ?", date).First(&day).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DayInfo{IsSchoolDay: true}, nil
	}
	if err != nil {
		return DayInfo{}, err
	}
	return DayInfo{IsSchoolDay: day.IsSchoolDay, ABDesignation: day.ABDesignation}, nil
}

// MarkDayOff upserts an explicit day-off row for the date.
func MarkDayOff(gdb *gorm.DB, date string) error {
	var existing models.CalendarDay
	err := gdb.Where("date = ?", date).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return gdb.Create(&models.CalendarDay{
			Date:        date,
			IsSchoolDay: false,
			Notes:       "Day off",
		}).Error
	}
	if err != nil {
		return err
	}
	existing.IsSchoolDay = false
	existing.ABDesignation = ""
	existing.Notes = "Day off"
	return gdb.Save(&existing).Error
}

// UnmarkDayOff deletes the explicit row for the date, reverting it to the
// default school day.
func UnmarkDayOff(gdb *gorm.DB, date string) error {
	return gdb.Where("date = ?", date).Delete(&models.CalendarDay{}).Error
}

// ListDays returns calendar rows ordered by date, optionally bounded.
func ListDays(gdb *gorm.DB, from, to string) ([]models.CalendarDay, error) {
	q := gdb.Order("date")
	if from != "" {
		q = q.Where("date >= ?", from)
	}
	if to != "" {
		q = q.Where("date <= ?", to)
	}
	var days []models.CalendarDay
	if err := q.Find(&days).Error; err != nil {
		return nil, err
	}
	return days, nil
}

var dateRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ImportCalendarCSV replaces the entire calendar from a CSV of
// date,day_type rows where day_type is A, B, or OFF (case-insensitive).
// Columns are located by header name, every row is validated before anything
// is applied, and on success the delete-all + insert-all runs in a single
// transaction so a failed import never leaves an empty calendar behind.
//
// Row validation problems come back in rowErrs with err nil; err is reserved
// for CSV/database failures.
func ImportCalendarCSV(gdb *gorm.DB, r io.Reader) (imported int, rowErrs []string, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return 0, []string{"CSV file is empty or invalid"}, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("read CSV header: %w", err)
	}

	dateIdx, typeIdx := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date":
			dateIdx = i
		case "day_type":
			typeIdx = i
		}
	}
	if dateIdx == -1 || typeIdx == -1 {
		return 0, []string{`CSV must have "date" and "day_type" columns`}, nil
	}

	var days []models.CalendarDay
	row := 1
	for {
		record, rerr := cr.Read()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return 0, nil, fmt.Errorf("read CSV row %d: %w", row+1, rerr)
		}
		row++

		var date, dayType string
		if dateIdx < len(record) {
			date = strings.TrimSpace(record[dateIdx])
		}
		if typeIdx < len(record) {
			dayType = strings.ToUpper(strings.TrimSpace(record[typeIdx]))
		}

		if !dateRE.MatchString(date) {
			rowErrs = append(rowErrs, fmt.Sprintf("Row %d: invalid date format %q (expected YYYY-MM-DD)", row, date))
			continue
		}

		day := models.CalendarDay{Date: date, IsSchoolDay: true}
		switch dayType {
		case "A":
			day.ABDesignation = models.ADay
		case "B":
			day.ABDesignation = models.BDay
		case "OFF":
			day.IsSchoolDay = false
			day.Notes = "Day off"
		default:
			rowErrs = append(rowErrs, fmt.Sprintf("Row %d: invalid day_type %q (expected A, B, or off)", row, dayType))
			continue
		}
		days = append(days, day)
	}

	if len(rowErrs) > 0 {
		return 0, rowErrs, nil
	}
	if len(days) == 0 {
		return 0, []string{"CSV file is empty or invalid"}, nil
	}

	err = gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.CalendarDay{}).Error; err != nil {
			return err
		}
		return tx.Create(&days).Error
	})
	if err != nil {
		return 0, nil, err
	}
	return len(days), nil, nil
}
