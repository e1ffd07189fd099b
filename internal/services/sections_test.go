package services

import (
	"errors"
	"testing"

	"github.com/danlang422/here-app/internal/models"
)

func validInput() SectionInput {
	return SectionInput{
		Name:            "Remote Work",
		Type:            models.SectionRemote,
		StartTime:       "09:00",
		EndTime:         "11:00",
		SchedulePattern: models.PatternEveryDay,
	}
}

func TestCreateSection_Valid(t *testing.T) {
	gdb := openTestDB(t)

	sec, err := CreateSection(gdb, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sec.PublicID == "" {
		t.Error("expected a generated public id")
	}
	if sec.DaysOfWeek != "" {
		t.Errorf("every_day section should have no weekday list, got %q", sec.DaysOfWeek)
	}
}

func TestCreateSection_SpecificDaysRequiresWeekdays(t *testing.T) {
	gdb := openTestDB(t)

	in := validInput()
	in.SchedulePattern = models.PatternSpecificDays
	if _, err := CreateSection(gdb, in); err == nil {
		t.Error("specific_days with no weekdays should be rejected")
	}

	in.DaysOfWeek = []int{0, 2}
	sec, err := CreateSection(gdb, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sec.DaysOfWeek != "0,2" {
		t.Errorf("weekday list: got %q, want \"0,2\"", sec.DaysOfWeek)
	}
}

// TestUpdateSection_ClearsWeekdays: switching a section off specific_days
// drops the stale weekday list.
func TestUpdateSection_ClearsWeekdays(t *testing.T) {
	gdb := openTestDB(t)

	in := validInput()
	in.SchedulePattern = models.PatternSpecificDays
	in.DaysOfWeek = []int{1, 3}
	sec, err := CreateSection(gdb, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	in.SchedulePattern = models.PatternADays
	updated, err := UpdateSection(gdb, sec.ID, in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.DaysOfWeek != "" {
		t.Errorf("weekday list should clear on pattern change, got %q", updated.DaysOfWeek)
	}
}

func TestCreateSection_Invalid(t *testing.T) {
	gdb := openTestDB(t)

	cases := []struct {
		name   string
		mutate func(*SectionInput)
	}{
		{"missing name", func(in *SectionInput) { in.Name = "" }},
		{"bad type", func(in *SectionInput) { in.Type = "hybrid" }},
		{"bad start time", func(in *SectionInput) { in.StartTime = "9am" }},
		{"bad pattern", func(in *SectionInput) { in.SchedulePattern = "weekly" }},
		{"weekday out of range", func(in *SectionInput) {
			in.SchedulePattern = models.PatternSpecificDays
			in.DaysOfWeek = []int{5}
		}},
	}
	for _, tc := range cases {
		in := validInput()
		tc.mutate(&in)
		if _, err := CreateSection(gdb, in); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestDeleteSection_BlockedByEnrollments(t *testing.T) {
	gdb := openTestDB(t)

	sec, err := CreateSection(gdb, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	student := models.User{PublicID: "stu-del", Email: "del@school.test", Role: models.RoleStudent}
	gdb.Create(&student)
	if _, err := EnrollStudents(gdb, sec.ID, []uint{student.ID}); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	err = DeleteSection(gdb, sec.ID)
	if !errors.Is(err, ErrHasEnrollments) {
		t.Errorf("want ErrHasEnrollments, got %v", err)
	}

	// After unenrolling (soft delete) the section can go, taking its
	// historical enrollment rows with it.
	if err := UnenrollStudent(gdb, sec.ID, student.ID); err != nil {
		t.Fatalf("unenroll: %v", err)
	}
	if err := DeleteSection(gdb, sec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var n int64
	gdb.Model(&models.Section{}).Count(&n)
	if n != 0 {
		t.Errorf("section should be gone, %d remain", n)
	}
}
