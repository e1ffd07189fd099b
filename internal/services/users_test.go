package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/danlang422/here-app/internal/models"
)

func TestCreateUser_Valid(t *testing.T) {
	gdb := openTestDB(t)

	user, err := CreateUser(gdb, UserInput{
		FirstName: "Dana", LastName: "Lang",
		Email: " Dana@School.Test ", Role: "Teacher",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.PublicID == "" {
		t.Error("expected a generated public id")
	}
	if user.Email != "dana@school.test" {
		t.Errorf("email should normalize to lowercase, got %q", user.Email)
	}
	if user.Role != models.RoleTeacher {
		t.Errorf("role should normalize, got %q", user.Role)
	}
}

func TestCreateUser_Invalid(t *testing.T) {
	gdb := openTestDB(t)

	cases := []struct {
		name string
		in   UserInput
	}{
		{"missing name", UserInput{Email: "a@school.test", Role: "student"}},
		{"bad email", UserInput{FirstName: "A", LastName: "B", Email: "not-an-email", Role: "student"}},
		{"bad role", UserInput{FirstName: "A", LastName: "B", Email: "a@school.test", Role: "mentor"}},
	}
	for _, tc := range cases {
		if _, err := CreateUser(gdb, tc.in); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestCreateUser_EmailTaken(t *testing.T) {
	gdb := openTestDB(t)

	in := UserInput{FirstName: "A", LastName: "B", Email: "dup@school.test", Role: "student"}
	if _, err := CreateUser(gdb, in); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := CreateUser(gdb, in)
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("want ErrEmailTaken, got %v", err)
	}
}

func TestUpdateUser_ChangesRole(t *testing.T) {
	gdb := openTestDB(t)

	user, err := CreateUser(gdb, UserInput{
		FirstName: "A", LastName: "B", Email: "promote@school.test", Role: "student",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	updated, err := UpdateUser(gdb, user.ID, UserInput{
		FirstName: "A", LastName: "B", Email: "promote@school.test", Role: "teacher",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Role != models.RoleTeacher {
		t.Errorf("role after update: got %q", updated.Role)
	}
	if updated.PublicID != user.PublicID {
		t.Error("public id should be stable across updates")
	}
}

func TestListUsers_RoleFilter(t *testing.T) {
	gdb := openTestDB(t)

	for _, in := range []UserInput{
		{FirstName: "S", LastName: "One", Email: "s1@school.test", Role: "student"},
		{FirstName: "S", LastName: "Two", Email: "s2@school.test", Role: "student"},
		{FirstName: "T", LastName: "One", Email: "t1@school.test", Role: "teacher"},
	} {
		if _, err := CreateUser(gdb, in); err != nil {
			t.Fatalf("create %s: %v", in.Email, err)
		}
	}

	students, err := ListUsers(gdb, models.RoleStudent)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(students) != 2 {
		t.Errorf("students: want 2, got %d", len(students))
	}
	all, _ := ListUsers(gdb, "")
	if len(all) != 3 {
		t.Errorf("all: want 3, got %d", len(all))
	}
}

func TestImportUsersCSV_CreatesAndSkips(t *testing.T) {
	gdb := openTestDB(t)
	if _, err := CreateUser(gdb, UserInput{
		FirstName: "Already", LastName: "Here", Email: "here@school.test", Role: "student",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Columns out of order, mixed-case header and role.
	csv := "email,Role,first_name,last_name\n" +
		"new@school.test,Student,New,Kid\n" +
		"here@school.test,student,Already,Here\n" +
		"teach@school.test,TEACHER,New,Teacher\n"
	res, rowErrs, err := ImportUsersCSV(gdb, strings.NewReader(csv))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(rowErrs) != 0 {
		t.Fatalf("unexpected row errors: %v", rowErrs)
	}
	if res.Created != 2 || res.Skipped != 1 {
		t.Errorf("result: %+v, want 2 created 1 skipped", res)
	}

	var n int64
	gdb.Model(&models.User{}).Count(&n)
	if n != 3 {
		t.Errorf("want 3 users total, got %d", n)
	}
}

// TestImportUsersCSV_AllOrNothing: one bad row rejects the whole batch.
func TestImportUsersCSV_AllOrNothing(t *testing.T) {
	gdb := openTestDB(t)

	csv := "first_name,last_name,email,role\n" +
		"Good,Row,good@school.test,student\n" +
		"Bad,Role,bad@school.test,mentor\n" +
		"Dup,Email,good@school.test,student\n"
	res, rowErrs, err := ImportUsersCSV(gdb, strings.NewReader(csv))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Created != 0 {
		t.Errorf("created: want 0, got %d", res.Created)
	}
	if len(rowErrs) != 2 {
		t.Fatalf("want 2 row errors, got %d: %v", len(rowErrs), rowErrs)
	}
	if !strings.Contains(rowErrs[0], "Row 3") {
		t.Errorf("first error should flag row 3: %q", rowErrs[0])
	}
	if !strings.Contains(rowErrs[1], "Row 4") || !strings.Contains(rowErrs[1], "duplicate") {
		t.Errorf("second error should flag row 4's duplicate email: %q", rowErrs[1])
	}

	var n int64
	gdb.Model(&models.User{}).Count(&n)
	if n != 0 {
		t.Errorf("nothing should be applied, got %d users", n)
	}
}

func TestImportUsersCSV_MissingColumns(t *testing.T) {
	gdb := openTestDB(t)

	_, rowErrs, err := ImportUsersCSV(gdb, strings.NewReader("first_name,email\nA,a@school.test\n"))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(rowErrs) != 1 || !strings.Contains(rowErrs[0], "last_name") {
		t.Errorf("want missing-column error, got %v", rowErrs)
	}
}
