package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/danlang422/here-app/internal/models"
)

// ErrEmailTaken means another user already owns the email address.
var ErrEmailTaken = errors.New("email already in use")

// UserInput is the validated admin form payload for creating or updating a
// user account.
type UserInput struct {
	FirstName string `validate:"required"`
	LastName  string `validate:"required"`
	Email     string `validate:"required,email"`
	Role      string `validate:"required,oneof=admin teacher student"`
}

func (in *UserInput) normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
}

func CreateUser(gdb *gorm.DB, in UserInput) (*models.User, error) {
	in.normalize()
	if err := validate.Struct(&in); err != nil {
		return nil, err
	}
	user := models.User{
		PublicID:  uuid.NewString(),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Role:      in.Role,
	}
	if err := gdb.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return &user, nil
}

func UpdateUser(gdb *gorm.DB, id uint, in UserInput) (*models.User, error) {
	in.normalize()
	if err := validate.Struct(&in); err != nil {
		return nil, err
	}
	var user models.User
	if err := gdb.First(&user, id).Error; err != nil {
		return nil, err
	}
	user.FirstName = in.FirstName
	user.LastName = in.LastName
	user.Email = in.Email
	user.Role = in.Role
	if err := gdb.Save(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return &user, nil
}

// ListUsers returns users ordered by name, optionally filtered to one role.
func ListUsers(gdb *gorm.DB, role string) ([]models.User, error) {
	q := gdb.Order("last_name, first_name, email")
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ImportUsersResult reports what a CSV import actually did.
type ImportUsersResult struct {
	Created int
	Skipped int // emails that already had an account
}

// ImportUsersCSV bulk-creates accounts from a CSV with first_name, last_name,
// email and role columns located by header name. Every row is validated before
// anything is applied and the inserts run in one transaction; rows whose email
// already has an account are skipped, so re-uploading a roster is harmless.
//
// Row validation problems come back in rowErrs with err nil; err is reserved
// for CSV/database failures.
func ImportUsersCSV(gdb *gorm.DB, r io.Reader) (res ImportUsersResult, rowErrs []string, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return res, []string{"CSV file is empty or invalid"}, nil
	}
	if err != nil {
		return res, nil, fmt.Errorf("read CSV header: %w", err)
	}

	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"first_name", "last_name", "email", "role"} {
		if _, ok := cols[required]; !ok {
			return res, []string{fmt.Sprintf("CSV must have a %q column", required)}, nil
		}
	}

	field := func(record []string, name string) string {
		if i := cols[name]; i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	var inputs []UserInput
	seenEmails := map[string]int{}
	row := 1
	for {
		record, rerr := cr.Read()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return res, nil, fmt.Errorf("read CSV row %d: %w", row+1, rerr)
		}
		row++

		in := UserInput{
			FirstName: field(record, "first_name"),
			LastName:  field(record, "last_name"),
			Email:     field(record, "email"),
			Role:      field(record, "role"),
		}
		in.normalize()
		if err := validate.Struct(&in); err != nil {
			rowErrs = append(rowErrs, fmt.Sprintf("Row %d: invalid user (need first_name, last_name, a valid email, and role admin/teacher/student)", row))
			continue
		}
		if prev, dup := seenEmails[in.Email]; dup {
			rowErrs = append(rowErrs, fmt.Sprintf("Row %d: duplicate email %q (also on row %d)", row, in.Email, prev))
			continue
		}
		seenEmails[in.Email] = row
		inputs = append(inputs, in)
	}

	if len(rowErrs) > 0 {
		return res, rowErrs, nil
	}
	if len(inputs) == 0 {
		return res, []string{"CSV file is empty or invalid"}, nil
	}

	err = gdb.Transaction(func(tx *gorm.DB) error {
		emails := make([]string, len(inputs))
		for i, in := range inputs {
			emails[i] = in.Email
		}
		var existing []models.User
		if err := tx.Where("email IN ?", emails).Find(&existing).Error; err != nil {
			return err
		}
		taken := make(map[string]bool, len(existing))
		for _, u := range existing {
			taken[u.Email] = true
		}

		var users []models.User
		for _, in := range inputs {
			if taken[in.Email] {
				res.Skipped++
				continue
			}
			users = append(users, models.User{
				PublicID:  uuid.NewString(),
				FirstName: in.FirstName,
				LastName:  in.LastName,
				Email:     in.Email,
				Role:      in.Role,
			})
		}
		if len(users) == 0 {
			return nil
		}
		if err := tx.Create(&users).Error; err != nil {
			return err
		}
		res.Created = len(users)
		return nil
	})
	if err != nil {
		return ImportUsersResult{}, nil, err
	}
	return res, nil, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
