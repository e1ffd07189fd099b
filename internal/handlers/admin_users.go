package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/danlang422/here-app/internal/db"
	"github.com/danlang422/here-app/internal/logger"
	"github.com/danlang422/here-app/internal/models"
	"github.com/danlang422/here-app/internal/services"
)

type usersVM struct {
	Title  string
	Users  []models.User
	Role   string // active role filter
	Errors []string
	Flash  *Flash
}

// GET /admin/users?role=student
func AdminUsers(t *template.Template) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := strings.TrimSpace(r.URL.Query().Get("role"))
		users, err := services.ListUsers(db.Conn(), role)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		view, _ := t.Clone()
		_, _ = view.ParseFiles("templates/pages/admin/users.tmpl")
		_ = view.ExecuteTemplate(w, "admin/users.tmpl", usersVM{
			Title:  "Admin • Users",
			Users:  users,
			Role:   role,
			Errors: r.URL.Query()["import_error"],
			Flash:  MakeFlash(r, "", ""),
		})
	}
}

type userFormVM struct {
	Title string
	User  *models.User
	Flash *Flash
}

// GET /admin/users/{id}/edit
func AdminEditUserForm(t *template.Template) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFromPath(w, r)
		if !ok {
			return
		}
		view, _ := t.Clone()
		_, _ = view.ParseFiles("templates/pages/admin/user_form.tmpl")
		_ = view.ExecuteTemplate(w, "admin/user_form.tmpl", userFormVM{
			Title: "Admin • User",
			User:  user,
			Flash: MakeFlash(r, "", ""),
		})
	}
}

// POST /admin/users
func AdminCreateUser(w http.ResponseWriter, r *http.Request) {
	in, ok := parseUserForm(w, r)
	if !ok {
		return
	}
	if _, err := services.CreateUser(db.Conn(), in); err != nil {
		http.Redirect(w, r, "/admin/users?error="+url.QueryEscape(userErrKey(err)), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/admin/users?ok=user_saved", http.StatusSeeOther)
}

// POST /admin/users/{id}
func AdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromPath(w, r)
	if !ok {
		return
	}
	in, ok := parseUserForm(w, r)
	if !ok {
		return
	}
	if _, err := services.UpdateUser(db.Conn(), user.ID, in); err != nil {
		http.Redirect(w, r,
			"/admin/users/"+strconv.FormatUint(uint64(user.ID), 10)+"/edit?error="+url.QueryEscape(userErrKey(err)),
			http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/admin/users?ok=user_saved", http.StatusSeeOther)
}

// POST /admin/users/upload — CSV bulk create. Row errors reject the whole file
// and ride back on the redirect; already-registered emails are skipped.
func AdminUsersUpload(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Redirect(w, r, "/admin/users?error=bad_upload", http.StatusSeeOther)
		return
	}
	defer file.Close()

	res, rowErrs, err := services.ImportUsersCSV(db.Conn(), file)
	if err != nil {
		http.Redirect(w, r, "/admin/users?error="+url.QueryEscape("Import failed: "+err.Error()), http.StatusSeeOther)
		return
	}
	if len(rowErrs) > 0 {
		q := url.Values{}
		q.Set("error", "Users not imported; fix the rows below and retry.")
		for _, e := range rowErrs {
			q.Add("import_error", e)
		}
		http.Redirect(w, r, "/admin/users?"+q.Encode(), http.StatusSeeOther)
		return
	}
	logger.Log.WithFields(map[string]interface{}{
		"created": res.Created,
		"skipped": res.Skipped,
	}).Info("users imported")
	http.Redirect(w, r, "/admin/users?ok=users_imported", http.StatusSeeOther)
}

func userFromPath(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	var user models.User
	if err := db.Conn().First(&user, uint(id)).Error; err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	return &user, true
}

func parseUserForm(w http.ResponseWriter, r *http.Request) (services.UserInput, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), 400)
		return services.UserInput{}, false
	}
	return services.UserInput{
		FirstName: r.FormValue("first_name"),
		LastName:  r.FormValue("last_name"),
		Email:     r.FormValue("email"),
		Role:      r.FormValue("role"),
	}, true
}

func userErrKey(err error) string {
	if errors.Is(err, services.ErrEmailTaken) {
		return "email_taken"
	}
	return "invalid_user"
}
