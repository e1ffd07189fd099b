package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/danlang422/here-app/internal/db"
	"github.com/danlang422/here-app/internal/models"
)

const (
	userCookieName = "user_id"
	roleCookieName = "active_role"
)

func setSessionCookies(w http.ResponseWriter, publicID, role string) {
	expires := time.Now().Add(24 * time.Hour)
	http.SetCookie(w, &http.Cookie{
		Name:     userCookieName,
		Value:    publicID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     roleCookieName,
		Value:    role,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
}

func clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{userCookieName, roleCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:    name,
			Value:   "",
			Path:    "/",
			Expires: time.Unix(0, 0),
			MaxAge:  -1,
		})
	}
}

// currentUser resolves the signed-in user from the session cookie.
func currentUser(r *http.Request) (*models.User, error) {
	c, err := r.Cookie(userCookieName)
	if err != nil || c.Value == "" {
		return nil, errors.New("no session")
	}
	var user models.User
	if err := db.Conn().Where("public_id = ?", c.Value).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// activeRole is the cookie-carried role the user is currently acting as. It is
// resolved here once and passed into core functions as a plain argument; the
// core never reads ambient state. A user can never act above their own role.
func activeRole(r *http.Request, user *models.User) string {
	c, err := r.Cookie(roleCookieName)
	if err != nil || c.Value == "" {
		return user.Role
	}
	switch c.Value {
	case models.RoleStudent:
		return models.RoleStudent
	case models.RoleTeacher:
		if user.Role == models.RoleTeacher || user.Role == models.RoleAdmin {
			return models.RoleTeacher
		}
	case models.RoleAdmin:
		if user.Role == models.RoleAdmin {
			return models.RoleAdmin
		}
	}
	return user.Role
}

// RequireRole is middleware: blocks access unless a session cookie resolves to
// a known user whose active role matches. Acting in the wrong role routes to
// that role's home instead of erroring.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := currentUser(r)
			if err != nil {
				http.Redirect(w, r, "/login?next="+r.URL.RequestURI(), http.StatusSeeOther)
				return
			}
			if acting := activeRole(r, user); acting != role {
				http.Redirect(w, r, homeFor(acting), http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GET /login
func LoginForm(t *template.Template) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := t.Clone()
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if _, err := view.ParseFiles("templates/pages/login.tmpl"); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		_ = view.ExecuteTemplate(w, "login.tmpl", map[string]any{
			"Title": "Here • Sign in",
			"Next":  r.URL.Query().Get("next"),
			"Flash": MakeFlash(r, "", ""),
		})
	}
}

// POST /login — email gate; identity only, the admin area has its own password.
func LoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	email := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	if email == "" {
		http.Redirect(w, r, "/login?error=Email+is+required", http.StatusSeeOther)
		return
	}

	var user models.User
	err := db.Conn().Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Redirect(w, r, "/login?error=Unknown+email", http.StatusSeeOther)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	setSessionCookies(w, user.PublicID, user.Role)
	next := r.FormValue("next")
	if next == "" {
		next = homeFor(user.Role)
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// GET /logout
func Logout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookies(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// POST /switch-role?role=teacher
func SwitchRole(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	role := r.URL.Query().Get("role")
	if role == "" {
		_ = r.ParseForm()
		role = r.FormValue("role")
	}
	setSessionCookies(w, user.PublicID, role)

	// Re-resolve through the same downgrade rules before routing.
	r.AddCookie(&http.Cookie{Name: roleCookieName, Value: role})
	http.Redirect(w, r, homeFor(activeRole(r, user)), http.StatusSeeOther)
}

func homeFor(role string) string {
	switch role {
	case models.RoleAdmin:
		return "/admin/sections"
	case models.RoleTeacher:
		return "/teacher/agenda"
	default:
		return "/student/agenda"
	}
}
