package web

import (
	"html/template"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/danlang422/here-app/internal/handlers"
	"github.com/danlang422/here-app/internal/models"
)

func Router(loc *time.Location) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	tmpl := mustParseTemplates("templates", loc)

	// Public pages
	r.Get("/", handlers.Home(tmpl))
	r.Get("/healthz", handlers.Health)
	r.Get("/login", handlers.LoginForm(tmpl))
	r.Post("/login", handlers.LoginSubmit)
	r.Get("/logout", handlers.Logout)
	r.Post("/switch-role", handlers.SwitchRole)

	// Section QR images
	r.Get("/qr/{code}.png", handlers.SectionQR)

	// --- Student agenda ---
	r.Group(func(sr chi.Router) {
		sr.Use(handlers.RequireRole(models.RoleStudent))
		sr.Get("/student/agenda", handlers.StudentAgenda(tmpl))
		sr.Post("/student/sections/{id}/wave", handlers.StudentWave)
		sr.Post("/student/sections/{id}/checkin", handlers.StudentCheckIn)
		sr.Post("/student/sections/{id}/checkout", handlers.StudentCheckOut)
	})

	// --- Teacher view ---
	r.Group(func(tr chi.Router) {
		tr.Use(handlers.RequireRole(models.RoleTeacher))
		tr.Get("/teacher/agenda", handlers.TeacherAgenda(tmpl))
		tr.Post("/teacher/sections/{id}/attendance", handlers.TeacherSaveAttendance)
	})

	// --- Admin routes (with login + guard) ---
	r.Route("/admin", func(ar chi.Router) {
		// Auth endpoints (public)
		ar.Get("/login", handlers.AdminLoginForm(tmpl))
		ar.Post("/login", handlers.AdminLoginSubmit)
		ar.Post("/logout", handlers.AdminLogout)

		// Guarded admin pages
		ar.Group(func(ag chi.Router) {
			ag.Use(handlers.RequireAdmin)

			// Calendar
			ag.Get("/calendar", handlers.AdminCalendar(tmpl))
			ag.Post("/calendar/upload", handlers.AdminCalendarUpload)
			ag.Post("/calendar/dayoff", handlers.AdminMarkDayOff)
			ag.Post("/calendar/dayoff/remove", handlers.AdminUnmarkDayOff)

			// Sections
			ag.Get("/sections", handlers.AdminSections(tmpl))
			ag.Get("/sections/new", handlers.AdminNewSection(tmpl))
			ag.Post("/sections", handlers.AdminCreateSection)
			ag.Get("/sections/{id}/edit", handlers.AdminEditSectionForm(tmpl))
			ag.Post("/sections/{id}", handlers.AdminUpdateSection)
			ag.Post("/sections/{id}/delete", handlers.AdminDeleteSection)
			ag.Post("/sections/{id}/enroll", handlers.AdminEnrollStudents)
			ag.Post("/sections/{id}/unenroll", handlers.AdminUnenrollStudent)

			// Users
			ag.Get("/users", handlers.AdminUsers(tmpl))
			ag.Post("/users", handlers.AdminCreateUser)
			ag.Post("/users/upload", handlers.AdminUsersUpload)
			ag.Get("/users/{id}/edit", handlers.AdminEditUserForm(tmpl))
			ag.Post("/users/{id}", handlers.AdminUpdateUser)
		})
	})

	return r
}

func mustParseTemplates(baseDir string, loc *time.Location) *template.Template {
	if loc == nil {
		loc = time.Local
	}

	funcs := template.FuncMap{
		"year":     func() string { return time.Now().Format("2006") },
		"fmtDate":  func(t time.Time) string { return t.In(loc).Format("Mon, 02 Jan 2006") },
		"isoDate":  func(t time.Time) string { return t.In(loc).Format("2006-01-02") },
		"fmtClock": func(t time.Time) string { return t.In(loc).Format("3:04 PM") },
	}

	p := template.New("").Funcs(funcs)
	for _, sub := range []string{"layouts", "partials"} {
		pattern := filepath.Join(baseDir, sub, "*.tmpl")
		if matches, _ := filepath.Glob(pattern); len(matches) > 0 {
			p = template.Must(p.ParseGlob(pattern))
		}
	}
	return p
}
