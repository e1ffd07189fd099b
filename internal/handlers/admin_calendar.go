package handlers

import (
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/danlang422/here-app/internal/db"
	"github.com/danlang422/here-app/internal/logger"
	"github.com/danlang422/here-app/internal/models"
	"github.com/danlang422/here-app/internal/schedule"
)

type calendarVM struct {
	Title  string
	Days   []models.CalendarDay
	From   string
	To     string
	Errors []string
	Flash  *Flash
}

// GET /admin/calendar
func AdminCalendar(t *template.Template) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from := strings.TrimSpace(r.URL.Query().Get("from"))
		to := strings.TrimSpace(r.URL.Query().Get("to"))
		days, err := schedule.ListDays(db.Conn(), from, to)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		view, _ := t.Clone()
		_, _ = view.ParseFiles("templates/pages/admin/calendar.tmpl")
		_ = view.ExecuteTemplate(w, "admin/calendar.tmpl", calendarVM{
			Title:  "Admin • Calendar",
			Days:   days,
			From:   from,
			To:     to,
			Errors: r.URL.Query()["import_error"],
			Flash:  MakeFlash(r, "", ""),
		})
	}
}

// POST /admin/calendar/upload — CSV full replace. Any row error rejects the
// whole file; the per-row messages ride back on the redirect.
func AdminCalendarUpload(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Redirect(w, r, "/admin/calendar?error=bad_upload", http.StatusSeeOther)
		return
	}
	defer file.Close()

	imported, rowErrs, err := schedule.ImportCalendarCSV(db.Conn(), file)
	if err != nil {
		http.Redirect(w, r, "/admin/calendar?error="+url.QueryEscape("Import failed: "+err.Error()), http.StatusSeeOther)
		return
	}
	if len(rowErrs) > 0 {
		q := url.Values{}
		q.Set("error", "Calendar not imported; fix the rows below and retry.")
		for _, e := range rowErrs {
			q.Add("import_error", e)
		}
		http.Redirect(w, r, "/admin/calendar?"+q.Encode(), http.StatusSeeOther)
		return
	}
	logger.Log.WithField("rows", imported).Info("calendar imported")
	http.Redirect(w, r, "/admin/calendar?ok=imported", http.StatusSeeOther)
}

// POST /admin/calendar/dayoff
func AdminMarkDayOff(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	date := strings.TrimSpace(r.FormValue("date"))
	if !isoDateRE.MatchString(date) {
		http.Redirect(w, r, "/admin/calendar?error=invalid_date", http.StatusSeeOther)
		return
	}
	if err := schedule.MarkDayOff(db.Conn(), date); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	http.Redirect(w, r, "/admin/calendar?ok=day_off", http.StatusSeeOther)
}

// POST /admin/calendar/dayoff/remove
func AdminUnmarkDayOff(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	date := strings.TrimSpace(r.FormValue("date"))
	if !isoDateRE.MatchString(date) {
		http.Redirect(w, r, "/admin/calendar?error=invalid_date", http.StatusSeeOther)
		return
	}
	if err := schedule.UnmarkDayOff(db.Conn(), date); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	http.Redirect(w, r, "/admin/calendar?ok=day_restored", http.StatusSeeOther)
}
