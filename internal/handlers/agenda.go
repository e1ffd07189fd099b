package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/danlang422/here-app/internal/attendance"
	"github.com/danlang422/here-app/internal/db"
	"github.com/danlang422/here-app/internal/logger"
	"github.com/danlang422/here-app/internal/models"
	"github.com/danlang422/here-app/internal/schedule"
)

var isoDateRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type agendaRow struct {
	Section models.Section
	Status  attendance.Status

	RequiresCheckIn bool
	PresenceOnly    bool

	CanWave     bool
	CanCheckIn  bool
	CanCheckOut bool

	WaveHint    string
	CheckInHint string

	CheckInStr  string
	CheckOutStr string
}

type agendaVM struct {
	Title string
	Date  string
	Today string
	Rows  []agendaRow
	Day   schedule.DayInfo
	Flash *Flash
}

// GET /student/agenda?date=YYYY-MM-DD
func StudentAgenda(t *template.Template) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := currentUser(r)
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		date := agendaDate(r)
		day, err := schedule.Resolve(db.Conn(), date)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		sections, err := schedule.ActiveSections(db.Conn(), user.ID, models.RoleStudent, date)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		now := Clock.Now()
		rows := make([]agendaRow, 0, len(sections))
		for _, sec := range sections {
			st, err := attendance.GetStatus(db.Conn(), user.ID, sec.ID, date)
			if err != nil {
				http.Error(w, err.Error(), 500)
				return
			}

			row := agendaRow{
				Section:         sec,
				Status:          st,
				RequiresCheckIn: sec.RequiresCheckIn(),
				PresenceOnly:    sec.PresenceEnabled && !sec.RequiresCheckIn(),
			}

			if row.PresenceOnly && !st.HasWaved {
				d := schedule.CheckAction(sec, schedule.ActionWave, now, date)
				row.CanWave = d.Allowed
				row.WaveHint = d.Reason
			}
			if row.RequiresCheckIn && !st.HasCheckedIn {
				d := schedule.CheckAction(sec, schedule.ActionCheckIn, now, date)
				row.CanCheckIn = d.Allowed
				row.CheckInHint = d.Reason
			}
			if row.RequiresCheckIn && st.HasCheckedIn && !st.HasCheckedOut {
				d := schedule.CheckAction(sec, schedule.ActionCheckOut, now, date)
				row.CanCheckOut = d.Allowed
			}
			if st.CheckInAt != nil {
				row.CheckInStr = fmtClock(*st.CheckInAt)
			}
			if st.CheckOutAt != nil {
				row.CheckOutStr = fmtClock(*st.CheckOutAt)
			}
			rows = append(rows, row)
		}

		view, _ := t.Clone()
		_, _ = view.ParseFiles("templates/pages/student/agenda.tmpl")
		_ = view.ExecuteTemplate(w, "student/agenda.tmpl", agendaVM{
			Title: "Here • Agenda",
			Date:  date,
			Today: Clock.Today(),
			Rows:  rows,
			Day:   day,
			Flash: MakeFlash(r, "", ""),
		})
	}
}

// POST /student/sections/{id}/wave
func StudentWave(w http.ResponseWriter, r *http.Request) {
	user, sec, date, ok := agendaAction(w, r)
	if !ok {
		return
	}
	if d := schedule.CheckAction(*sec, schedule.ActionWave, Clock.Now(), date); !d.Allowed {
		redirectAgenda(w, r, date, "error", d.Reason)
		return
	}
	mood := strings.TrimSpace(r.FormValue("mood"))
	if _, err := attendance.RecordPresenceWave(db.Conn(), Clock, user.ID, sec.ID, mood); err != nil {
		redirectAgenda(w, r, date, "error", flashKeyFor(err))
		return
	}
	redirectAgenda(w, r, date, "ok", "waved")
}

// POST /student/sections/{id}/checkin
func StudentCheckIn(w http.ResponseWriter, r *http.Request) {
	user, sec, date, ok := agendaAction(w, r)
	if !ok {
		return
	}
	if d := schedule.CheckAction(*sec, schedule.ActionCheckIn, Clock.Now(), date); !d.Allowed {
		redirectAgenda(w, r, date, "error", d.Reason)
		return
	}

	plans := strings.TrimSpace(r.FormValue("plans"))
	var loc *attendance.GeoPoint
	lat, latErr := strconv.ParseFloat(r.FormValue("lat"), 64)
	lng, lngErr := strconv.ParseFloat(r.FormValue("lng"), 64)
	if latErr == nil && lngErr == nil {
		loc = &attendance.GeoPoint{Lat: lat, Lng: lng}
	}

	if _, err := attendance.RecordCheckIn(db.Conn(), Clock, user.ID, sec.ID, plans, loc); err != nil {
		redirectAgenda(w, r, date, "error", flashKeyFor(err))
		return
	}
	redirectAgenda(w, r, date, "ok", "checked_in")
}

// POST /student/sections/{id}/checkout
func StudentCheckOut(w http.ResponseWriter, r *http.Request) {
	user, sec, date, ok := agendaAction(w, r)
	if !ok {
		return
	}
	if d := schedule.CheckAction(*sec, schedule.ActionCheckOut, Clock.Now(), date); !d.Allowed {
		redirectAgenda(w, r, date, "error", d.Reason)
		return
	}
	progress := strings.TrimSpace(r.FormValue("progress"))
	if _, err := attendance.RecordCheckOut(db.Conn(), Clock, user.ID, sec.ID, progress); err != nil {
		redirectAgenda(w, r, date, "error", flashKeyFor(err))
		return
	}
	redirectAgenda(w, r, date, "ok", "checked_out")
}

// agendaAction does the shared plumbing for the three POST actions.
func agendaAction(w http.ResponseWriter, r *http.Request) (*models.User, *models.Section, string, bool) {
	user, err := currentUser(r)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return nil, nil, "", false
	}
	_ = r.ParseForm()

	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return nil, nil, "", false
	}
	var sec models.Section
	if err := db.Conn().First(&sec, uint(id)).Error; err != nil {
		http.NotFound(w, r)
		return nil, nil, "", false
	}

	date := strings.TrimSpace(r.FormValue("date"))
	if date == "" {
		date = Clock.Today()
	}
	if !isoDateRE.MatchString(date) {
		redirectAgenda(w, r, Clock.Today(), "error", "invalid_date")
		return nil, nil, "", false
	}
	return user, &sec, date, true
}

func agendaDate(r *http.Request) string {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if isoDateRE.MatchString(date) {
		return date
	}
	return Clock.Today()
}

func redirectAgenda(w http.ResponseWriter, r *http.Request, date, kind, value string) {
	http.Redirect(w, r,
		"/student/agenda?date="+date+"&"+kind+"="+url.QueryEscape(value),
		http.StatusSeeOther)
}

// flashKeyFor maps domain errors onto flash keys; anything unexpected shows a
// generic failure and keeps the detail in the logs.
func flashKeyFor(err error) string {
	switch {
	case errors.Is(err, attendance.ErrSectionNotFound):
		return "section_not_found"
	case errors.Is(err, attendance.ErrPresenceDisabled):
		return "presence_disabled"
	case errors.Is(err, attendance.ErrNoCheckInRequired):
		return "no_checkin"
	case errors.Is(err, attendance.ErrAlreadyCheckedIn):
		return "already_in"
	case errors.Is(err, attendance.ErrAlreadyCheckedOut):
		return "already_out"
	case errors.Is(err, attendance.ErrNotCheckedIn):
		return "not_checked_in"
	default:
		logger.Log.WithError(err).Error("agenda action failed")
		return "Something went wrong. Please try again."
	}
}
