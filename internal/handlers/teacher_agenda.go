package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/danlang422/here-app/internal/attendance"
	"github.com/danlang422/here-app/internal/db"
	"github.com/danlang422/here-app/internal/models"
	"github.com/danlang422/here-app/internal/schedule"
	"github.com/danlang422/here-app/internal/services"
)

type rosterStudent struct {
	ID   uint
	Name string

	AttendanceStatus string
	AttendanceNotes  string

	HasWaved bool
	WaveMood string

	CheckInStr      string
	CheckOutStr     string
	CheckInVerified *bool
	Plans           string
	Progress        string
}

type teacherSectionVM struct {
	Section models.Section

	TotalStudents  int
	MarkedStudents int
	PresenceCount  int
	CheckedInCount int

	Students []rosterStudent
}

type teacherAgendaVM struct {
	Title    string
	Date     string
	Today    string
	Day      schedule.DayInfo
	Sections []teacherSectionVM
	Flash    *Flash
}

// GET /teacher/agenda?date=YYYY-MM-DD
func TeacherAgenda(t *template.Template) http.HandlerFunc {
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
		sections, err := schedule.ActiveSections(db.Conn(), user.ID, models.RoleTeacher, date)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		vms := make([]teacherSectionVM, 0, len(sections))
		for _, sec := range sections {
			vm, err := buildTeacherSection(sec, date)
			if err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			vms = append(vms, vm)
		}

		view, _ := t.Clone()
		_, _ = view.ParseFiles("templates/pages/teacher/agenda.tmpl")
		_ = view.ExecuteTemplate(w, "teacher/agenda.tmpl", teacherAgendaVM{
			Title:    "Here • Teacher Agenda",
			Date:     date,
			Today:    Clock.Today(),
			Day:      day,
			Sections: vms,
			Flash:    MakeFlash(r, "", ""),
		})
	}
}

func buildTeacherSection(sec models.Section, date string) (teacherSectionVM, error) {
	vm := teacherSectionVM{Section: sec}

	roster, err := services.EnrolledStudents(db.Conn(), sec.ID)
	if err != nil {
		return vm, err
	}
	records, err := attendance.RecordsFor(db.Conn(), sec.ID, date)
	if err != nil {
		return vm, err
	}

	vm.TotalStudents = len(roster)
	for _, student := range roster {
		rs := rosterStudent{ID: student.ID, Name: student.FullName()}

		if rec, ok := records[student.ID]; ok {
			rs.AttendanceStatus = rec.Status
			rs.AttendanceNotes = rec.Notes
			vm.MarkedStudents++
		}

		st, err := attendance.GetStatus(db.Conn(), student.ID, sec.ID, date)
		if err != nil {
			return vm, err
		}
		rs.HasWaved = st.HasWaved
		rs.WaveMood = st.WaveMood
		rs.Plans = st.Plans
		rs.Progress = st.Progress
		rs.CheckInVerified = st.CheckInVerified
		if st.CheckInAt != nil {
			rs.CheckInStr = fmtClock(*st.CheckInAt)
		}
		if st.CheckOutAt != nil {
			rs.CheckOutStr = fmtClock(*st.CheckOutAt)
		}
		if st.HasWaved {
			vm.PresenceCount++
		}
		if st.HasCheckedIn {
			vm.CheckedInCount++
		}
		vm.Students = append(vm.Students, rs)
	}
	return vm, nil
}

// POST /teacher/sections/{id}/attendance
// Form fields: date, plus status_<studentID> and notes_<studentID> per row.
// An empty status clears that student's record.
func TeacherSaveAttendance(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	date := strings.TrimSpace(r.FormValue("date"))
	if !isoDateRE.MatchString(date) {
		http.Redirect(w, r, "/teacher/agenda?error=invalid_date", http.StatusSeeOther)
		return
	}

	var entries []attendance.MarkEntry
	for key := range r.PostForm {
		studentIDStr, found := strings.CutPrefix(key, "status_")
		if !found {
			continue
		}
		studentID, err := strconv.ParseUint(studentIDStr, 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, attendance.MarkEntry{
			StudentID: uint(studentID),
			Status:    r.PostForm.Get(key),
			Notes:     r.PostForm.Get("notes_" + studentIDStr),
		})
	}

	_, err = attendance.SaveAttendance(db.Conn(), user.ID, uint(id), date, entries)
	if err != nil {
		key := "Failed to save attendance."
		switch {
		case errors.Is(err, attendance.ErrNotAssigned):
			key = "not_assigned"
		case errors.Is(err, attendance.ErrSectionNotFound):
			key = "section_not_found"
		}
		http.Redirect(w, r, "/teacher/agenda?date="+date+"&error="+url.QueryEscape(key), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/teacher/agenda?date="+date+"&ok=attendance_saved", http.StatusSeeOther)
}
