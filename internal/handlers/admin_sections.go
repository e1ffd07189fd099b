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

type sectionListRow struct {
	models.Section
	TeacherName  string
	StudentCount int64
}

type sectionsVM struct {
	Title    string
	Sections []sectionListRow
	Flash    *Flash
}

// GET /admin/sections
func AdminSections(t *template.Template) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sections []models.Section
		if err := db.Conn().Order("name").Find(&sections).Error; err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		// One GROUP BY for the active-enrollment counts instead of a COUNT
		// query per section.
		type agg struct {
			SectionID uint
			N         int64
		}
		var aggs []agg
		db.Conn().Table("enrollments").
			Select("section_id, COUNT(*) AS n").
			Where("active = ?", true).
			Group("section_id").
			Scan(&aggs)
		counts := make(map[uint]int64, len(aggs))
		for _, a := range aggs {
			counts[a.SectionID] = a.N
		}

		teacherNames := map[uint]string{}
		var teachers []models.User
		db.Conn().Where("role = ?", models.RoleTeacher).Find(&teachers)
		for _, u := range teachers {
			teacherNames[u.ID] = u.FullName()
		}

		rows := make([]sectionListRow, 0, len(sections))
		for _, sec := range sections {
			rows = append(rows, sectionListRow{
				Section:      sec,
				TeacherName:  teacherNames[sec.TeacherID],
				StudentCount: counts[sec.ID],
			})
		}

		view, _ := t.Clone()
		_, _ = view.ParseFiles("templates/pages/admin/sections.tmpl")
		_ = view.ExecuteTemplate(w, "admin/sections.tmpl", sectionsVM{
			Title:    "Admin • Sections",
			Sections: rows,
			Flash:    MakeFlash(r, "", ""),
		})
	}
}

type sectionFormVM struct {
	Title    string
	Section  *models.Section
	Teachers []models.User
	Students []models.User
	Enrolled []models.User
	Flash    *Flash
}

// GET /admin/sections/new
func AdminNewSection(t *template.Template) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderSectionForm(t, w, r, nil)
	}
}

// GET /admin/sections/{id}/edit
func AdminEditSectionForm(t *template.Template) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sec, ok := sectionFromPath(w, r)
		if !ok {
			return
		}
		renderSectionForm(t, w, r, sec)
	}
}

func renderSectionForm(t *template.Template, w http.ResponseWriter, r *http.Request, sec *models.Section) {
	vm := sectionFormVM{Title: "Admin • Section", Section: sec, Flash: MakeFlash(r, "", "")}
	db.Conn().Where("role = ?", models.RoleTeacher).Order("last_name").Find(&vm.Teachers)
	db.Conn().Where("role = ?", models.RoleStudent).Order("last_name").Find(&vm.Students)
	if sec != nil {
		enrolled, err := services.EnrolledStudents(db.Conn(), sec.ID)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		vm.Enrolled = enrolled
	}

	view, _ := t.Clone()
	_, _ = view.ParseFiles("templates/pages/admin/section_form.tmpl")
	_ = view.ExecuteTemplate(w, "admin/section_form.tmpl", vm)
}

// POST /admin/sections
func AdminCreateSection(w http.ResponseWriter, r *http.Request) {
	in, ok := parseSectionForm(w, r)
	if !ok {
		return
	}
	sec, err := services.CreateSection(db.Conn(), in)
	if err != nil {
		http.Redirect(w, r, "/admin/sections/new?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
		return
	}
	enrollFromForm(r, sec.ID)
	http.Redirect(w, r, "/admin/sections?ok=section_saved", http.StatusSeeOther)
}

// POST /admin/sections/{id}
func AdminUpdateSection(w http.ResponseWriter, r *http.Request) {
	sec, ok := sectionFromPath(w, r)
	if !ok {
		return
	}
	in, ok := parseSectionForm(w, r)
	if !ok {
		return
	}
	if _, err := services.UpdateSection(db.Conn(), sec.ID, in); err != nil {
		http.Redirect(w, r, "/admin/sections/"+strconv.FormatUint(uint64(sec.ID), 10)+"/edit?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
		return
	}
	enrollFromForm(r, sec.ID)
	http.Redirect(w, r, "/admin/sections?ok=section_saved", http.StatusSeeOther)
}

// POST /admin/sections/{id}/delete
func AdminDeleteSection(w http.ResponseWriter, r *http.Request) {
	sec, ok := sectionFromPath(w, r)
	if !ok {
		return
	}
	if err := services.DeleteSection(db.Conn(), sec.ID); err != nil {
		key := err.Error()
		if errors.Is(err, services.ErrHasEnrollments) {
			key = "has_enrollments"
		}
		http.Redirect(w, r, "/admin/sections?error="+url.QueryEscape(key), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/admin/sections?ok=deleted", http.StatusSeeOther)
}

// POST /admin/sections/{id}/enroll
func AdminEnrollStudents(w http.ResponseWriter, r *http.Request) {
	sec, ok := sectionFromPath(w, r)
	if !ok {
		return
	}
	_ = r.ParseForm()
	enrollFromForm(r, sec.ID)
	http.Redirect(w, r, "/admin/sections/"+strconv.FormatUint(uint64(sec.ID), 10)+"/edit?ok=enrolled", http.StatusSeeOther)
}

// POST /admin/sections/{id}/unenroll
func AdminUnenrollStudent(w http.ResponseWriter, r *http.Request) {
	sec, ok := sectionFromPath(w, r)
	if !ok {
		return
	}
	_ = r.ParseForm()
	studentID, err := strconv.ParseUint(r.FormValue("student_id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := services.UnenrollStudent(db.Conn(), sec.ID, uint(studentID)); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	http.Redirect(w, r, "/admin/sections/"+strconv.FormatUint(uint64(sec.ID), 10)+"/edit?ok=unenrolled", http.StatusSeeOther)
}

func sectionFromPath(w http.ResponseWriter, r *http.Request) (*models.Section, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	var sec models.Section
	if err := db.Conn().First(&sec, uint(id)).Error; err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	return &sec, true
}

func parseSectionForm(w http.ResponseWriter, r *http.Request) (services.SectionInput, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), 400)
		return services.SectionInput{}, false
	}

	var days []int
	for _, v := range r.PostForm["days_of_week"] {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			days = append(days, n)
		}
	}
	teacherID, _ := strconv.ParseUint(r.FormValue("teacher_id"), 10, 64)

	in := services.SectionInput{
		Name:              strings.TrimSpace(r.FormValue("name")),
		Type:              r.FormValue("type"),
		StartTime:         strings.TrimSpace(r.FormValue("start_time")),
		EndTime:           strings.TrimSpace(r.FormValue("end_time")),
		SchedulePattern:   r.FormValue("schedule_pattern"),
		DaysOfWeek:        days,
		PresenceEnabled:   r.FormValue("presence_enabled") == "on",
		AttendanceEnabled: r.FormValue("attendance_enabled") == "on",
		TeacherID:         uint(teacherID),
	}
	if lat, err := strconv.ParseFloat(r.FormValue("expected_lat"), 64); err == nil {
		in.ExpectedLat = &lat
	}
	if lng, err := strconv.ParseFloat(r.FormValue("expected_lng"), 64); err == nil {
		in.ExpectedLng = &lng
	}
	if radius, err := strconv.Atoi(r.FormValue("geofence_radius")); err == nil {
		in.GeofenceRadius = &radius
	}
	return in, true
}

func enrollFromForm(r *http.Request, sectionID uint) {
	var studentIDs []uint
	for _, v := range r.PostForm["student_ids"] {
		if n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64); err == nil {
			studentIDs = append(studentIDs, uint(n))
		}
	}
	if len(studentIDs) == 0 {
		return
	}
	if _, err := services.EnrollStudents(db.Conn(), sectionID, studentIDs); err != nil {
		logger.Log.WithError(err).Error("enroll students failed")
	}
}
