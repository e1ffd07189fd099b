package handlers

import (
	"net/http"
	"strings"
)

type Flash struct {
	Kind string // "ok" or "error"
	Text string
}

var okText = map[string]string{
	"saved":            "Saved.",
	"waved":            "Wave sent.",
	"checked_in":       "Checked in.",
	"checked_out":      "Checked out.",
	"enrolled":         "Students enrolled.",
	"unenrolled":       "Student unenrolled.",
	"section_saved":    "Section saved.",
	"deleted":          "Section deleted.",
	"imported":         "Calendar imported.",
	"day_off":          "Day marked off.",
	"day_restored":     "Day restored to the regular schedule.",
	"attendance_saved": "Attendance saved.",
	"user_saved":       "User saved.",
	"users_imported":   "Users imported.",
}

var errText = map[string]string{
	"not_today":         "Actions only available for today.",
	"section_not_found": "Section not found.",
	"presence_disabled": "Presence waves not enabled for this section.",
	"no_checkin":        "This section does not require check-in.",
	"already_in":        "Already checked in today.",
	"already_out":       "Already checked out today.",
	"not_checked_in":    "Must check in before checking out.",
	"checkin_closed":    "Check-in closed.",
	"invalid_date":      "Invalid date.",
	"invalid_section":   "Section details are invalid.",
	"has_enrollments":   "Cannot delete a section that still has enrolled students.",
	"not_assigned":      "You are not assigned to this section.",
	"bad_upload":        "Could not read the uploaded file.",
	"email_taken":       "That email already has an account.",
	"invalid_user":      "User details are invalid.",
}

// MakeFlash reads query params and/or explicit strings to build a Flash.
func MakeFlash(r *http.Request, errStr, msgStr string) *Flash {
	q := r.URL.Query()

	errRaw := strings.TrimSpace(q.Get("error"))
	okRaw := strings.TrimSpace(q.Get("ok"))

	if errRaw != "" {
		key := strings.ToLower(errRaw)
		if t, ok := errText[key]; ok {
			return &Flash{Kind: "error", Text: t}
		}
		return &Flash{Kind: "error", Text: errRaw}
	}
	if okRaw != "" {
		key := strings.ToLower(okRaw)
		if t, ok := okText[key]; ok {
			return &Flash{Kind: "ok", Text: t}
		}
		return &Flash{Kind: "ok", Text: okRaw}
	}

	if errStr != "" {
		return &Flash{Kind: "error", Text: errStr}
	}
	if msgStr != "" {
		return &Flash{Kind: "ok", Text: msgStr}
	}
	return nil
}
