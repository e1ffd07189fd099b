package schedule

import (
	"strconv"
	"strings"
	"time"

	"github.com/danlang422/here-app/internal/models"
)

// Action is a student agenda action the gate can rule on.
type Action string

const (
	ActionWave     Action = "wave"
	ActionCheckIn  Action = "checkin"
	ActionCheckOut Action = "checkout"
)

// Check-in asks for a commitment (the plans prompt) so its window opens close
// to start; waves are low-stakes and open earlier.
const (
	checkInLead = 15 * time.Minute
	waveLead    = 5 * time.Minute
)

// Decision is an advisory ruling. A denial carries a human-readable reason and,
// when the action is merely early, the time the window opens.
type Decision struct {
	Allowed bool
	Reason  string
	OpensAt time.Time
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// CheckAction rules on whether an action is permitted right now for targetDate.
// It is a pure function of the section's times and the wall clock; the
// already-checked-in/out state lives in the attendance log, not here.
func CheckAction(sec models.Section, action Action, now time.Time, targetDate string) Decision {
	// Actions are only ever available on the current school-timezone date.
	if targetDate != now.Format("2006-01-02") {
		return deny("Actions only available for today")
	}

	start, startOK := clockOn(now, sec.StartTime)
	end, endOK := clockOn(now, sec.EndTime)

	switch action {
	case ActionWave:
		// Opens 5 minutes before start, never closes.
		if startOK {
			opens := start.Add(-waveLead)
			if now.Before(opens) {
				d := deny("Wave opens at " + opens.Format("3:04 PM"))
				d.OpensAt = opens
				return d
			}
		}
		return allow()

	case ActionCheckIn:
		if startOK {
			opens := start.Add(-checkInLead)
			if now.Before(opens) {
				d := deny("Check-in opens at " + opens.Format("3:04 PM"))
				d.OpensAt = opens
				return d
			}
		}
		if endOK && now.After(end) {
			return deny("Check-in closed")
		}
		return allow()

	case ActionCheckOut:
		// Always available by time once checked in, even long after the
		// section ends, so a forgotten check-out can still be closed same-day.
		return allow()
	}
	return allow()
}

// clockOn places an "HH:MM" wall-clock time on the same calendar day as ref.
func clockOn(ref time.Time, hhmm string) (time.Time, bool) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return time.Time{}, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return time.Time{}, false
	}
	return time.Date(ref.Year(), ref.Month(), ref.Day(), h, m, 0, 0, ref.Location()), true
}
