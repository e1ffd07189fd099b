package handlers

import "time"

// Clock string in the school timezone, e.g. "9:05 AM"
func fmtClock(d time.Time) string {
	return d.In(schoolLoc).Format("3:04 PM")
}
