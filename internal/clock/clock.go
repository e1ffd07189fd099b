package clock

import (
	"sync"
	"time"
)

// Clock is the time source the attendance and eligibility code reads. Both
// methods answer in the school's timezone, so "today" is the school's calendar
// date even when the server runs in UTC.
type Clock interface {
	Now() time.Time
	Today() string // YYYY-MM-DD
}

// School is the real clock pinned to the configured school location.
type School struct {
	loc *time.Location
}

func NewSchool(loc *time.Location) *School {
	if loc == nil {
		loc = time.Local
	}
	return &School{loc: loc}
}

func (s *School) Now() time.Time {
	return time.Now().In(s.loc)
}

func (s *School) Today() string {
	return s.Now().Format("2006-01-02")
}

// Fixed is a controllable clock for tests.
type Fixed struct {
	mu      sync.Mutex
	current time.Time
}

func NewFixed(start time.Time) *Fixed {
	return &Fixed{current: start}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *Fixed) Today() string {
	return f.Now().Format("2006-01-02")
}

// Set updates the clock to the provided time.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.current = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d and returns the updated time.
func (f *Fixed) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	f.current = f.current.Add(d)
	updated := f.current
	f.mu.Unlock()
	return updated
}
