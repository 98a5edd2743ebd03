package services

import (
	"time"

	"github.com/clinicq/backend/pkg/constants"
)

// clock pins "now" and "today" to the clinic time zone
type clock struct {
	now func() time.Time
	loc *time.Location
}

func newClock(loc *time.Location) clock {
	if loc == nil {
		loc = time.UTC
	}
	return clock{now: time.Now, loc: loc}
}

// Now returns the current time in the clinic time zone
func (c clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns the clinic-local date key (YYYY-MM-DD)
func (c clock) Today() string {
	return c.Now().Format(constants.DateLayout)
}
