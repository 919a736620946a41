package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	scheduleDateLayout = "2006-01-02"
	scheduleTimeLayout = "15:04"
)

// ParseSchedule combines the separate date ("2006-01-02") and time ("15:04")
// fields clients send into a single UTC timestamp. A full RFC 3339 value in
// date is accepted when clock is empty.
func ParseSchedule(date, clock string, loc *time.Location) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if loc == nil {
		loc = time.UTC
	}

	if clock == "" {
		if t, err := time.Parse(time.RFC3339, date); err == nil {
			return t.UTC(), nil
		}
		return time.Time{}, fmt.Errorf("%w: time is required", ErrInvalidSchedule)
	}

	t, err := time.ParseInLocation(scheduleDateLayout+" "+scheduleTimeLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q %q", ErrInvalidSchedule, date, clock)
	}
	return t.UTC(), nil
}
