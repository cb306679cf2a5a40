package contest

import (
	"fmt"
	"time"
)

// PhaseBefore marks contests that have not started yet; nothing else is
// actionable for reminders.
const PhaseBefore = "BEFORE"

// Contest is an immutable snapshot of one upcoming contest. The list is
// refetched wholesale on every poll; there is no incremental diffing.
type Contest struct {
	ID       int64
	Name     string
	StartsAt time.Time // UTC
	Duration time.Duration
	Phase    string
}

// StartString renders the exact start instant the way reminders show it.
func (c Contest) StartString() string {
	return c.StartsAt.UTC().Format("2006-01-02 15:04:05 UTC")
}

// DurationString renders the contest length as e.g. "2h", "2h30m".
func (c Contest) DurationString() string {
	d := c.Duration.Round(time.Minute)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	if h > 0 && m > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	if h > 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dm", m)
}
