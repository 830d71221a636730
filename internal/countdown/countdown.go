// Package countdown turns a deadline into a live remaining-time breakdown.
package countdown

import (
	"fmt"
	"time"
)

const (
	msPerSecond = int64(1000)
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour
)

// Urgency is the display tier of a countdown.
type Urgency string

const (
	UrgencyUrgent  Urgency = "urgent"
	UrgencyWarning Urgency = "warning"
	UrgencyNormal  Urgency = "normal"
)

// Remaining is a pure duration breakdown; no calendar arithmetic.
type Remaining struct {
	Days        int64 `json:"days"`
	Hours       int64 `json:"hours"`
	Minutes     int64 `json:"minutes"`
	Seconds     int64 `json:"seconds"`
	TotalMillis int64 `json:"total_ms"`
	Expired     bool  `json:"expired"`
}

// Compute breaks the time left until deadline into whole units. A
// difference of zero or less is expired with every part zero.
func Compute(deadline, now time.Time) Remaining {
	diff := deadline.Sub(now).Milliseconds()
	if diff <= 0 {
		return Remaining{Expired: true}
	}
	return Remaining{
		Days:        diff / msPerDay,
		Hours:       diff % msPerDay / msPerHour,
		Minutes:     diff % msPerHour / msPerMinute,
		Seconds:     diff % msPerMinute / msPerSecond,
		TotalMillis: diff,
	}
}

// Urgency looks at whole days and hours only.
func (r Remaining) Urgency() Urgency {
	hoursLeft := r.Days*24 + r.Hours
	switch {
	case hoursLeft <= 24:
		return UrgencyUrgent
	case hoursLeft <= 72:
		return UrgencyWarning
	default:
		return UrgencyNormal
	}
}

// Format renders "3d 4h 5m" from a full day on and "4h 5m 6s" below it.
func Format(r Remaining) string {
	if r.Expired {
		return "Expired"
	}
	if r.Days > 0 {
		return fmt.Sprintf("%dd %dh %dm", r.Days, r.Hours, r.Minutes)
	}
	return fmt.Sprintf("%dh %dm %ds", r.Hours, r.Minutes, r.Seconds)
}

func (r Remaining) String() string {
	return Format(r)
}
