package model

import (
	"fmt"
	"strings"
	"time"
)

// Category tags a link by what kind of deadline it tracks.
type Category string

const (
	CategoryExams        Category = "exams"
	CategoryInternships  Category = "internships"
	CategoryScholarships Category = "scholarships"
	CategoryEvents       Category = "events"
	CategoryApplications Category = "applications"

	// CategoryAll is a filter value only, never stored on a link.
	CategoryAll Category = "all"
)

// Categories lists the stored categories in display order.
var Categories = []Category{
	CategoryExams,
	CategoryInternships,
	CategoryScholarships,
	CategoryEvents,
	CategoryApplications,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Label is the human-readable name used by the chat and digest output.
func (c Category) Label() string {
	switch c {
	case CategoryExams:
		return "Exams"
	case CategoryInternships:
		return "Internships"
	case CategoryScholarships:
		return "Scholarships"
	case CategoryEvents:
		return "Events"
	case CategoryApplications:
		return "Applications"
	case CategoryAll:
		return "All"
	default:
		return string(c)
	}
}

// ParseCategory accepts the stored value or its label, case-insensitively.
func ParseCategory(raw string) (Category, error) {
	value := Category(strings.ToLower(strings.TrimSpace(raw)))
	if value.Valid() {
		return value, nil
	}
	return "", fmt.Errorf("unknown category %q", raw)
}

// Status is the application state of a link.
type Status string

const (
	StatusNotApplied Status = "not_applied"
	StatusApplied    Status = "applied"
	StatusExpired    Status = "expired"

	// StatusAll is a filter value only, never stored on a link.
	StatusAll Status = "all"
)

var Statuses = []Status{StatusNotApplied, StatusApplied, StatusExpired}

func (s Status) Valid() bool {
	switch s {
	case StatusNotApplied, StatusApplied, StatusExpired:
		return true
	default:
		return false
	}
}

func (s Status) Label() string {
	switch s {
	case StatusNotApplied:
		return "Not Applied"
	case StatusApplied:
		return "Applied"
	case StatusExpired:
		return "Expired"
	case StatusAll:
		return "All"
	default:
		return string(s)
	}
}

// ParseStatus accepts "not_applied", "not-applied", "notapplied", "applied" and "expired".
func ParseStatus(raw string) (Status, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.ReplaceAll(value, "-", "_")
	if value == "notapplied" || value == "pending" {
		value = string(StatusNotApplied)
	}
	if s := Status(value); s.Valid() {
		return s, nil
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// Link is a tracked deadline-bound URL.
type Link struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	UserID       uint      `gorm:"index" json:"-"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	Category     Category  `gorm:"index;size:32" json:"category"`
	Deadline     time.Time `gorm:"index" json:"deadline"`
	ReminderTime time.Time `json:"reminder_time"`
	Notes        string    `json:"notes,omitempty"`
	Status       Status    `gorm:"size:16" json:"status"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// IsExpired reports whether the link counts as expired at now: either its
// stored status says so or the deadline is not in the future.
func (l Link) IsExpired(now time.Time) bool {
	return l.Status == StatusExpired || !l.Deadline.After(now)
}

// EffectiveStatus is the status used for display.
func (l Link) EffectiveStatus(now time.Time) Status {
	if l.IsExpired(now) {
		return StatusExpired
	}
	return l.Status
}
