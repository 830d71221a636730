// Package linkform implements the two ways a link enters a workspace:
// manual entry, and extraction from a pasted message followed by manual
// review.
package linkform

import (
	"net/url"
	"strings"
	"time"

	"deadline-tracker/internal/model"
	"deadline-tracker/internal/store"
)

const (
	DefaultTimeOfDay = "23:59"
	DefaultLeadDays  = 1
	DefaultCategory  = model.CategoryExams

	timeOfDayLayout = "15:04"
)

// LeadDayOptions are the supported reminder lead times.
var LeadDayOptions = []int{1, 2, 3, 7}

// Target is where a submitted form lands: the persisting workspace, or a
// bare store wrapped with StoreTarget.
type Target interface {
	Add(in store.LinkInput) (model.Link, error)
	Update(id string, patch store.LinkPatch) (model.Link, error)
}

type storeTarget struct {
	links *store.LinkStore
}

// StoreTarget submits straight into an in-memory store.
func StoreTarget(links *store.LinkStore) Target {
	return storeTarget{links: links}
}

func (t storeTarget) Add(in store.LinkInput) (model.Link, error) {
	return t.links.Add(in), nil
}

func (t storeTarget) Update(id string, patch store.LinkPatch) (model.Link, error) {
	return t.links.Update(id, patch)
}

// Form is the transient state of the add/edit dialog.
type Form struct {
	EditingID string
	Title     string
	URL       string
	Category  model.Category
	Date      *time.Time
	TimeOfDay string
	LeadDays  int
	Notes     string
}

// New returns an empty form with defaults applied.
func New() *Form {
	f := &Form{}
	f.Reset()
	return f
}

// ForEdit prefills a form from an existing link. loc decides how the
// deadline is split back into date and time of day.
func ForEdit(link model.Link, loc *time.Location) *Form {
	local := link.Deadline.In(loc)
	date := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return &Form{
		EditingID: link.ID,
		Title:     link.Title,
		URL:       link.URL,
		Category:  link.Category,
		Date:      &date,
		TimeOfDay: local.Format(timeOfDayLayout),
		LeadDays:  DefaultLeadDays,
		Notes:     link.Notes,
	}
}

// Reset clears every field back to its default.
func (f *Form) Reset() {
	*f = Form{
		Category:  DefaultCategory,
		TimeOfDay: DefaultTimeOfDay,
		LeadDays:  DefaultLeadDays,
	}
}

// ApplyExtraction prefills url and title from a pasted message. Without a
// URL it returns ErrNoURLFound and leaves the form untouched. The title is
// only replaced when there is text before the URL.
func (f *Form) ApplyExtraction(text string) (Extraction, error) {
	ex, ok := Extract(text)
	if !ok {
		return Extraction{}, ErrNoURLFound
	}
	f.URL = ex.URL
	if ex.Title != "" {
		f.Title = ex.Title
	}
	return ex, nil
}

// Validate checks the form without touching anything.
func (f *Form) Validate() error {
	if strings.TrimSpace(f.Title) == "" || strings.TrimSpace(f.URL) == "" || f.Date == nil {
		return ErrMissingFields
	}
	if !ValidURL(strings.TrimSpace(f.URL)) {
		return ErrInvalidURL
	}
	if f.Category != "" && !f.Category.Valid() {
		return ErrInvalidCategory
	}
	if _, err := parseTimeOfDay(f.timeOfDay()); err != nil {
		return ErrInvalidTime
	}
	if !ValidLeadDays(f.leadDays()) {
		return ErrInvalidLeadTime
	}
	return nil
}

// Submission is a validated form turned into link fields.
type Submission struct {
	Title        string
	URL          string
	Category     model.Category
	Deadline     time.Time
	ReminderTime time.Time
	Notes        string
}

// Build composes the deadline from date and time of day in loc with
// seconds zeroed, and derives the reminder by subtracting whole days.
func (f *Form) Build(loc *time.Location) (Submission, error) {
	if err := f.Validate(); err != nil {
		return Submission{}, err
	}

	tod, _ := parseTimeOfDay(f.timeOfDay())
	y, m, d := f.Date.Date()
	deadline := time.Date(y, m, d, tod.Hour(), tod.Minute(), 0, 0, loc)

	category := f.Category
	if category == "" {
		category = DefaultCategory
	}

	return Submission{
		Title:        strings.TrimSpace(f.Title),
		URL:          strings.TrimSpace(f.URL),
		Category:     category,
		Deadline:     deadline,
		ReminderTime: deadline.Add(-time.Duration(f.leadDays()) * 24 * time.Hour),
		Notes:        strings.TrimSpace(f.Notes),
	}, nil
}

// Submit validates the form and hands it to target: Add for a new link
// (status not_applied), Update when editing. The reminder of an edited link
// is kept as it was. The form is reset only on success.
func (f *Form) Submit(target Target, loc *time.Location) (model.Link, error) {
	sub, err := f.Build(loc)
	if err != nil {
		return model.Link{}, err
	}

	var link model.Link
	if f.EditingID != "" {
		link, err = target.Update(f.EditingID, store.LinkPatch{
			Title:    &sub.Title,
			URL:      &sub.URL,
			Category: &sub.Category,
			Deadline: &sub.Deadline,
			Notes:    &sub.Notes,
		})
	} else {
		link, err = target.Add(store.LinkInput{
			Title:        sub.Title,
			URL:          sub.URL,
			Category:     sub.Category,
			Deadline:     sub.Deadline,
			ReminderTime: sub.ReminderTime,
			Notes:        sub.Notes,
			Status:       model.StatusNotApplied,
		})
	}
	if err != nil {
		return model.Link{}, err
	}

	f.Reset()
	return link, nil
}

// ValidURL accepts absolute URLs: a scheme plus a host or opaque part.
func ValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return false
	}
	return u.Host != "" || u.Opaque != ""
}

// ParseDate reads a calendar date typed by a user.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range []string{"2006-01-02", "02.01.2006", "2006/01/02"} {
		t, err := time.ParseInLocation(layout, raw, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// ValidLeadDays reports whether days is one of LeadDayOptions.
func ValidLeadDays(days int) bool {
	for _, allowed := range LeadDayOptions {
		if days == allowed {
			return true
		}
	}
	return false
}

func (f *Form) timeOfDay() string {
	if strings.TrimSpace(f.TimeOfDay) == "" {
		return DefaultTimeOfDay
	}
	return strings.TrimSpace(f.TimeOfDay)
}

func (f *Form) leadDays() int {
	if f.LeadDays == 0 {
		return DefaultLeadDays
	}
	return f.LeadDays
}

func parseTimeOfDay(raw string) (time.Time, error) {
	return time.Parse(timeOfDayLayout, raw)
}
