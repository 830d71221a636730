// Package seed provides the demo workspace new users start with.
package seed

import (
	"time"

	"github.com/google/uuid"

	"deadline-tracker/internal/model"
)

const day = 24 * time.Hour

// Links returns six demo links placed around now, one of them already
// expired. Ids are fresh on every call.
func Links(now time.Time) []model.Link {
	mk := func(title, url string, category model.Category, deadline, reminder time.Duration, notes string, status model.Status, created, updated time.Duration) model.Link {
		return model.Link{
			ID:           uuid.NewString(),
			Title:        title,
			URL:          url,
			Category:     category,
			Deadline:     now.Add(deadline),
			ReminderTime: now.Add(reminder),
			Notes:        notes,
			Status:       status,
			CreatedAt:    now.Add(created),
			UpdatedAt:    now.Add(updated),
		}
	}

	// newest first, the order the database returns them in
	return []model.Link{
		mk("Hackathon Registration", "https://hackathon.dev/register", model.CategoryEvents,
			1*day, 12*time.Hour, "Team size: 2-4 members", model.StatusApplied, -2*day, -1*day),
		mk("Google Summer Internship 2024", "https://careers.google.com/students", model.CategoryInternships,
			7*day, 5*day, "Prepare resume and cover letter", model.StatusNotApplied, -3*day, -3*day),
		mk("Final Semester Exam Registration", "https://university.edu/exam-registration", model.CategoryExams,
			2*day, 1*day, "Don't forget to bring student ID", model.StatusNotApplied, -5*day, -5*day),
		mk("Merit Scholarship Application", "https://university.edu/scholarships/merit", model.CategoryScholarships,
			14*day, 10*day, "Need transcript and recommendation letters", model.StatusApplied, -7*day, -2*day),
		mk("Tech Career Fair 2024", "https://university.edu/events/career-fair", model.CategoryEvents,
			5*day, 4*day, "Dress code: Business casual", model.StatusNotApplied, -10*day, -10*day),
		mk("Graduate School Application - MIT", "https://gradadmissions.mit.edu/apply", model.CategoryApplications,
			-2*day, -4*day, "GRE scores required", model.StatusExpired, -30*day, -2*day),
	}
}

// Notifications returns the demo inbox for links produced by Links. Entries
// whose link is missing are skipped.
func Notifications(now time.Time, links []model.Link) []model.Notification {
	byTitle := make(map[string]string, len(links))
	for _, l := range links {
		byTitle[l.Title] = l.ID
	}

	type entry struct {
		linkTitle string
		title     string
		message   string
		read      bool
		age       time.Duration
	}
	entries := []entry{
		{"Final Semester Exam Registration", "Deadline Approaching", "Final Semester Exam Registration deadline is in 2 days", false, time.Hour},
		{"Hackathon Registration", "Deadline Tomorrow", "Hackathon Registration deadline is tomorrow!", false, 2 * time.Hour},
		{"Tech Career Fair 2024", "Reminder", "Tech Career Fair 2024 is coming up in 5 days", true, day},
	}

	out := make([]model.Notification, 0, len(entries))
	for _, e := range entries {
		linkID, ok := byTitle[e.linkTitle]
		if !ok {
			continue
		}
		out = append(out, model.Notification{
			ID:        uuid.NewString(),
			LinkID:    linkID,
			Kind:      model.NotificationGeneral,
			Title:     e.title,
			Message:   e.message,
			Read:      e.read,
			CreatedAt: now.Add(-e.age),
		})
	}
	return out
}
