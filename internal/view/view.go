// Package view derives what the surfaces display from a workspace's links:
// ordering, dashboard counts and parsed filters.
package view

import (
	"sort"
	"strings"
	"time"

	"deadline-tracker/internal/model"
)

// DisplayOrder returns a copy of links with expired links (stored or by
// deadline) after all others, each group ascending by deadline. Ties keep
// their input order.
func DisplayOrder(links []model.Link, now time.Time) []model.Link {
	out := make([]model.Link, len(links))
	copy(out, links)

	sort.SliceStable(out, func(i, j int) bool {
		ei, ej := out[i].IsExpired(now), out[j].IsExpired(now)
		if ei != ej {
			return !ei
		}
		return out[i].Deadline.Before(out[j].Deadline)
	})
	return out
}

// Stats mirrors the dashboard cards.
type Stats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Applied int `json:"applied"`
	Expired int `json:"expired"`
}

// Summarize counts pending and applied by stored status, expired by
// effective status. A link applied before its deadline passed counts as
// both applied and expired.
func Summarize(links []model.Link, now time.Time) Stats {
	stats := Stats{Total: len(links)}
	for _, link := range links {
		switch link.Status {
		case model.StatusNotApplied:
			stats.Pending++
		case model.StatusApplied:
			stats.Applied++
		}
		if link.IsExpired(now) {
			stats.Expired++
		}
	}
	return stats
}

// ParseCategoryFilter maps "", "all" and "*" to CategoryAll.
func ParseCategoryFilter(raw string) (model.Category, error) {
	if isAll(raw) {
		return model.CategoryAll, nil
	}
	return model.ParseCategory(raw)
}

// ParseStatusFilter maps "", "all" and "*" to StatusAll.
func ParseStatusFilter(raw string) (model.Status, error) {
	if isAll(raw) {
		return model.StatusAll, nil
	}
	return model.ParseStatus(raw)
}

func isAll(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all", "*":
		return true
	default:
		return false
	}
}
