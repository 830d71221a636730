// Package metrics exposes link tracker counters and gauges to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"deadline-tracker/internal/model"
)

const namespace = "deadline_tracker"

var (
	linksDesc = prometheus.NewDesc(
		namespace+"_links",
		"Links in loaded workspaces by effective status",
		[]string{"status"},
		nil,
	)
	unreadDesc = prometheus.NewDesc(
		namespace+"_unread_notifications",
		"Unread notifications across loaded workspaces",
		nil,
		nil,
	)
)

// Snapshot is the workspace state read on each scrape.
type Snapshot struct {
	LinksByStatus map[model.Status]int
	Unread        int
}

// SnapshotFunc produces the current Snapshot.
type SnapshotFunc func() Snapshot

// WorkspaceCollector reads workspace totals at scrape time.
type WorkspaceCollector struct {
	snapshot SnapshotFunc
}

func (c *WorkspaceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- linksDesc
	ch <- unreadDesc
}

func (c *WorkspaceCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.snapshot()
	for _, status := range model.Statuses {
		ch <- prometheus.MustNewConstMetric(
			linksDesc,
			prometheus.GaugeValue,
			float64(snap.LinksByStatus[status]),
			string(status),
		)
	}
	ch <- prometheus.MustNewConstMetric(unreadDesc, prometheus.GaugeValue, float64(snap.Unread))
}

// Metrics owns a dedicated registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	linksCreated  *prometheus.CounterVec
	statusChanges *prometheus.CounterVec
	reminders     prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		linksCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_created_total",
			Help:      "Links created by category",
		}, []string{"category"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_changes_total",
			Help:      "Status changes by new status",
		}, []string{"status"}),
		reminders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_total",
			Help:      "Reminder notifications produced",
		}),
	}
	m.registry.MustRegister(
		m.linksCreated,
		m.statusChanges,
		m.reminders,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe registers the workspace collector. Call it once.
func (m *Metrics) Observe(fn SnapshotFunc) {
	if m == nil {
		return
	}
	m.registry.MustRegister(&WorkspaceCollector{snapshot: fn})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) LinkCreated(category model.Category) {
	if m == nil {
		return
	}
	m.linksCreated.WithLabelValues(string(category)).Inc()
}

func (m *Metrics) StatusChanged(status model.Status) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) RemindersProduced(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reminders.Add(float64(n))
}
