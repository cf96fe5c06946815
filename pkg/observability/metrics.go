package observability

import (
	"strings"
	"sync"
	"time"
)

// Metrics records application metrics. Names are the Metric* constants;
// tags become labels.
type Metrics interface {
	Counter(name string, value int64, tags ...Tag)
	Gauge(name string, value float64, tags ...Tag)
	Histogram(name string, value float64, tags ...Tag)
	Timing(name string, duration time.Duration, tags ...Tag)
}

// Tag is one metric label.
type Tag struct {
	Key   string
	Value string
}

func T(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) Counter(string, int64, ...Tag)        {}
func (NoopMetrics) Gauge(string, float64, ...Tag)        {}
func (NoopMetrics) Histogram(string, float64, ...Tag)    {}
func (NoopMetrics) Timing(string, time.Duration, ...Tag) {}

type series struct {
	count   int64
	gauge   float64
	samples []float64
	timings []time.Duration
}

// InMemoryMetrics keeps every series in memory so tests can assert on what
// was recorded. Lookups match tags regardless of their order.
type InMemoryMetrics struct {
	mu     sync.RWMutex
	series map[string]*series
}

func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{series: make(map[string]*series)}
}

func (m *InMemoryMetrics) record(name string, tags []Tag, fn func(*series)) {
	key := formatKey(name, tags)
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.series[key]
	if !ok {
		s = &series{}
		m.series[key] = s
	}
	fn(s)
}

func (m *InMemoryMetrics) read(name string, tags []Tag) series {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.series[formatKey(name, tags)]; ok {
		return *s
	}
	return series{}
}

func (m *InMemoryMetrics) Counter(name string, value int64, tags ...Tag) {
	m.record(name, tags, func(s *series) { s.count += value })
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.record(name, tags, func(s *series) { s.gauge = value })
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...Tag) {
	m.record(name, tags, func(s *series) { s.samples = append(s.samples, value) })
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	m.record(name, tags, func(s *series) { s.timings = append(s.timings, duration) })
}

func (m *InMemoryMetrics) GetCounter(name string, tags ...Tag) int64 {
	return m.read(name, tags).count
}

func (m *InMemoryMetrics) GetGauge(name string, tags ...Tag) float64 {
	return m.read(name, tags).gauge
}

func (m *InMemoryMetrics) GetHistogram(name string, tags ...Tag) []float64 {
	return m.read(name, tags).samples
}

func (m *InMemoryMetrics) GetTimings(name string, tags ...Tag) []time.Duration {
	return m.read(name, tags).timings
}

func (m *InMemoryMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series = make(map[string]*series)
}

// formatKey renders name and tags sorted by key, e.g.
// "perks.cache.hits:cache=plan_view".
func formatKey(name string, tags []Tag) string {
	keys, labels := splitTags(tags)
	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteString(":")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(labels[k])
	}
	return b.String()
}

// Metric names recorded by perks. Dots become underscores in the Prometheus
// exposition.
const (
	MetricOperationTotal    = "perks.operation.total"
	MetricOperationDuration = "perks.operation.duration"
	MetricOperationErrors   = "perks.operation.errors"

	MetricHTTPRequests        = "perks.http.requests"
	MetricHTTPRequestDuration = "perks.http.request_duration"

	// Family plan metrics, tagged with command and outcome.
	MetricFamilyCommands    = "perks.family.commands"
	MetricFamilyMembers     = "perks.family.members_joined"
	MetricFamilyInvitations = "perks.family.invitations_sent"

	MetricPricingRequests = "perks.pricing.requests"
	MetricPricingSavings  = "perks.pricing.savings"
	MetricCreditsConsumed = "perks.credits.consumed"

	MetricConflictRetries = "perks.store.conflict_retries"

	MetricNotificationsSent   = "perks.notifications.sent"
	MetricNotificationsFailed = "perks.notifications.failed"
	MetricBreakerTransitions  = "perks.breaker.transitions"

	MetricCacheHits   = "perks.cache.hits"
	MetricCacheMisses = "perks.cache.misses"

	MetricEventsPublished    = "perks.events.published"
	MetricEventsFailed       = "perks.events.failed"
	MetricEventsDeadLettered = "perks.events.dead_lettered"
	MetricEventsConsumed     = "perks.events.consumed"
	MetricOutboxLag          = "perks.outbox.lag_seconds"
)
