package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics(t *testing.T) {
	var m Metrics = NoopMetrics{}

	assert.NotPanics(t, func() {
		m.Counter(MetricPricingRequests, 1, T("tier", "PRO"))
		m.Gauge(MetricOutboxLag, 2.5)
		m.Histogram(MetricPricingSavings, 22500)
		m.Timing(MetricHTTPRequestDuration, time.Second)
	})
}

func TestInMemoryMetrics_CountersAreKeyedByTags(t *testing.T) {
	m := NewInMemoryMetrics()

	m.Counter(MetricFamilyCommands, 1, T("command", "invite"), T("outcome", "ok"))
	m.Counter(MetricFamilyCommands, 1, T("command", "invite"), T("outcome", "ok"))
	m.Counter(MetricFamilyCommands, 1, T("command", "invite"), T("outcome", "conflict"))
	m.Counter(MetricCreditsConsumed, 10000)
	m.Counter(MetricCreditsConsumed, 2500)

	assert.Equal(t, int64(2), m.GetCounter(MetricFamilyCommands, T("command", "invite"), T("outcome", "ok")))
	assert.Equal(t, int64(1), m.GetCounter(MetricFamilyCommands, T("command", "invite"), T("outcome", "conflict")))
	assert.Zero(t, m.GetCounter(MetricFamilyCommands))
	assert.Equal(t, int64(12500), m.GetCounter(MetricCreditsConsumed))
}

func TestInMemoryMetrics_GaugeKeepsLastValue(t *testing.T) {
	m := NewInMemoryMetrics()

	m.Gauge(MetricOutboxLag, 12)
	m.Gauge(MetricOutboxLag, 0.5)

	assert.Equal(t, 0.5, m.GetGauge(MetricOutboxLag))
}

func TestInMemoryMetrics_Distributions(t *testing.T) {
	m := NewInMemoryMetrics()

	m.Histogram(MetricPricingSavings, 15000, T("tier", "PLUS"))
	m.Histogram(MetricPricingSavings, 22500, T("tier", "PLUS"))
	m.Timing(MetricHTTPRequestDuration, 40*time.Millisecond)

	assert.ElementsMatch(t, []float64{15000, 22500}, m.GetHistogram(MetricPricingSavings, T("tier", "PLUS")))
	assert.Equal(t, []time.Duration{40 * time.Millisecond}, m.GetTimings(MetricHTTPRequestDuration))

	m.Reset()
	assert.Empty(t, m.GetHistogram(MetricPricingSavings, T("tier", "PLUS")))
	assert.Empty(t, m.GetTimings(MetricHTTPRequestDuration))
}

func TestFormatKey(t *testing.T) {
	tests := []struct {
		tags []Tag
		want string
	}{
		{nil, "perks.cache.hits"},
		{[]Tag{T("cache", "plan_view")}, "perks.cache.hits:cache=plan_view"},
		{[]Tag{T("cache", "plan_view"), T("result", "stale")}, "perks.cache.hits:cache=plan_view:result=stale"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatKey(MetricCacheHits, tt.tags))
		})
	}
}

func TestInMemoryMetrics_TagOrderDoesNotMatter(t *testing.T) {
	m := NewInMemoryMetrics()

	m.Counter(MetricEventsConsumed, 1, T("routing_key", "family.plan.created"), T("outcome", "ok"))

	assert.Equal(t, int64(1), m.GetCounter(MetricEventsConsumed, T("outcome", "ok"), T("routing_key", "family.plan.created")))
}
