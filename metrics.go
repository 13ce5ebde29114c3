package goIdentity

import (
	"sync/atomic"
	"time"
)

// MetricID names one engine counter.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshRateLimited
	MetricSessionCreated
	MetricSessionCreateFailure
	MetricLogout
	MetricLogoutAll
	MetricRegistrationRequested
	MetricRegistrationConfirmed
	MetricConfirmationIssued
	MetricConfirmationResent
	MetricConfirmationThrottled
	MetricConfirmationRedeemed
	MetricConfirmationInvalid
	MetricConfirmationRateLimited
	MetricEmailChanged
	MetricPasswordChanged
	MetricPasswordResetRequested
	MetricPasswordReset
	MetricUsernameChanged
	MetricRoleChanged
	MetricNotificationFailure
	MetricBackendFailure
	// MetricBearerLatency is the only histogram.
	MetricBearerLatency
	metricIDCount
)

// latencyBounds are the inclusive upper bounds of every bucket but the last.
var latencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const latencyBuckets = len(latencyBounds) + 1

// slot keeps each counter on its own cache line.
type slot struct {
	n atomic.Uint64
	_ [56]byte
}

// Metrics holds lock-free counters. A nil or disabled Metrics ignores all
// updates.
type Metrics struct {
	enabled bool
	latency bool
	slots   [metricIDCount]slot
	bearer  [latencyBuckets]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of every counter. Histograms holds
// raw per-bucket counts, not running totals.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func emptySnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.latency
}

func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount {
		return
	}
	m.slots[id].n.Add(1)
}

// Observe records d against id. Only MetricBearerLatency keeps a histogram;
// other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricBearerLatency {
		return
	}
	m.bearer[bucketFor(d)].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.slots[id].n.Load()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := emptySnapshot()
	if !m.Enabled() {
		return s
	}

	for id := range m.slots {
		s.Counters[MetricID(id)] = m.slots[id].n.Load()
	}
	if m.latency {
		raw := make([]uint64, latencyBuckets)
		for i := range m.bearer {
			raw[i] = m.bearer[i].Load()
		}
		s.Histograms[MetricBearerLatency] = raw
	}
	return s
}

// bucketFor truncates d to whole milliseconds before comparing, so 5.9ms
// still lands in the first bucket.
func bucketFor(d time.Duration) int {
	d = d.Truncate(time.Millisecond)
	for i, bound := range latencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(latencyBounds)
}
