package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Settlement parties used as the "party" label on points_moved_total.
const (
	PartyRequester = "requester"
	PartyOwner     = "owner"
	PartyPlatform  = "platform"
)

// Outcome labels for swap_transitions_total.
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
)

// SwapMetrics records swap ledger activity.
type SwapMetrics struct {
	created     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	pointsMoved *prometheus.CounterVec
	settlement  *prometheus.HistogramVec
}

// NewSwapMetrics registers the swap metrics on the provided registerer. A nil
// registerer yields a no-op recorder.
func NewSwapMetrics(reg prometheus.Registerer) *SwapMetrics {
	if reg == nil {
		return &SwapMetrics{}
	}
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_requests_created_total",
		Help: "Swap requests created, by swap type.",
	}, []string{"swap_type"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_transitions_total",
		Help: "Swap status transitions attempted, by target status and outcome.",
	}, []string{"status", "outcome"})
	pointsMoved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_points_moved_total",
		Help: "Absolute points moved by settlements, by party.",
	}, []string{"party"})
	settlement := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swap_settlement_duration_seconds",
		Help:    "Duration of swap completion settlements in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"swap_type"})
	reg.MustRegister(created, transitions, pointsMoved, settlement)
	return &SwapMetrics{
		created:     created,
		transitions: transitions,
		pointsMoved: pointsMoved,
		settlement:  settlement,
	}
}

// IncCreated counts a newly created swap request.
func (m *SwapMetrics) IncCreated(swapType string) {
	if m == nil || m.created == nil {
		return
	}
	m.created.WithLabelValues(normalizeLabel(swapType)).Inc()
}

// IncTransition counts a status transition attempt.
func (m *SwapMetrics) IncTransition(status, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status), normalizeLabel(outcome)).Inc()
}

// AddPoints records points moved for a settlement party. Debits are recorded
// by magnitude.
func (m *SwapMetrics) AddPoints(party string, points int64) {
	if m == nil || m.pointsMoved == nil || points == 0 {
		return
	}
	if points < 0 {
		points = -points
	}
	m.pointsMoved.WithLabelValues(normalizeLabel(party)).Add(float64(points))
}

// ObserveSettlement records how long a completion took.
func (m *SwapMetrics) ObserveSettlement(swapType string, duration time.Duration) {
	if m == nil || m.settlement == nil {
		return
	}
	m.settlement.WithLabelValues(normalizeLabel(swapType)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
