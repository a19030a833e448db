// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chessmatch"

// Metrics groups the collectors exported on /metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	QueueLength   prometheus.Gauge
	ActiveRooms   prometheus.Gauge
	GamesResolved *prometheus.CounterVec
	Reconnects    prometheus.Counter
	GraceExpiries prometheus.Counter
	EarlyLeaves   prometheus.Counter
	StoreFailures *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Connections waiting in the public matchmaking queue.",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Rooms currently held in memory.",
		}),
		GamesResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_resolved_total",
			Help:      "Finished games by how they ended.",
		}, []string{"outcome"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Participants re-attached to their room within the grace period.",
		}),
		GraceExpiries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grace_expiries_total",
			Help:      "Grace periods that ran out before the participant returned.",
		}),
		EarlyLeaves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "early_leave_wins_total",
			Help:      "Leaves scored as a win while the opponent was still inside its grace period.",
		}),
		StoreFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_failures_total",
			Help:      "Store writes that failed after all retries.",
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.QueueLength, m.ActiveRooms, m.GamesResolved, m.Reconnects, m.GraceExpiries, m.EarlyLeaves, m.StoreFailures)
	}
	return m
}

func (m *Metrics) SetQueueLength(n int) {
	if m == nil {
		return
	}
	m.QueueLength.Set(float64(n))
}

func (m *Metrics) SetActiveRooms(n int) {
	if m == nil {
		return
	}
	m.ActiveRooms.Set(float64(n))
}

// GameResolved counts a finished game. outcome is one of checkmate, stalemate, draw, leave, timeout, void.
func (m *Metrics) GameResolved(outcome string) {
	if m == nil {
		return
	}
	m.GamesResolved.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Reconnected() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

func (m *Metrics) GraceExpired() {
	if m == nil {
		return
	}
	m.GraceExpiries.Inc()
}

func (m *Metrics) EarlyLeaveWin() {
	if m == nil {
		return
	}
	m.EarlyLeaves.Inc()
}

func (m *Metrics) StoreFailed(op string) {
	if m == nil {
		return
	}
	m.StoreFailures.WithLabelValues(op).Inc()
}
