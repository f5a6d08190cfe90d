package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the agent.
// Uses a custom registry, no global state. A nil *Metrics is valid and
// records nothing, so call sites need no enabled checks.
type Metrics struct {
	Registry *prometheus.Registry

	// Command execution.
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec

	// Guard decisions.
	GuardRejectionsTotal *prometheus.CounterVec

	// Agent loop.
	PollCyclesTotal *prometheus.CounterVec
	HeartbeatsTotal *prometheus.CounterVec

	// Shell execution.
	ShellDuration          prometheus.Histogram
	OutputTruncationsTotal prometheus.Counter
}

// NewMetrics creates a Metrics collector with everything registered on a
// fresh prometheus.Registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "remora",
			Subsystem: "command",
			Name:      "executions_total",
			Help:      "Total remote commands executed.",
		}, []string{"type", "status"}),

		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "remora",
			Subsystem: "command",
			Name:      "execution_duration_seconds",
			Help:      "Remote command execution duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"type"}),

		GuardRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "remora",
			Subsystem: "guard",
			Name:      "rejections_total",
			Help:      "Total commands rejected by a safety guard.",
		}, []string{"guard"}),

		PollCyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "remora",
			Subsystem: "agent",
			Name:      "poll_cycles_total",
			Help:      "Total poll ticks by outcome (ok, error, skipped).",
		}, []string{"project", "outcome"}),

		HeartbeatsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "remora",
			Subsystem: "agent",
			Name:      "heartbeats_total",
			Help:      "Total heartbeat attempts by status.",
		}, []string{"project", "status"}),

		ShellDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "remora",
			Subsystem: "shell",
			Name:      "duration_seconds",
			Help:      "Subprocess wall time in seconds.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),

		OutputTruncationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "remora",
			Subsystem: "shell",
			Name:      "output_truncations_total",
			Help:      "Total executions whose output hit the byte cap.",
		}),
	}

	reg.MustRegister(
		m.CommandsTotal,
		m.CommandDuration,
		m.GuardRejectionsTotal,
		m.PollCyclesTotal,
		m.HeartbeatsTotal,
		m.ShellDuration,
		m.OutputTruncationsTotal,
	)

	return m
}

// RecordCommand records one command execution.
func (m *Metrics) RecordCommand(cmdType, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(cmdType, status).Inc()
	m.CommandDuration.WithLabelValues(cmdType).Observe(d.Seconds())
}

// RecordGuardRejection records a rejection by the named guard.
func (m *Metrics) RecordGuardRejection(guard string) {
	if m == nil {
		return
	}
	m.GuardRejectionsTotal.WithLabelValues(guard).Inc()
}

// RecordPollCycle records one poll tick outcome.
func (m *Metrics) RecordPollCycle(project, outcome string) {
	if m == nil {
		return
	}
	m.PollCyclesTotal.WithLabelValues(project, outcome).Inc()
}

// RecordHeartbeat records one heartbeat attempt.
func (m *Metrics) RecordHeartbeat(project, status string) {
	if m == nil {
		return
	}
	m.HeartbeatsTotal.WithLabelValues(project, status).Inc()
}

// RecordShell records subprocess wall time and whether output was truncated.
func (m *Metrics) RecordShell(d time.Duration, truncated bool) {
	if m == nil {
		return
	}
	m.ShellDuration.Observe(d.Seconds())
	if truncated {
		m.OutputTruncationsTotal.Inc()
	}
}
