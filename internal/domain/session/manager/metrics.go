// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ManuGH/rcsshare/internal/domain/session/model"
)

var (
	// Golden Signal: Lifecycle
	sessionEndTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rcs_session_end_total",
			Help: "Total number of finalized sharing sessions by state, reason and medium.",
		},
		[]string{"state", "reason", "medium"},
	)

	fsmTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rcs_fsm_transitions_total",
			Help: "Session state machine transitions",
		},
		[]string{"state_from", "state_to"},
	)

	fsmIgnoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rcs_fsm_ignored_events_total",
			Help: "Events dropped because the state machine forbids them in the current state",
		},
		[]string{"state", "event"},
	)

	// Duplicate teardown signals suppressed by the interruption guard.
	teardownSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rcs_session_teardown_suppressed_total",
			Help: "Teardown entry points that found the session already interrupted",
		},
		[]string{"entry"},
	)

	persistFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rcs_session_persist_failures_total",
			Help: "Failed writes of the durable session projection",
		},
		[]string{"state"},
	)

	inviteTimeoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rcs_session_invite_timeouts_total",
			Help: "Invitations that received no final answer in time",
		},
		[]string{"direction"},
	)

	finalResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rcs_session_final_responses_total",
			Help: "Final responses sent to received invitations",
		},
		[]string{"code", "result"},
	)

	capabilityRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rcs_capability_refresh_requests_total",
			Help: "Capability refreshes requested after session errors",
		},
		[]string{"trigger"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rcs_sessions_active",
			Help: "Sessions currently held by the registry",
		},
	)

	// Recovery
	recoveryRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rcs_recovery_records_total",
			Help: "Stale records processed by the startup reconciler",
		},
		[]string{"result", "from"},
	)

	recoveryRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rcs_recovery_runs_total",
			Help: "Startup reconciliation passes",
		},
		[]string{"result"},
	)

	recoveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rcs_recovery_duration_seconds",
			Help:    "Duration of the startup reconciliation pass",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
	)

	// Retention
	sweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rcs_retention_swept_records_total",
			Help: "Terminal records removed by the retention sweeper",
		},
	)
)

func recordTransition(from, to model.State) {
	fsmTransitions.WithLabelValues(string(from), string(to)).Inc()
}

func recordSessionEnd(state model.State, reason model.ReasonCode, medium model.Medium) {
	sessionEndTotal.WithLabelValues(string(state), string(reason), string(medium)).Inc()
}
