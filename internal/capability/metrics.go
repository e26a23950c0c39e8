// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rcs_capability_requests_total",
		Help: "Capability refresh requests by outcome",
	},
	[]string{"result"},
)

const (
	resultQueued  = "queued"
	resultDropped = "dropped"
	resultDeduped = "deduped"
	resultSent    = "sent"
	resultFailed  = "failed"
	resultShed    = "shed"
)
