// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Signaling and media websocket connections
	TransportConnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rcs_transport_connects_total",
		Help: "Websocket dial attempts by channel and result",
	}, []string{"channel", "result"})

	TransportFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rcs_transport_frames_total",
		Help: "Websocket frames by channel and direction",
	}, []string{"channel", "direction"})

	TransportErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rcs_transport_errors_total",
		Help: "Websocket read/write failures by channel",
	}, []string{"channel", "op"})

	EventStreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rcs_event_stream_clients",
		Help: "Connected session event stream clients",
	})
)

func IncFrame(channel, direction string) {
	TransportFrames.WithLabelValues(channel, direction).Inc()
}

func IncTransportError(channel, op string) {
	TransportErrors.WithLabelValues(channel, op).Inc()
}
