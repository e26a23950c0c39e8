// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"time"

	"github.com/ManuGH/rcsshare/internal/domain/session/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rcs_store_ops_total",
			Help: "Total session store operations",
		},
		[]string{"backend", "op", "result"}, // result=success/error
	)
	storeLat = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rcs_store_op_seconds",
			Help:    "Session store operation latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)
)

// instrumentedStore wraps any StateStore to capture metrics.
type instrumentedStore struct {
	inner   StateStore
	backend string
}

func NewInstrumentedStore(inner StateStore, backend string) StateStore {
	return &instrumentedStore{inner: inner, backend: backend}
}

func (i *instrumentedStore) observe(op string, start time.Time, err error) {
	dur := time.Since(start).Seconds()
	res := "success"
	if err != nil {
		res = "error"
	}
	storeOps.WithLabelValues(i.backend, op, res).Inc()
	storeLat.WithLabelValues(i.backend, op).Observe(dur)
}

func (i *instrumentedStore) PutSession(ctx context.Context, rec *model.SessionRecord) (err error) {
	start := time.Now()
	defer func() { i.observe("put_session", start, err) }()
	return i.inner.PutSession(ctx, rec)
}

func (i *instrumentedStore) GetSession(ctx context.Context, contact, id string) (rec *model.SessionRecord, err error) {
	start := time.Now()
	defer func() { i.observe("get_session", start, err) }()
	return i.inner.GetSession(ctx, contact, id)
}

func (i *instrumentedStore) SetStateAndReason(ctx context.Context, contact, id string, state model.State, reason model.ReasonCode, now time.Time) (err error) {
	start := time.Now()
	defer func() { i.observe("set_state", start, err) }()
	return i.inner.SetStateAndReason(ctx, contact, id, state, reason, now)
}

func (i *instrumentedStore) ScanByStates(ctx context.Context, states []model.State, fn RowFunc) (err error) {
	start := time.Now()
	defer func() { i.observe("scan_by_states", start, err) }()
	return i.inner.ScanByStates(ctx, states, fn)
}

func (i *instrumentedStore) DeleteSession(ctx context.Context, contact, id string) (err error) {
	start := time.Now()
	defer func() { i.observe("delete_session", start, err) }()
	return i.inner.DeleteSession(ctx, contact, id)
}

func (i *instrumentedStore) DeleteTerminalBefore(ctx context.Context, t time.Time) (n int, err error) {
	start := time.Now()
	defer func() { i.observe("delete_terminal", start, err) }()
	return i.inner.DeleteTerminalBefore(ctx, t)
}

func (i *instrumentedStore) Close() error {
	return i.inner.Close()
}
