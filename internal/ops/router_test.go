// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ops

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/rcsshare/internal/health"
)

type staticChecker struct {
	status health.Status
}

func (s staticChecker) Name() string { return "static" }
func (s staticChecker) Check(context.Context) health.CheckResult {
	return health.CheckResult{Status: s.status}
}

func serve(h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Probes(t *testing.T) {
	hm := health.NewManager("test")
	hm.RegisterChecker(staticChecker{status: health.StatusUnhealthy})
	r := NewRouter(RouterConfig{Health: hm})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodGet, "/readyz", nil).Code)

	rec := serve(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rcs_http_requests_in_flight")
}

func TestRouter_RequestIDEchoed(t *testing.T) {
	r := NewRouter(RouterConfig{Health: health.NewManager("test")})

	rec := serve(r, http.MethodGet, "/healthz", http.Header{HeaderRequestID: {"req-42"}})
	assert.Equal(t, "req-42", rec.Header().Get(HeaderRequestID))

	rec = serve(r, http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestRouter_RateLimit(t *testing.T) {
	r := NewRouter(RouterConfig{Health: health.NewManager("test"), RateLimit: 2, RateWindow: time.Minute})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthz", nil).Code)
	}
	rec := serve(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRouter_UnknownRoute(t *testing.T) {
	r := NewRouter(RouterConfig{})
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/sessions", nil).Code)
}

func TestRecoverer(t *testing.T) {
	h := RequestID(Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := serve(h, http.MethodGet, "/x", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
}
