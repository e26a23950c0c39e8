// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

func restoreGlobalProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestNewProvider_DisabledRecordsNothing(t *testing.T) {
	restoreGlobalProvider(t)

	p, err := NewProvider(context.Background(), Config{ServiceName: "rcsshare", ExporterType: "grpc"})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))

	_, span := SessionTracer().Start(context.Background(), "session.start")
	defer span.End()
	assert.False(t, span.IsRecording())
}

func TestProvider_ZeroValueIsDisabled(t *testing.T) {
	var nilProvider *Provider
	assert.False(t, nilProvider.Enabled())
	assert.NoError(t, nilProvider.Shutdown(context.Background()))
	assert.NoError(t, (&Provider{}).Shutdown(context.Background()))
}

func TestNewProvider_UnsupportedExporter(t *testing.T) {
	restoreGlobalProvider(t)

	_, err := NewProvider(context.Background(), Config{Enabled: true, ServiceName: "rcsshare", ExporterType: "kafka"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported exporter type "kafka"`)
}

func TestNewProvider_SessionSpansAreRecorded(t *testing.T) {
	restoreGlobalProvider(t)

	p, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "rcsshare",
		ExporterType: "http",
		Endpoint:     "127.0.0.1:4318",
		Insecure:     true,
		SamplingRate: 1,
		IMSDomain:    "ims.example.net",
	})
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	_, span := SessionTracer().Start(context.Background(), "session.start",
		trace.WithAttributes(SessionAttributes("s-1", "tel:+15550100", "file")...))
	assert.True(t, span.IsRecording())
	assert.True(t, span.SpanContext().IsSampled())
	span.End()

	// No collector listens here, so the final flush may fail.
	_ = p.Shutdown(context.Background())
}

func TestNewResource_NamesSharingService(t *testing.T) {
	res, err := newResource(context.Background(), Config{
		ServiceName:    "rcsshare",
		ServiceVersion: "1.2.3",
		Environment:    "staging",
		IMSDomain:      "ims.example.net",
	})
	require.NoError(t, err)

	got := map[attribute.Key]string{}
	for _, kv := range res.Attributes() {
		got[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "rcsshare", got[semconv.ServiceNameKey])
	assert.Equal(t, ServiceNamespace, got[semconv.ServiceNamespaceKey])
	assert.Equal(t, "1.2.3", got[semconv.ServiceVersionKey])
	assert.Equal(t, "staging", got[semconv.DeploymentEnvironmentKey])
	assert.Equal(t, "ims.example.net", got[IMSDomainKey])
	assert.NotEmpty(t, got[semconv.HostNameKey])
}

func TestNewResource_OmitsUnsetVersionAndDomain(t *testing.T) {
	res, err := newResource(context.Background(), Config{ServiceName: "rcsshare"})
	require.NoError(t, err)

	set := res.Set()
	_, hasVersion := set.Value(semconv.ServiceVersionKey)
	_, hasDomain := set.Value(IMSDomainKey)
	assert.False(t, hasVersion)
	assert.False(t, hasDomain)
}

func TestNewSampler_FollowsSessionSpan(t *testing.T) {
	sampledParent := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
	}))

	tests := []struct {
		name     string
		rate     float64
		ctx      context.Context
		expected sdktrace.SamplingDecision
	}{
		{"never samples a new session", 0, context.Background(), sdktrace.Drop},
		{"always samples a new session", 1, context.Background(), sdktrace.RecordAndSample},
		{"rate above one is always", 2, context.Background(), sdktrace.RecordAndSample},
		{"child of sampled session kept at zero rate", 0, sampledParent, sdktrace.RecordAndSample},
		{"child of sampled session kept at partial rate", 0.01, sampledParent, sdktrace.RecordAndSample},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newSampler(tt.rate).ShouldSample(sdktrace.SamplingParameters{
				ParentContext: tt.ctx,
				TraceID:       trace.TraceID{2},
				Name:          "session.transition",
			})
			assert.Equal(t, tt.expected, res.Decision)
		})
	}
}
