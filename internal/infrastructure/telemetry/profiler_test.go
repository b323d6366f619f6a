package telemetry

import (
	"context"
	"runtime/pprof"
	"testing"

	"github.com/erp/wmssync/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := NewProfiler(config.ProfilerConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_Validation(t *testing.T) {
	_, err := NewProfiler(config.ProfilerConfig{Enabled: true, ApplicationName: "wmssync"}, nil)
	assert.Error(t, err)

	_, err = NewProfiler(config.ProfilerConfig{
		Enabled:         true,
		ServerAddress:   "http://localhost:4040",
		ApplicationName: "wmssync",
		ProfileTypes:    []string{"cpu", "heap"},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heap")
}

func TestParseProfileTypes(t *testing.T) {
	types, err := parseProfileTypes([]string{"cpu", "inuse_space", "goroutines"})
	require.NoError(t, err)
	assert.Len(t, types, 3)
}

func TestWithJobLabels(t *testing.T) {
	var kind, queue string
	var ran bool
	WithJobLabels(context.Background(), "wms-sync", "push-order", func(ctx context.Context) {
		ran = true
		kind, _ = pprof.Label(ctx, ProfilingLabelJobKind)
		queue, _ = pprof.Label(ctx, ProfilingLabelQueue)
	})
	assert.True(t, ran)
	assert.Equal(t, "push-order", kind)
	assert.Equal(t, "wms-sync", queue)
}

func TestProvider_EnableSpanProfiles(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	disabled := &Provider{logger: zap.NewNop()}
	disabled.EnableSpanProfiles()
	assert.Equal(t, prev, otel.GetTracerProvider())

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	p := &Provider{traces: tp, logger: zap.NewNop()}
	p.EnableSpanProfiles()

	_, isSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.False(t, isSDK, "the global provider is wrapped")
}
