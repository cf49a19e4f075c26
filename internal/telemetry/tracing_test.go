package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/registration/internal/config"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), config.TracingConfig{}, "test")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitTracingNoneExporter(t *testing.T) {
	cfg := config.Defaults().Tracing
	cfg.Enabled = true

	shutdown, err := InitTracing(context.Background(), cfg, "test")
	require.NoError(t, err)

	_, span := Tracer("test").Start(context.Background(), "op")
	span.End()
	require.NoError(t, shutdown(context.Background()))
}

func TestInitTracingRejectsBadConfig(t *testing.T) {
	cfg := config.TracingConfig{Enabled: true, Exporter: "zipkin", SampleRate: 1}
	_, err := InitTracing(context.Background(), cfg, "test")
	require.Error(t, err)

	cfg = config.TracingConfig{Enabled: true, Exporter: "none", SampleRate: 1.5}
	_, err = InitTracing(context.Background(), cfg, "test")
	require.Error(t, err)
}
