package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitNone(t *testing.T) {
	shutdown, err := Init(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitStdout(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.MetricExporter = "stdout"
	cfg.TraceExporter = "stdout"
	cfg.Writer = &buf

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)

	counter, err := otel.Meter("test").Int64Counter("birdee_test_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
	_, span := otel.Tracer("test").Start(context.Background(), "span")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "birdee_test_total")
}

func TestUnknownExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MetricExporter = "carrier-pigeon"
	_, err := Init(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrUnknownExporter)

	_, err = Init(nil, cfg)
	assert.ErrorIs(t, err, ErrNilContext)
}
