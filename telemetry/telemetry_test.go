package telemetry_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"

	"github.com/gruntwork-io/lz-teardown/telemetry"
)

func TestNewTraceExporter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	http, err := otlptracehttp.New(ctx)
	require.NoError(t, err)

	stdout, err := stdouttrace.New()
	require.NoError(t, err)

	testCases := []struct {
		name         string
		opts         *telemetry.Options
		expectedType any
		expectError  bool
	}{
		{
			name:         "otlp http",
			opts:         &telemetry.Options{TraceExporter: "otlpHttp"},
			expectedType: http,
		},
		{
			name:         "custom http endpoint",
			opts:         &telemetry.Options{TraceExporter: "http", TraceExporterHTTPEndpoint: "localhost:4318"},
			expectedType: http,
		},
		{
			name:        "custom http without endpoint",
			opts:        &telemetry.Options{TraceExporter: "http"},
			expectError: true,
		},
		{
			name:         "console",
			opts:         &telemetry.Options{TraceExporter: "console"},
			expectedType: stdout,
		},
		{
			name: "none",
			opts: &telemetry.Options{TraceExporter: "none"},
		},
		{
			name:        "unknown",
			opts:        &telemetry.Options{TraceExporter: "zipkin"},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			exporter, err := telemetry.NewTraceExporter(ctx, io.Discard, tc.opts)
			if tc.expectError {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)

			if tc.expectedType == nil {
				assert.Nil(t, exporter)
				return
			}

			assert.IsType(t, tc.expectedType, exporter)
		})
	}
}

func TestParseTraceParent(t *testing.T) {
	t.Parallel()

	spanContext, err := telemetry.ParseTraceParent("00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")
	require.NoError(t, err)

	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", spanContext.TraceID().String())
	assert.Equal(t, "b7ad6b7169203331", spanContext.SpanID().String())
	assert.True(t, spanContext.IsSampled())

	_, err = telemetry.ParseTraceParent("00-abc")
	require.Error(t, err)
}

func TestCollectWithoutExporterRunsFunction(t *testing.T) {
	t.Parallel()

	tlm, err := telemetry.NewTelemeter(context.Background(), "lz-teardown", "test", io.Discard, &telemetry.Options{})
	require.NoError(t, err)

	expected := errors.New("boom")

	var called bool

	err = tlm.Collect(context.Background(), "delete_stack", map[string]any{"stack": "s"}, func(context.Context) error {
		called = true
		return expected
	})

	assert.True(t, called)
	require.ErrorIs(t, err, expected)
	require.NoError(t, tlm.Shutdown(context.Background()))
}

func TestConsoleTracerWritesSpans(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	tlm, err := telemetry.NewTelemeter(context.Background(), "lz-teardown", "test", &buf, &telemetry.Options{TraceExporter: "console"})
	require.NoError(t, err)

	err = tlm.Collect(context.Background(), "uninstall", map[string]any{"scope": "full", "steps": 3}, func(context.Context) error {
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, tlm.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name":"uninstall"`)
}

func TestTelemeterFromContext(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, telemetry.TelemeterFromContext(context.Background()))

	tlm := &telemetry.Telemeter{}
	ctx := telemetry.ContextWithTelemeter(context.Background(), tlm)
	assert.Same(t, tlm, telemetry.TelemeterFromContext(ctx))
}

func TestCleanMetricName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "delete_stack_duration", telemetry.CleanMetricName("delete stack__duration"))
	assert.Equal(t, "step_10.2", telemetry.CleanMetricName("_step 10.2_"))
}
