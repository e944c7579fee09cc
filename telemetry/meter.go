package telemetry

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/gruntwork-io/lz-teardown/internal/errors"
)

type Meter struct {
	metric.Meter
	provider *sdkmetric.MeterProvider
	exporter sdkmetric.Exporter
}

// NewMeter creates and configures the metrics collection. It returns nil when no exporter is configured.
func NewMeter(ctx context.Context, appName, appVersion string, writer io.Writer, opts *Options) (*Meter, error) {
	exporter, err := NewMetricsExporter(ctx, writer, opts)
	if err != nil {
		return nil, errors.New(err)
	}

	if exporter == nil {
		return nil, nil
	}

	r, err := newResource(appName, appVersion)
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(r),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)

	otel.SetMeterProvider(provider)

	return &Meter{
		Meter:    provider.Meter(appName),
		provider: provider,
		exporter: exporter,
	}, nil
}

// NewMetricsExporter creates a new exporter based on the telemetry options.
func NewMetricsExporter(ctx context.Context, writer io.Writer, opts *Options) (sdkmetric.Exporter, error) {
	switch opts.MetricExporter {
	case "", noneExporterType:
		return nil, nil
	case otlpHTTPExporterType:
		var config []otlpmetrichttp.Option
		if opts.MetricExporterInsecureEndpoint {
			config = append(config, otlpmetrichttp.WithInsecure())
		}

		return otlpmetrichttp.New(ctx, config...)
	case otlpGrpcExporterType:
		var config []otlpmetricgrpc.Option
		if opts.MetricExporterInsecureEndpoint {
			config = append(config, otlpmetricgrpc.WithInsecure())
		}

		return otlpmetricgrpc.New(ctx, config...)
	case consoleExporterType:
		return stdoutmetric.New(stdoutmetric.WithWriter(writer))
	}

	return nil, &ErrorUnknownExporter{Kind: "metric", Name: opts.MetricExporter}
}

// Time records the duration of fn in a histogram named after the operation, and counts failures.
func (meter *Meter) Time(ctx context.Context, name string, attrs map[string]any, fn func(childCtx context.Context) error) error {
	if meter == nil || meter.exporter == nil || meter.provider == nil {
		return fn(ctx)
	}

	metricAttrs := metric.WithAttributes(mapToAttributes(attrs)...)
	start := time.Now()
	err := fn(ctx)

	if histogram, histErr := meter.Int64Histogram(CleanMetricName(name+"_duration"), metric.WithUnit("ms")); histErr == nil {
		histogram.Record(ctx, time.Since(start).Milliseconds(), metricAttrs)
	}

	if err != nil {
		meter.Count(ctx, name+"_errors", 1)
	}

	return err
}

// Count adds value to the counter named name.
func (meter *Meter) Count(ctx context.Context, name string, value int64) {
	if meter == nil || meter.provider == nil {
		return
	}

	if counter, err := meter.Int64Counter(CleanMetricName(name)); err == nil {
		counter.Add(ctx, value)
	}
}
