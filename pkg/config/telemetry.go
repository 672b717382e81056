package config

import (
	"context"
	"errors"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mpapenbr/fieldapp-client/log"
	"github.com/mpapenbr/fieldapp-client/version"
)

const StdoutEndpoint = "stdout"

type Telemetry struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// Shutdown flushes pending spans and metrics
func (t *Telemetry) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := errors.Join(t.tp.Shutdown(ctx), t.mp.Shutdown(ctx)); err != nil {
		log.Warn("error shutting down telemetry", log.ErrorField(err))
	}
}

// SetupTelemetry installs global tracer and meter providers exporting to endpoint.
// With StdoutEndpoint the data is printed to stderr.
func SetupTelemetry(ctx context.Context, endpoint string) (*Telemetry, error) {
	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", "fac"),
			attribute.String("service.version", version.Version),
		))
	if err != nil {
		return nil, err
	}

	var (
		spanExporter   sdktrace.SpanExporter
		metricExporter sdkmetric.Exporter
	)
	if endpoint == StdoutEndpoint {
		if spanExporter, err = stdouttrace.New(
			stdouttrace.WithWriter(os.Stderr),
			stdouttrace.WithPrettyPrint()); err != nil {
			return nil, err
		}
		if metricExporter, err = stdoutmetric.New(
			stdoutmetric.WithWriter(os.Stderr)); err != nil {
			return nil, err
		}
	} else {
		if spanExporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure()); err != nil {
			return nil, err
		}
		if metricExporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure()); err != nil {
			return nil, err
		}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res))

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))
	log.Debug("telemetry enabled", log.String("endpoint", endpoint))
	return &Telemetry{tp: tp, mp: mp}, nil
}
