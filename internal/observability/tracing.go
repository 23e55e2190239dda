// Package observability wires OpenTelemetry trace export into genkit.
//
// Genkit instruments every flow, model call, and tool invocation with OTel
// spans on its own TracerProvider. This package attaches an OTLP/HTTP
// exporter to that provider so the spans reach a collector (otel-collector,
// Jaeger, or a vendor agent speaking OTLP on :4318).
//
// Tracing is opt-in: with no endpoint configured, Setup is a no-op and the
// application runs without any export machinery.
//
// Configuration (~/.lectern/config.yaml):
//
//	tracing:
//	  endpoint: "localhost:4318"
//	  service: "lectern"
//	  environment: "dev"
//
// Verify the collector is reachable with:
//
//	curl -v http://localhost:4318/v1/traces
package observability

import (
	"context"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/lectern-ai/lectern/internal/log"
)

// Config for OTLP trace export.
type Config struct {
	// Endpoint is the OTLP HTTP collector address (host:port).
	// Empty disables trace export entirely.
	Endpoint string
	// Service is the service name attached to exported spans.
	Service string
	// Environment is the deployment environment tag (dev, staging, prod).
	Environment string
}

// Setup registers an OTLP exporter with genkit's TracerProvider.
//
// Returns a shutdown function that flushes pending spans. With no endpoint
// configured, or when the exporter cannot be built, tracing stays disabled
// and the returned shutdown is a no-op; span export failures never break
// the application.
func Setup(ctx context.Context, cfg Config, logger log.Logger) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if cfg.Endpoint == "" {
		logger.Debug("tracing disabled, no collector endpoint configured")
		return noop, nil
	}

	// Genkit's TracerProvider builds its resource from the environment, so
	// the service name and environment tag travel via OTEL_* variables.
	if cfg.Service != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.Service)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(), // collector runs co-located, no TLS
	)
	if err != nil {
		logger.Warn("creating OTLP exporter failed, tracing disabled", "error", err)
		return noop, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"endpoint", cfg.Endpoint,
		"service", cfg.Service,
		"environment", cfg.Environment,
	)

	// Emit one span immediately so a misconfigured pipeline shows up at
	// startup instead of after the first query.
	tracer := tracing.TracerProvider().Tracer("lectern-init")
	_, span := tracer.Start(ctx, "lectern.init")
	span.End()

	return tracing.TracerProvider().Shutdown, nil
}
