// Package observability wires OpenTelemetry tracing for the response
// pipeline. Spans produced by Genkit model and embedding calls are
// exported over OTLP HTTP to a local collector.
package observability

import (
	"context"
	"fmt"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/beatsync/beatsync/internal/log"
)

// DefaultEndpoint is the conventional local OTLP HTTP collector address.
const DefaultEndpoint = "localhost:4318"

// Config for trace exporting.
type Config struct {
	// Endpoint is the OTLP HTTP collector address, host:port.
	Endpoint string

	// Environment tags exported spans (dev, staging, prod).
	Environment string

	// ServiceName identifies this service in the trace backend.
	ServiceName string
}

// Setup registers an OTLP exporter with Genkit's TracerProvider so every
// model, embedding, and retrieval span reaches the collector.
//
// Setup fails loudly: a tracing endpoint was configured, so an exporter
// that cannot be built is a startup error rather than a silent downgrade.
func Setup(ctx context.Context, cfg Config, logger log.Logger) (shutdown func(context.Context) error, err error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return tracing.TracerProvider().Shutdown, nil
}
