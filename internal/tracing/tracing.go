// Package tracing installs the process-wide OpenTelemetry tracer provider.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"storefront/internal/logging"
)

const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// Provider owns the installed tracer provider.
type Provider struct {
	*sdktrace.TracerProvider
	logger *zap.Logger
}

// Setup builds a tracer provider for the named exporter and installs it,
// together with the W3C trace-context propagator, as the global default.
// With ExporterNone spans still carry trace ids for log correlation and
// outbound propagation but are not exported. w defaults to stdout.
func Setup(service, exporter string, w io.Writer, logger *zap.Logger) (*Provider, error) {
	logger = logging.OrNop(logger)
	if w == nil {
		w = os.Stdout
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", service))),
	}
	switch exporter {
	case "", ExporterNone:
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("stdout exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", exporter)
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(Propagator())
	logger.Info("tracing enabled", zap.String("exporter", exporterName(exporter)))
	return &Provider{TracerProvider: tp, logger: logger}, nil
}

// Propagator is the propagator used for inbound and outbound requests.
func Propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.TracerProvider.Shutdown(ctx); err != nil {
		p.logger.Warn("tracer shutdown", zap.Error(err))
		return err
	}
	return nil
}

func exporterName(e string) string {
	if e == "" {
		return ExporterNone
	}
	return e
}
