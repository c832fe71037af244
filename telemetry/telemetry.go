// Package telemetry wires OpenTelemetry tracing for the emulator binaries.
// Each Driver.Call becomes one span; spans are exported over OTLP/HTTP.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"github.com/colorfulnotion/rv32emu/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const DefaultServiceName = "rvemu"

// Provider owns the installed tracer provider. A disabled Provider is a
// no-op.
type Provider struct {
	tp       *sdktrace.TracerProvider
	disabled bool
}

// NewNoOpProvider leaves the global no-op tracer in place.
func NewNoOpProvider() *Provider {
	return &Provider{disabled: true}
}

// Init exports spans to endpoint, given as host:port (plain HTTP) or a
// full URL. An empty endpoint returns a no-op Provider.
func Init(ctx context.Context, endpoint, service string) (*Provider, error) {
	if endpoint == "" {
		return NewNoOpProvider(), nil
	}
	var opt otlptracehttp.Option
	if strings.Contains(endpoint, "://") {
		opt = otlptracehttp.WithEndpointURL(endpoint)
	} else {
		opt = otlptracehttp.WithEndpoint(endpoint)
	}
	opts := []otlptracehttp.Option{opt}
	if !strings.HasPrefix(endpoint, "https://") {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter for %s: %w", endpoint, err)
	}
	log.Info(log.CLIModule, "tracing enabled", "endpoint", endpoint, "service", service)
	return InitWithExporter(exp, service, sdktrace.WithBatcher(exp)), nil
}

// InitWithExporter installs a provider around exp. opts default to a
// synchronous span processor.
func InitWithExporter(exp sdktrace.SpanExporter, service string, opts ...sdktrace.TracerProviderOption) *Provider {
	if service == "" {
		service = DefaultServiceName
	}
	if len(opts) == 0 {
		opts = []sdktrace.TracerProviderOption{sdktrace.WithSyncer(exp)}
	}
	opts = append(opts, sdktrace.WithResource(resource.NewSchemaless(
		attribute.String("service.name", service),
	)))
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return &Provider{tp: tp}
}

func (p *Provider) Enabled() bool {
	return !p.disabled
}

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.disabled || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
