// Package tracing is an optional span-creation and cross-process
// trace-context propagation shim: it parses the TRACING_EXPORTERS
// configuration grammar, wires the matching OpenTelemetry exporters,
// and carries W3C trace context across an Event's metadata map.
package tracing

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/lyzr/wkflws/pkg/wkerrors"
)

// Scheme is one of the supported exporter schemes.
type Scheme string

const (
	SchemeOTLPHTTP  Scheme = "otlp+http"
	SchemeOTLPHTTPS Scheme = "otlp+https"
	SchemeOTLPGRPC  Scheme = "otlp+grpc"
	SchemeConsole   Scheme = "console"
)

// ExporterSpec is one parsed entry of TRACING_EXPORTERS.
type ExporterSpec struct {
	Scheme Scheme
	Host   string
	Secure bool
}

// ParseExporters parses a comma-separated TRACING_EXPORTERS value, one
// entry per exporter: "otlp+http://host", "otlp+grpc://host?secure=true",
// "console://host". Host is ignored for the console scheme but the
// "://" separator is still required, matching the URL-shaped grammar.
func ParseExporters(raw string) ([]ExporterSpec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var specs []ExporterSpec
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		u, err := url.Parse(entry)
		if err != nil {
			return nil, &wkerrors.ConfigurationError{Field: "TRACING_EXPORTERS", Msg: fmt.Sprintf("malformed exporter URL %q: %v", entry, err)}
		}
		scheme := Scheme(u.Scheme)
		switch scheme {
		case SchemeOTLPHTTP, SchemeOTLPHTTPS, SchemeOTLPGRPC, SchemeConsole:
		default:
			return nil, &wkerrors.ConfigurationError{Field: "TRACING_EXPORTERS", Msg: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
		}

		secure := false
		if v := u.Query().Get("secure"); v != "" {
			secure, err = strconv.ParseBool(v)
			if err != nil {
				return nil, &wkerrors.ConfigurationError{Field: "TRACING_EXPORTERS", Msg: fmt.Sprintf("invalid secure= value in %q: %v", entry, err)}
			}
		}

		specs = append(specs, ExporterSpec{Scheme: scheme, Host: u.Host, Secure: secure})
	}
	return specs, nil
}

// Setup builds a TracerProvider from the parsed exporter specs and
// installs it as the global provider. When specs is empty, it installs
// a no-op provider (tracing disabled) and returns a no-op shutdown.
func Setup(ctx context.Context, resourceName string, specs []ExporterSpec) (trace.Tracer, func(context.Context) error, error) {
	if len(specs) == 0 {
		provider := noop.NewTracerProvider()
		otel.SetTracerProvider(provider)
		return provider.Tracer(resourceName), func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(semconv.ServiceName(resourceName)))
	if err != nil {
		return nil, nil, fmt.Errorf("build tracing resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	for _, spec := range specs {
		exporter, err := buildExporter(ctx, spec)
		if err != nil {
			return nil, nil, err
		}
		provider.RegisterSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter))
	}

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return provider.Tracer(resourceName), provider.Shutdown, nil
}

func buildExporter(ctx context.Context, spec ExporterSpec) (sdktrace.SpanExporter, error) {
	switch spec.Scheme {
	case SchemeConsole:
		return stdouttrace.New()
	case SchemeOTLPHTTP, SchemeOTLPHTTPS:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(spec.Host)}
		if spec.Scheme == SchemeOTLPHTTP {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	case SchemeOTLPGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(spec.Host)}
		if !spec.Secure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	}
	return nil, &wkerrors.ConfigurationError{Field: "TRACING_EXPORTERS", Msg: "unreachable scheme"}
}

// InjectMetadata writes the active span's W3C trace context into a
// string-keyed metadata map (Event.Metadata), creating the map if nil.
func InjectMetadata(ctx context.Context, metadata map[string]string) map[string]string {
	if metadata == nil {
		metadata = map[string]string{}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(metadata))
	return metadata
}

// ExtractMetadata reconstructs a context carrying the remote span
// context encoded in metadata, for a consumer to resume the trace.
func ExtractMetadata(ctx context.Context, metadata map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(metadata))
}
