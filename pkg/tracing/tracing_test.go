package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestParseExportersEmpty(t *testing.T) {
	specs, err := ParseExporters("")
	require.NoError(t, err)
	assert.Nil(t, specs)
}

func TestParseExportersMultiple(t *testing.T) {
	specs, err := ParseExporters("otlp+grpc://collector:4317?secure=true, console://stdout")
	require.NoError(t, err)
	require.Len(t, specs, 2)

	assert.Equal(t, SchemeOTLPGRPC, specs[0].Scheme)
	assert.Equal(t, "collector:4317", specs[0].Host)
	assert.True(t, specs[0].Secure)

	assert.Equal(t, SchemeConsole, specs[1].Scheme)
	assert.False(t, specs[1].Secure)
}

func TestParseExportersRejectsUnknownScheme(t *testing.T) {
	_, err := ParseExporters("zipkin://collector:9411")
	require.Error(t, err)
}

func TestParseExportersRejectsBadSecureValue(t *testing.T) {
	_, err := ParseExporters("otlp+http://collector:4318?secure=maybe")
	require.Error(t, err)
}

func TestSetupNoExportersInstallsNoop(t *testing.T) {
	tracer, shutdown, err := Setup(context.Background(), "wkflws-test", nil)
	require.NoError(t, err)
	require.NotNil(t, tracer)
	require.NoError(t, shutdown(context.Background()))
}

func TestInjectExtractMetadataRoundTrip(t *testing.T) {
	_, shutdown, err := Setup(context.Background(), "wkflws-test", []ExporterSpec{{Scheme: SchemeConsole}})
	require.NoError(t, err)
	defer shutdown(context.Background())

	ctx, span := otel.Tracer("wkflws-test").Start(context.Background(), "test-span")
	defer span.End()

	metadata := InjectMetadata(ctx, nil)
	assert.NotEmpty(t, metadata["traceparent"])

	extracted := ExtractMetadata(context.Background(), metadata)
	assert.NotEqual(t, context.Background(), extracted)
}
