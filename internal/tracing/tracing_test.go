package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetup_StdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	p, err := Setup("storefront-test", ExporterStdout, &buf, nil)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "checkout.next")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "checkout.next")
	assert.Contains(t, buf.String(), "storefront-test")
}

func TestSetup_NoneStillIssuesTraceIDs(t *testing.T) {
	p, err := Setup("storefront-test", ExporterNone, nil, nil)
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	assert.True(t, span.SpanContext().TraceID().IsValid())
}

func TestSetup_UnknownExporter(t *testing.T) {
	_, err := Setup("storefront-test", "jaeger", nil, nil)
	assert.Error(t, err)
}
