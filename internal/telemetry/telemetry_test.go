package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Pris83/retirement-calculator/internal/domain"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	tp := otel.GetTracerProvider()
	prop := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func TestSetupEnabled(t *testing.T) {
	restoreGlobals(t)

	recorder := tracetest.NewSpanRecorder()
	shutdown, err := Setup(domain.TracingConfig{Enabled: true, ServiceName: "retirement-test"},
		sdktrace.WithSpanProcessor(recorder))
	require.NoError(t, err)
	defer shutdown(context.Background())

	ctx, span := otel.Tracer("test").Start(context.Background(), "calculate")
	assert.True(t, span.SpanContext().IsValid())

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	assert.Contains(t, carrier.Get("traceparent"), span.SpanContext().TraceID().String())
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "calculate", ended[0].Name())

	var service string
	for _, kv := range ended[0].Resource().Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	assert.Equal(t, "retirement-test", service)
}

func TestSetupDisabled(t *testing.T) {
	restoreGlobals(t)

	before := otel.GetTracerProvider()
	shutdown, err := Setup(domain.TracingConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	assert.Equal(t, before, otel.GetTracerProvider())
	assert.ElementsMatch(t, []string{"traceparent", "tracestate", "baggage"}, otel.GetTextMapPropagator().Fields())
}
