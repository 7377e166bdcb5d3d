package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupRecorder(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return recorder, tp
}

func TestInitTracerWithoutEndpoint(t *testing.T) {
	tp, err := InitTracerWithEndpoint("communityanalyzer-test", "")
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	ctx, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	assert.Len(t, TraceIDFromContext(ctx), 32)
	assert.Len(t, SpanIDFromContext(ctx), 16)
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "collector:4317", stripScheme("http://collector:4317"))
	assert.Equal(t, "collector:4317", stripScheme("https://collector:4317"))
	assert.Equal(t, "collector:4317", stripScheme("collector:4317"))
}

func TestIDsWithoutSpan(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))
	assert.Empty(t, SpanIDFromContext(context.Background()))
}

func TestHTTPMiddleware(t *testing.T) {
	recorder, _ := setupRecorder(t)

	var traceID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = TraceIDFromContext(r.Context())
		SetSpanAttributes(r.Context(), attribute.String("campaign.id", "camp-1"))
		w.WriteHeader(http.StatusAccepted)
	})

	rec := httptest.NewRecorder()
	HTTPMiddleware("test")(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/campaigns/camp-1/analyze", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST /api/campaigns/camp-1/analyze", spans[0].Name())
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), traceID)

	var found bool
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "campaign.id" {
			found = kv.Value.AsString() == "camp-1"
		}
	}
	assert.True(t, found)
}

func TestHTTPMiddlewareContinuesIncomingTrace(t *testing.T) {
	recorder, tp := setupRecorder(t)

	ctx, parent := tp.Tracer("client").Start(context.Background(), "client")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	parent.End()

	HTTPMiddleware("test")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, parent.SpanContext().TraceID(), spans[1].SpanContext().TraceID())
	assert.Equal(t, parent.SpanContext().SpanID(), spans[1].Parent().SpanID())
}
