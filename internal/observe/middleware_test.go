package observe

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// middlewareSetup returns metrics on a manual reader and installs an
// in-memory tracer.
func middlewareSetup(t *testing.T) (*Metrics, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader, useTracer(t)
}

// testMux mimics the server's routes.
func testMux(status int, seen *http.Request) http.Handler {
	mux := http.NewServeMux()
	h := func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = *r
		}
		w.WriteHeader(status)
	}
	mux.HandleFunc("POST /api/command", h)
	mux.HandleFunc("GET /readyz", h)
	mux.HandleFunc("GET /items/{id}", h)
	return mux
}

func TestMiddleware_CorrelationAndPropagation(t *testing.T) {
	m, _, _ := middlewareSetup(t)

	tests := []struct {
		name        string
		traceparent string
		wantCID     string
	}{
		{name: "new trace"},
		{
			name:        "continued trace",
			traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
			wantCID:     "4bf92f3577b34da6a3ce929d0e0e4736",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen http.Request
			h := Middleware(m)(testMux(http.StatusOK, &seen))
			req := httptest.NewRequest(http.MethodPost, "/api/command", nil)
			if tt.traceparent != "" {
				req.Header.Set("traceparent", tt.traceparent)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			cid := CorrelationID(seen.Context())
			if len(cid) != 32 {
				t.Fatalf("handler correlation ID = %q", cid)
			}
			if tt.wantCID != "" && cid != tt.wantCID {
				t.Errorf("correlation ID = %q, want %q", cid, tt.wantCID)
			}
			if got := rec.Header().Get("X-Correlation-ID"); got != cid {
				t.Errorf("X-Correlation-ID = %q, want %q", got, cid)
			}
			if rec.Header().Get("traceparent") == "" {
				t.Error("traceparent not injected into response")
			}
		})
	}
}

func TestMiddleware_DeviceHeader(t *testing.T) {
	m, _, exp := middlewareSetup(t)
	var seen http.Request
	h := Middleware(m)(testMux(http.StatusOK, &seen))

	req := httptest.NewRequest(http.MethodPost, "/api/command", nil)
	req.Header.Set(DeviceHeader, "kitchen")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got := DeviceID(seen.Context()); got != "kitchen" {
		t.Errorf("DeviceID = %q, want kitchen", got)
	}
	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans", len(spans))
	}
	found := false
	for _, a := range spans[0].Attributes {
		if a.Key == "device.id" && a.Value.AsString() == "kitchen" {
			found = true
		}
	}
	if !found {
		t.Errorf("span attributes %v missing device.id", spans[0].Attributes)
	}
}

func TestMiddleware_RecordsRouteAndStatus(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		path      string
		status    int
		wantRoute string
	}{
		{"pattern with wildcard", http.MethodGet, "/items/42", http.StatusOK, "GET /items/{id}"},
		{"command", http.MethodPost, "/api/command", http.StatusBadRequest, "POST /api/command"},
		{"unmatched", http.MethodGet, "/nope", http.StatusNotFound, "unmatched"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, reader, exp := middlewareSetup(t)
			h := Middleware(m)(testMux(tt.status, nil))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}

			var rm metricdata.ResourceMetrics
			if err := reader.Collect(context.Background(), &rm); err != nil {
				t.Fatalf("Collect: %v", err)
			}
			met := findMetric(rm, "vesper.http.request.duration")
			if met == nil {
				t.Fatal("duration metric not recorded")
			}
			hist := met.Data.(metricdata.Histogram[float64])
			if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
				t.Fatalf("data points = %+v", hist.DataPoints)
			}
			attrs := hist.DataPoints[0].Attributes
			if v, _ := attrs.Value("route"); v.AsString() != tt.wantRoute {
				t.Errorf("route = %q, want %q", v.AsString(), tt.wantRoute)
			}
			if v, _ := attrs.Value("status"); v.AsInt64() != int64(tt.status) {
				t.Errorf("status attribute = %d, want %d", v.AsInt64(), tt.status)
			}

			spans := exp.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("recorded %d spans", len(spans))
			}
			var gotStatus int64
			for _, a := range spans[0].Attributes {
				if a.Key == "http.response.status_code" {
					gotStatus = a.Value.AsInt64()
				}
			}
			if gotStatus != int64(tt.status) {
				t.Errorf("span status = %d, want %d", gotStatus, tt.status)
			}
		})
	}
}

func TestMiddleware_ProbesLogAtDebug(t *testing.T) {
	m, _, _ := middlewareSetup(t)
	buf := captureLogs(t, slog.LevelInfo)
	h := Middleware(m)(testMux(http.StatusOK, nil))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if buf.Len() != 0 {
		t.Errorf("healthy probe logged at info: %s", buf.String())
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/command", nil))
	if !strings.Contains(buf.String(), "route=\"POST /api/command\"") {
		t.Errorf("command request not logged: %s", buf.String())
	}
}

func TestMiddleware_HijackUnsupported(t *testing.T) {
	m, _, _ := middlewareSetup(t)

	var hijackErr error
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("wrapped writer should implement http.Hijacker")
			return
		}
		_, _, hijackErr = hj.Hijack()
		w.WriteHeader(http.StatusOK)
	}))

	// httptest.ResponseRecorder cannot be hijacked.
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ws", nil))
	if hijackErr == nil {
		t.Error("expected hijack error from a recorder")
	}
}
