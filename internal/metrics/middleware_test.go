package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_RecordsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/predict", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"boletus_edulis":0.9}`))
	})

	req := httptest.NewRequest("POST", "/predict", strings.NewReader("payload"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	if v := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/predict", "200")); v < 1 {
		t.Errorf("expected http_requests_total >= 1, got %f", v)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected http_request_duration_seconds to have observations")
	}
	if testutil.CollectAndCount(httpUploadBytes) == 0 {
		t.Error("expected http_request_size_bytes to have observations")
	}
}

func TestMiddleware_StatusCodes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	r.Get("/bad", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	tests := []struct {
		path   string
		status string
	}{
		{"/", "200"},
		{"/health", "503"},
		{"/bad", "400"},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, http.NoBody)
			r.ServeHTTP(httptest.NewRecorder(), req)

			if v := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", tc.path, tc.status)); v < 1 {
				t.Errorf("expected requests_total for %s with status %s >= 1, got %f", tc.path, tc.status, v)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	if got := normalizePath(""); got != "unknown" {
		t.Errorf("normalizePath(\"\") = %q", got)
	}
	if got := normalizePath("/predict"); got != "/predict" {
		t.Errorf("normalizePath(/predict) = %q", got)
	}
}

func TestRegisterInferenceMetrics_Idempotent(t *testing.T) {
	RegisterInferenceMetrics()
	RegisterInferenceMetrics()

	InferenceRequestsTotal.WithLabelValues("ok").Inc()
	if v := testutil.ToFloat64(InferenceRequestsTotal.WithLabelValues("ok")); v < 1 {
		t.Errorf("expected inference counter >= 1, got %f", v)
	}
}
