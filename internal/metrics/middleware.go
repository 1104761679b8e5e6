package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mushi",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mushi",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpUploadBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mushi",
			Name:      "http_request_size_bytes",
			Help:      "Declared request body size",
			Buckets:   prometheus.ExponentialBuckets(1<<10, 4, 8),
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpUploadBytes)
}

// Middleware records HTTP request duration, count and upload size.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			// chi route pattern keeps label cardinality bounded
			path := normalizePath(chi.RouteContext(r.Context()).RoutePattern())

			httpRequestDuration.WithLabelValues(r.Method, path, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
			if r.ContentLength > 0 {
				httpUploadBytes.WithLabelValues(path).Observe(float64(r.ContentLength))
			}
		})
	}
}

func normalizePath(path string) string {
	if path == "" {
		return "unknown"
	}
	return path
}
