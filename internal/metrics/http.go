package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by route pattern and status.",
	}, []string{"service", "method", "route", "code"})

	requestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"service", "method", "route"})

	responseBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "http_response_size_bytes",
		Help:      "HTTP response body size.",
		Buckets:   prometheus.ExponentialBuckets(64, 4, 7),
	}, []string{"service", "route"})

	inFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "http_in_flight_requests",
		Help:      "Requests currently being served.",
	}, []string{"service"})
)

// statusWriter captures the status code and body size of a response.
type statusWriter struct {
	http.ResponseWriter
	code    int
	written int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

// Middleware records per-route request metrics. Routes are labelled by chi
// pattern, so /api/v1/sessions/{id} is one series regardless of id.
func Middleware(service string) func(http.Handler) http.Handler {
	gauge := inFlight.WithLabelValues(service)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			gauge.Inc()
			start := time.Now()
			defer func() {
				gauge.Dec()
				route := routePattern(r)
				requestsTotal.WithLabelValues(service, r.Method, route, strconv.Itoa(sw.code)).Inc()
				requestSeconds.WithLabelValues(service, r.Method, route).Observe(time.Since(start).Seconds())
				responseBytes.WithLabelValues(service, route).Observe(float64(sw.written))
			}()
			next.ServeHTTP(sw, r)
		})
	}
}

// routePattern is read after the handler ran, once chi has filled it in.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

func Handler() http.Handler {
	return promhttp.Handler()
}
