package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware("interview-test"))
	r.Get("/sessions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/sessions/abc", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	got := testutil.ToFloat64(requestsTotal.WithLabelValues("interview-test", "GET", "/sessions/{id}", "418"))
	assert.Equal(t, float64(1), got)
}

func TestMiddlewareCountsUnmatchedRoutes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware("interview-unmatched"))
	r.Get("/known", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(requestsTotal.WithLabelValues("interview-unmatched", "GET", "unmatched", "404")))
	assert.Equal(t, float64(0), testutil.ToFloat64(inFlight.WithLabelValues("interview-unmatched")))
}

func TestHandlerExposesDomainCounters(t *testing.T) {
	SessionJoins.WithLabelValues(OutcomeSuccess).Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "peerprep_interview_session_joins_total"))
}
