package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareLabelsByRoute(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/rankings/{season}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[]"))
	})
	r.Post("/v1/games/{gameKey}/lineups/crawl", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	okBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "200"))
	failBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPost, "502"))
	missBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "404"))

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/v1/rankings/2025", nil),
		httptest.NewRequest(http.MethodGet, "/v1/rankings/2024", nil),
		httptest.NewRequest(http.MethodPost, "/v1/games/20250701LTOB0/lineups/crawl", nil),
		httptest.NewRequest(http.MethodGet, "/no/such/route", nil),
		httptest.NewRequest(http.MethodGet, "/metrics", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	// implicit 200 from Write, and the /metrics scrape is excluded
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "200")) - okBefore; got != 2 {
		t.Fatalf("GET 200 delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPost, "502")) - failBefore; got != 1 {
		t.Fatalf("POST 502 delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "404")) - missBefore; got != 1 {
		t.Fatalf("GET 404 delta = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(httpRequestDurationSeconds); n == 0 {
		t.Fatal("expected request durations to be observed")
	}
}

func TestRoutePatternFallsBackWhenUnrouted(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	if got := routePattern(req); got != unmatchedRoute {
		t.Fatalf("routePattern() = %q, want %q", got, unmatchedRoute)
	}
}
