package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
)

func TestFetcherGet(t *testing.T) {
	t.Parallel()

	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.UserAgent())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<table class="tData"></table>`))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "kbo-test-agent", Timeout: time.Second}, nil, nil)
	body, err := f.Get(context.Background(), srv.URL+"/Record/TeamRank/TeamRankDaily.aspx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `<table class="tData"></table>` {
		t.Fatalf("unexpected body %q", body)
	}
	if ua, _ := gotUA.Load().(string); ua != "kbo-test-agent" {
		t.Fatalf("expected user agent override, got %q", ua)
	}
}

func TestFetcherGetRefetchesSameURL(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(Config{}, nil, nil)
	for range 2 {
		if _, err := f.Get(context.Background(), srv.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if n := hits.Load(); n != 2 {
		t.Fatalf("expected 2 requests, got %d", n)
	}
}

func TestFetcherGetHTTPErrorIsTransport(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(Config{}, nil, nil).Get(context.Background(), srv.URL)
	if !errors.Is(err, crawler.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestFetcherGetUnreachableIsTransport(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(Config{Timeout: time.Second}, nil, nil).Get(context.Background(), url)
	if !errors.Is(err, crawler.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestFetcherGetLimiterFailure(t *testing.T) {
	t.Parallel()

	f := New(Config{}, failingLimiter{}, nil)
	_, err := f.Get(context.Background(), "https://www.koreabaseball.com/")
	if !errors.Is(err, crawler.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil, nil)
	var (
		body     []byte
		status   int
		fetchErr error
	)
	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, &body, &status, &fetchErr)
	if hooks.onResponse == nil || hooks.onError == nil {
		t.Fatal("expected hooks to be registered")
	}

	hooks.onResponse(&colly.Response{StatusCode: http.StatusOK, Body: []byte("body")})
	if status != http.StatusOK || string(body) != "body" {
		t.Fatalf("unexpected result: %d %q", status, body)
	}

	hooks.onError(&colly.Response{StatusCode: http.StatusNotFound}, errors.New("Not Found"))
	if fetchErr == nil || fetchErr.Error() != "status 404: Not Found" {
		t.Fatalf("expected fetchErr set, got %v", fetchErr)
	}
}

func TestBuildCollectorAppliesConfig(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "coverage-agent", MaxBodySize: 1024}, nil, nil)
	collector := f.buildCollector()
	if collector.UserAgent != "coverage-agent" {
		t.Fatalf("expected user agent override, got %q", collector.UserAgent)
	}
	if collector.MaxBodySize != 1024 {
		t.Fatalf("expected body cap, got %d", collector.MaxBodySize)
	}
	if !collector.IgnoreRobotsTxt {
		t.Fatal("expected robots txt to be ignored")
	}
}

type failingLimiter struct{}

func (failingLimiter) Wait(context.Context, string) error { return context.DeadlineExceeded }

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
