package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudykangaroo/orchestrate/internal/auth"
	"github.com/cloudykangaroo/orchestrate/internal/config"
	"github.com/cloudykangaroo/orchestrate/internal/credstore"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Sensu.BaseURL = "http://sensu.test:4567"
	cfg.PuppetDB.BaseURL = "http://puppetdb.test:8080"
	cfg.Crowd.BaseURL = "https://crowd.test/crowd"
	cfg.Cookie.Secret = "0123456789abcdef0123456789abcdef"
	cfg.HTTP.Listen = "127.0.0.1:0"
	cfg.Log.Level = "error"
	cfg.Metrics.FlushInterval = time.Minute
	cfg.RateLimit.RequestsPerSecond = 25
	cfg.RateLimit.Burst = 50
	return cfg
}

func TestNewWiresPipeline(t *testing.T) {
	store := credstore.NewMemoryStore()
	verifier := auth.VerifierFunc(func(_ context.Context, _, _ string) (auth.Identity, error) {
		return auth.Identity{}, auth.ErrBadCredentials
	})

	application, err := New(testConfig(), nil, Options{Store: store, Verifier: verifier})
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	resp := httptest.NewRecorder()
	application.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", resp.Code)
	}
	if resp.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected pipeline to stamp a request id")
	}

	resp = httptest.NewRecorder()
	application.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusFound {
		t.Fatalf("expected login redirect from dashboard, got %d", resp.Code)
	}

	if err := application.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := credstore.NewMemoryStore()
	application, err := New(testConfig(), nil, Options{
		Store: store,
		Verifier: auth.VerifierFunc(func(_ context.Context, _, _ string) (auth.Identity, error) {
			return auth.Identity{}, auth.ErrBadCredentials
		}),
	})
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}

	if err := application.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
