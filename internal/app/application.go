// Package app composes the dashboard: it wires the credential store, the
// directory verifier, the upstream aggregators and the web surface, and
// manages their lifecycle. Business logic lives in the packages it wires,
// not here.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudykangaroo/orchestrate/internal/app/system"
	"github.com/cloudykangaroo/orchestrate/internal/auth"
	"github.com/cloudykangaroo/orchestrate/internal/config"
	"github.com/cloudykangaroo/orchestrate/internal/credstore"
	"github.com/cloudykangaroo/orchestrate/internal/logging"
	"github.com/cloudykangaroo/orchestrate/internal/metrics"
	"github.com/cloudykangaroo/orchestrate/internal/middleware"
	"github.com/cloudykangaroo/orchestrate/internal/session"
	"github.com/cloudykangaroo/orchestrate/internal/upstream"
	"github.com/cloudykangaroo/orchestrate/internal/upstream/fleet"
	"github.com/cloudykangaroo/orchestrate/internal/upstream/puppet"
	"github.com/cloudykangaroo/orchestrate/internal/upstream/sensu"
	"github.com/cloudykangaroo/orchestrate/internal/upstream/ubersmith"
	"github.com/cloudykangaroo/orchestrate/internal/web"
)

const shutdownTimeout = 10 * time.Second

// Application ties the dashboard's services together and manages their
// lifecycle.
type Application struct {
	cfg     *config.Config
	log     *logging.Logger
	manager *system.Manager

	store   credstore.Store
	metrics *metrics.Metrics
	server  *http.Server

	Roster *auth.Roster
}

// Options overrides default wiring, used by tests to substitute fakes.
type Options struct {
	Store    credstore.Store
	Verifier auth.Verifier
}

// New builds a fully wired application from configuration.
func New(cfg *config.Config, log *logging.Logger, opts Options) (*Application, error) {
	if log == nil {
		log = logging.New("orchestrate", cfg.Log.Level, cfg.Log.Format)
	}

	store := opts.Store
	if store == nil {
		store = credstore.NewRedisStore(cfg.Redis.Addr, cfg.Redis.DB, log)
	}

	verifier := opts.Verifier
	if verifier == nil {
		verifier = auth.NewCrowdVerifier(
			cfg.Crowd.BaseURL, cfg.Crowd.Application, cfg.Crowd.Password,
			cfg.Crowd.Timeout, log)
	}

	sensuAgg := sensu.New(upstream.NewClient(upstream.ClientConfig{
		BaseURL: cfg.Sensu.BaseURL,
		Timeout: cfg.Sensu.Timeout,
	}), log)
	puppetAgg := puppet.New(upstream.NewClient(upstream.ClientConfig{
		BaseURL: cfg.PuppetDB.BaseURL,
		Timeout: cfg.PuppetDB.Timeout,
	}), log)
	ubersmithAgg := ubersmith.New(upstream.NewClient(upstream.ClientConfig{
		BaseURL:  cfg.Ubersmith.BaseURL,
		Timeout:  cfg.Ubersmith.Timeout,
		Username: cfg.Ubersmith.Username,
		Password: cfg.Ubersmith.Password,
	}), log)
	fleetAgg := fleet.New(puppetAgg, sensuAgg, store, log)

	sessions := session.NewManager(store, 0, log)
	roster := auth.NewRoster()
	m := metrics.New()

	handlers, err := web.NewHandlers(web.Config{
		Log:          log,
		Audit:        logging.New("audit", cfg.Log.Level, cfg.Log.Format),
		CookieSecret: cfg.Cookie.Secret,
		StaticDir:    cfg.HTTP.StaticDir,
		Sessions:     sessions,
		Verifier:     verifier,
		Roster:       roster,
		Store:        store,
		Monitoring:   sensuAgg,
		Inventory:    puppetAgg,
		Fleet:        fleetAgg,
		Tickets:      ubersmithAgg,
		Metrics:      m,
	})
	if err != nil {
		return nil, fmt.Errorf("app: build handlers: %w", err)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
	router := handlers.Router(limiter)

	// The pipeline wraps the router explicitly so every stage runs for
	// every request, including ones that end at the static fallback or
	// the terminal 404.
	accessLog := logging.New("access", cfg.Log.Level, cfg.Log.Format)
	var handler http.Handler = router
	handler = middleware.CSRF(cfg.Cookie.Secret, log)(handler)
	handler = middleware.Session(sessions, cfg.Cookie.Secret, log)(handler)
	handler = middleware.UserAgent()(handler)
	handler = middleware.RequestID()(handler)
	handler = middleware.Instrument(m, accessLog)(handler)

	manager := system.NewManager()
	flusher := metrics.NewFlusher(m, cfg.Metrics.FlushInterval,
		logging.New("metrics", cfg.Log.Level, cfg.Log.Format))
	if err := manager.Register(flusher); err != nil {
		return nil, fmt.Errorf("app: register flusher: %w", err)
	}

	return &Application{
		cfg:     cfg,
		log:     log,
		manager: manager,
		store:   store,
		metrics: m,
		server: &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		Roster: roster,
	}, nil
}

// Handler exposes the fully wrapped request pipeline, used by tests that
// drive the application through httptest.
func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

// Run verifies the credential store, starts the background services and the
// HTTP listener, and blocks until the context is cancelled or the listener
// fails. A failed store self-test is logged, not fatal; sessions degrade to
// unauthenticated until the store returns.
func (a *Application) Run(ctx context.Context) error {
	if err := credstore.SelfTest(ctx, a.store); err != nil {
		a.log.WithError(err).Error("credential store self-test failed, continuing degraded")
	} else {
		a.log.Info("credential store self-test passed")
	}

	if err := a.manager.Start(ctx); err != nil {
		return fmt.Errorf("app: start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("listening on %s", a.cfg.HTTP.Listen)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown drains the HTTP server and stops the background services.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("HTTP server shutdown incomplete")
	}
	if err := a.manager.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("app: stop services: %w", err)
	}

	if closer, ok := a.store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.log.WithError(err).Warn("error closing credential store")
		}
	}
	return nil
}
