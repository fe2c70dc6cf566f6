// Package web exposes the dashboard's HTTP surface: the page routes, the
// JSON API under /api/v1, and the pipeline wiring around them.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"github.com/cloudykangaroo/orchestrate/internal/auth"
	"github.com/cloudykangaroo/orchestrate/internal/credstore"
	"github.com/cloudykangaroo/orchestrate/internal/logging"
	"github.com/cloudykangaroo/orchestrate/internal/metrics"
	"github.com/cloudykangaroo/orchestrate/internal/middleware"
	"github.com/cloudykangaroo/orchestrate/internal/session"
	"github.com/cloudykangaroo/orchestrate/internal/upstream/fleet"
	"github.com/cloudykangaroo/orchestrate/internal/upstream/puppet"
	"github.com/cloudykangaroo/orchestrate/internal/upstream/sensu"
	"github.com/cloudykangaroo/orchestrate/internal/upstream/ubersmith"
)

// operationsGroup gates the fleet listing page.
const operationsGroup = "operations"

// monitoringService is the slice of the monitoring aggregator the handlers
// use.
type monitoringService interface {
	ListEvents(ctx context.Context) ([]sensu.Event, error)
	GetDevice(ctx context.Context, hostname string) (sensu.Device, error)
	Silence(ctx context.Context, client, check string, expireSeconds int, source string) error
	Unsilence(ctx context.Context, client, check string) error
	Silenced(ctx context.Context, client, check string) (bool, error)
}

// inventoryService is the slice of the inventory aggregator the handlers
// use.
type inventoryService interface {
	GetDevice(ctx context.Context, hostname string) (puppet.Device, error)
}

// fleetService produces the combined device listing.
type fleetService interface {
	ListDevices(ctx context.Context) (fleet.Listing, error)
}

// ticketService posts escalations to the ticketing system.
type ticketService interface {
	PostTicketUpdate(ctx context.Context, ticketID int, post ubersmith.TicketPost) (ubersmith.PostResult, error)
}

// Handlers bundles the route handlers and their collaborators.
type Handlers struct {
	log   *logging.Logger
	audit *logging.Logger

	cookieSecret string
	staticDir    string

	sessions *session.Manager
	verifier auth.Verifier
	roster   *auth.Roster
	store    credstore.Store

	monitoring monitoringService
	inventory  inventoryService
	fleet      fleetService
	tickets    ticketService

	metrics *metrics.Metrics
	render  *renderer
}

// Config collects the collaborators for NewHandlers.
type Config struct {
	Log          *logging.Logger
	Audit        *logging.Logger
	CookieSecret string
	StaticDir    string
	Sessions     *session.Manager
	Verifier     auth.Verifier
	Roster       *auth.Roster
	Store        credstore.Store
	Monitoring   monitoringService
	Inventory    inventoryService
	Fleet        fleetService
	Tickets      ticketService
	Metrics      *metrics.Metrics
}

// NewHandlers creates the handler set.
func NewHandlers(cfg Config) (*Handlers, error) {
	if cfg.Log == nil {
		cfg.Log = logging.NewDefault("web")
	}
	if cfg.Audit == nil {
		cfg.Audit = logging.NewDefault("audit")
	}
	render, err := newRenderer(cfg.Log)
	if err != nil {
		return nil, err
	}
	return &Handlers{
		log:          cfg.Log,
		audit:        cfg.Audit,
		cookieSecret: cfg.CookieSecret,
		staticDir:    cfg.StaticDir,
		sessions:     cfg.Sessions,
		verifier:     cfg.Verifier,
		roster:       cfg.Roster,
		store:        cfg.Store,
		monitoring:   cfg.Monitoring,
		inventory:    cfg.Inventory,
		fleet:        cfg.Fleet,
		tickets:      cfg.Tickets,
		metrics:      cfg.Metrics,
		render:       render,
	}, nil
}

// Router builds the route table. Route dispatch falls through to the static
// file server, then to a terminal 404.
func (h *Handlers) Router(limiter *middleware.RateLimiter) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RoutePattern())

	router.HandleFunc("/account/login", h.loginPage).Methods(http.MethodGet)
	router.HandleFunc("/account/login", h.login).Methods(http.MethodPost)
	router.HandleFunc("/account/logout", h.logout).Methods(http.MethodGet)

	pages := router.NewRoute().Subrouter()
	pages.Use(middleware.RequireAuth(h.log))
	pages.HandleFunc("/", h.dashboard).Methods(http.MethodGet)
	pages.HandleFunc("/devices/{hostname}", h.devicePage).Methods(http.MethodGet)

	ops := router.NewRoute().Subrouter()
	ops.Use(middleware.RequireGroup(operationsGroup, h.log))
	ops.HandleFunc("/devices", h.devicesPage).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	if limiter != nil {
		api.Use(limiter.Handler())
	}
	api.Use(middleware.RequireAPIAuth(h.log))
	api.HandleFunc("/sensu/events", h.apiEvents).Methods(http.MethodGet)
	api.HandleFunc("/sensu/silence/client/{client}", h.apiSilence).Methods(http.MethodPost)
	api.HandleFunc("/sensu/silence/client/{client}/check/{check}", h.apiSilence).Methods(http.MethodPost)
	api.HandleFunc("/sensu/silence/client/{client}", h.apiUnsilence).Methods(http.MethodDelete)
	api.HandleFunc("/sensu/silence/client/{client}/check/{check}", h.apiUnsilence).Methods(http.MethodDelete)
	api.HandleFunc("/sensu/silence/client/{client}", h.apiSilenced).Methods(http.MethodGet)
	api.HandleFunc("/sensu/silence/client/{client}/check/{check}", h.apiSilenced).Methods(http.MethodGet)
	api.HandleFunc("/ubersmith/tickets/ticketid/{id}/posts", h.apiTicketPost).Methods(http.MethodPost)

	router.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	router.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)

	router.NotFoundHandler = h.staticFallback()
	return router
}

// staticFallback serves files from the static directory for paths no route
// claimed, then 404s. Most static traffic is expected to be offloaded to
// the front proxy.
func (h *Handlers) staticFallback() http.Handler {
	fileServer := http.FileServer(http.Dir(h.staticDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			candidate := filepath.Join(h.staticDir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				fileServer.ServeHTTP(w, r)
				return
			}
		}
		http.NotFound(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
