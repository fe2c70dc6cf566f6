package web

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cloudykangaroo/orchestrate/internal/auth"
	"github.com/cloudykangaroo/orchestrate/internal/middleware"
	"github.com/cloudykangaroo/orchestrate/internal/upstream/fleet"
	"github.com/cloudykangaroo/orchestrate/internal/upstream/puppet"
	"github.com/cloudykangaroo/orchestrate/internal/upstream/sensu"
)

type dashboardView struct {
	User      *auth.Identity
	CSRFToken string
	Events    []sensu.Event
}

func (h *Handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	events, err := h.monitoring.ListEvents(ctx)
	if err != nil {
		h.log.WithContext(ctx).WithError(err).Error("list monitoring events")
		http.Error(w, "monitoring service unavailable", http.StatusBadGateway)
		return
	}
	h.render.render(w, r, "dashboard.html", dashboardView{
		User:      middleware.IdentityFromRequest(r),
		CSRFToken: middleware.CSRFToken(r),
		Events:    events,
	})
}

type devicesView struct {
	User      *auth.Identity
	CSRFToken string
	Listing   fleet.Listing
}

func (h *Handlers) devicesPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listing, err := h.fleet.ListDevices(ctx)
	if err != nil {
		h.log.WithContext(ctx).WithError(err).Error("list devices")
		http.Error(w, "device listing unavailable", http.StatusBadGateway)
		return
	}
	h.render.render(w, r, "devices.html", devicesView{
		User:      middleware.IdentityFromRequest(r),
		CSRFToken: middleware.CSRFToken(r),
		Listing:   listing,
	})
}

type deviceView struct {
	User       *auth.Identity
	CSRFToken  string
	Hostname   string
	Inventory  puppet.Device
	Monitoring sensu.Device
}

// devicePage renders the per-device view. A failed upstream side degrades
// the page rather than failing it; only a hard aggregator error 502s.
func (h *Handlers) devicePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hostname := mux.Vars(r)["hostname"]

	inventory, err := h.inventory.GetDevice(ctx, hostname)
	if err != nil {
		h.log.WithContext(ctx).WithError(err).Error("fetch inventory device")
		http.Error(w, "inventory service unavailable", http.StatusBadGateway)
		return
	}

	monitoring, err := h.monitoring.GetDevice(ctx, hostname)
	if err != nil {
		h.log.WithContext(ctx).WithError(err).Error("fetch monitoring device")
		http.Error(w, "monitoring service unavailable", http.StatusBadGateway)
		return
	}

	h.render.render(w, r, "device.html", deviceView{
		User:       middleware.IdentityFromRequest(r),
		CSRFToken:  middleware.CSRFToken(r),
		Hostname:   hostname,
		Inventory:  inventory,
		Monitoring: monitoring,
	})
}
