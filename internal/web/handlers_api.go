package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/cloudykangaroo/orchestrate/internal/middleware"
)

// maxSilenceSeconds caps silence windows at 72 hours. The bound is enforced
// here as well as in the browser helper; the upstream call is never made
// with a longer expiry.
const maxSilenceSeconds = 72 * 60 * 60

const defaultSilenceSeconds = 60 * 60

func (h *Handlers) apiEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	events, err := h.monitoring.ListEvents(ctx)
	if err != nil {
		h.log.WithContext(ctx).WithError(err).Error("list monitoring events")
		writeError(w, http.StatusBadGateway, errors.New("monitoring service unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handlers) apiSilence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	client, check := vars["client"], vars["check"]

	expire := defaultSilenceSeconds
	if raw := r.PostFormValue("expires"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid expires value %q", raw))
			return
		}
		expire = parsed
	}
	if expire <= 0 || expire > maxSilenceSeconds {
		writeError(w, http.StatusBadRequest,
			fmt.Errorf("expires must be between 1 and %d seconds", maxSilenceSeconds))
		return
	}

	identity := middleware.IdentityFromRequest(r)
	if err := h.monitoring.Silence(ctx, client, check, expire, identity.Username); err != nil {
		h.log.WithContext(ctx).WithError(err).Error("create silence")
		writeError(w, http.StatusBadGateway, errors.New("monitoring service unavailable"))
		return
	}

	h.audit.WithContext(ctx).WithFields(map[string]interface{}{
		"username": identity.Username,
		"client":   client,
		"check":    check,
		"expires":  expire,
	}).Info("silence created")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"client":  client,
		"check":   check,
		"expires": expire,
	})
}

func (h *Handlers) apiUnsilence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	client, check := vars["client"], vars["check"]

	identity := middleware.IdentityFromRequest(r)
	if err := h.monitoring.Unsilence(ctx, client, check); err != nil {
		h.log.WithContext(ctx).WithError(err).Error("delete silence")
		writeError(w, http.StatusBadGateway, errors.New("monitoring service unavailable"))
		return
	}

	h.audit.WithContext(ctx).WithFields(map[string]interface{}{
		"username": identity.Username,
		"client":   client,
		"check":    check,
	}).Info("silence removed")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"client": client,
		"check":  check,
	})
}

func (h *Handlers) apiSilenced(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	client, check := vars["client"], vars["check"]

	silenced, err := h.monitoring.Silenced(ctx, client, check)
	if err != nil {
		h.log.WithContext(ctx).WithError(err).Error("fetch silence state")
		writeError(w, http.StatusBadGateway, errors.New("monitoring service unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"client":   client,
		"check":    check,
		"silenced": silenced,
	})
}
