package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/cloudykangaroo/orchestrate/internal/middleware"
	"github.com/cloudykangaroo/orchestrate/internal/upstream/ubersmith"
)

func (h *Handlers) apiTicketPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ticketID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || ticketID <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid ticket id %q", mux.Vars(r)["id"]))
		return
	}

	body := r.PostFormValue("body")
	if body == "" {
		writeError(w, http.StatusBadRequest, errors.New("post body is required"))
		return
	}

	post := ubersmith.TicketPost{
		Subject: r.PostFormValue("subject"),
		Body:    body,
		Visible: 1,
	}
	if raw := r.PostFormValue("time_spent"); raw != "" {
		spent, err := strconv.Atoi(raw)
		if err != nil || spent < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid time_spent value %q", raw))
			return
		}
		post.TimeSpent = spent
	}

	result, err := h.tickets.PostTicketUpdate(ctx, ticketID, post)
	if err != nil {
		h.log.WithContext(ctx).WithError(err).Error("post ticket update")
		writeError(w, http.StatusBadGateway, errors.New("ticketing service unavailable"))
		return
	}

	identity := middleware.IdentityFromRequest(r)
	h.audit.WithContext(ctx).WithFields(map[string]interface{}{
		"username":  identity.Username,
		"ticket_id": ticketID,
		"accepted":  result.Status,
	}).Info("ticket escalation")

	status := http.StatusOK
	if !result.Status {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

// healthz reports process liveness and credential store reachability.
func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	storeState := "ok"
	if err := h.store.Ping(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		storeState = "unreachable"
	}
	writeJSON(w, status, map[string]string{
		"status": http.StatusText(status),
		"store":  storeState,
	})
}
