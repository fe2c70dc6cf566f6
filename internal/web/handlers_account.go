package web

import (
	"errors"
	"net/http"

	"github.com/cloudykangaroo/orchestrate/internal/auth"
	"github.com/cloudykangaroo/orchestrate/internal/logging"
	"github.com/cloudykangaroo/orchestrate/internal/middleware"
)

type loginView struct {
	Message   string
	CSRFToken string
}

func (h *Handlers) loginPage(w http.ResponseWriter, r *http.Request) {
	if middleware.IdentityFromRequest(r) != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	h.render.render(w, r, "login.html", loginView{
		Message:   middleware.TakeFlash(w, r),
		CSRFToken: middleware.CSRFToken(r),
	})
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	ctx := r.Context()

	identity, err := h.verifier.Verify(ctx, username, password)
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			h.audit.WithContext(ctx).WithFields(map[string]interface{}{
				"username": username,
				"outcome":  "rejected",
			}).Info("login attempt")
			middleware.SetFlash(w, "Invalid username or password.")
		} else {
			h.log.WithContext(ctx).WithError(err).Error("directory authentication unavailable")
			middleware.SetFlash(w, "Authentication service is unavailable, try again shortly.")
		}
		http.Redirect(w, r, "/account/login", http.StatusFound)
		return
	}

	sessionID, err := h.sessions.Create(ctx, identity)
	if err != nil {
		h.log.WithContext(ctx).WithError(err).Error("session creation failed")
		middleware.SetFlash(w, "Could not establish a session, try again shortly.")
		http.Redirect(w, r, "/account/login", http.StatusFound)
		return
	}

	h.roster.Add(identity)
	middleware.SetSessionCookie(w, h.cookieSecret, sessionID)
	h.audit.WithContext(logging.WithUserID(ctx, identity.Username)).WithFields(map[string]interface{}{
		"username": identity.Username,
		"outcome":  "accepted",
	}).Info("login attempt")

	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if id := logging.GetSessionID(ctx); id != "" {
		if err := h.sessions.Destroy(ctx, id); err != nil {
			h.log.WithContext(ctx).WithError(err).Warn("session destroy failed")
		}
	}
	if identity := middleware.IdentityFromRequest(r); identity != nil {
		h.audit.WithContext(ctx).WithFields(map[string]interface{}{
			"username": identity.Username,
		}).Info("logout")
	}
	middleware.ClearSessionCookie(w)
	http.Redirect(w, r, "/account/login", http.StatusFound)
}
