package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/cloudykangaroo/orchestrate/internal/logging"
	"github.com/cloudykangaroo/orchestrate/internal/session"
)

// SessionCookie is the signed, server-issued session cookie.
const SessionCookie = "orchestrate_session"

// SignSessionID produces the cookie value: the session id plus an HMAC so
// a tampered id never reaches the credential store.
func SignSessionID(secret, id string) string {
	return id + "." + sessionMAC(secret, id)
}

// VerifySessionCookie extracts and verifies a session id from a cookie
// value, returning "" when the signature does not match.
func VerifySessionCookie(secret, value string) string {
	i := strings.LastIndex(value, ".")
	if i <= 0 {
		return ""
	}
	id, mac := value[:i], value[i+1:]
	if !hmac.Equal([]byte(mac), []byte(sessionMAC(secret, id))) {
		return ""
	}
	return id
}

func sessionMAC(secret, id string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(id))
	return hex.EncodeToString(h.Sum(nil))
}

// SetSessionCookie issues the signed session cookie.
func SetSessionCookie(w http.ResponseWriter, secret, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    SignSessionID(secret, id),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// Session resolves the session cookie into an identity and attaches both
// the session id and the identity to the request context. Resolution
// failures of any kind leave the request unauthenticated; they never fail
// the request itself.
func Session(manager *session.Manager, secret string, log *logging.Logger) mux.MiddlewareFunc {
	if log == nil {
		log = logging.NewDefault("pipeline")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if cookie, err := r.Cookie(SessionCookie); err == nil {
				id = VerifySessionCookie(secret, cookie.Value)
				if id == "" {
					log.WithContext(r.Context()).Debug("session cookie failed signature check")
				}
			}

			// First request without a valid cookie starts an anonymous
			// session so the CSRF stage has a session to bind to.
			if id == "" {
				id = uuid.NewString()
				SetSessionCookie(w, secret, id)
				ctx := logging.WithSessionID(r.Context(), id)
				if rec := RequestRecord(r); rec != nil {
					rec.LogField("session_id", id)
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			ctx := logging.WithSessionID(r.Context(), id)
			if rec := RequestRecord(r); rec != nil {
				rec.LogField("session_id", id)
			}

			identity, err := manager.Resolve(ctx, id)
			if err != nil {
				if !errors.Is(err, session.ErrNotFound) {
					log.WithContext(ctx).WithError(err).Warn("session resolution failed, continuing unauthenticated")
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			ctx = logging.WithUserID(ctx, identity.Username)
			ctx = withIdentity(ctx, identity)
			if rec := RequestRecord(r); rec != nil {
				rec.LogField("username", identity.Username)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
