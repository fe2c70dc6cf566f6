package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cloudykangaroo/orchestrate/internal/logging"
)

// CSRFHeader carries the token on API requests; form posts use CSRFField.
const (
	CSRFHeader = "X-CSRF-Token"
	CSRFField  = "csrf_token"
)

// DeriveCSRFToken computes the per-session CSRF token. It is deterministic
// for a session so the token survives across page loads without extra
// store state.
func DeriveCSRFToken(secret, sessionID string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte("csrf:" + sessionID))
	return hex.EncodeToString(h.Sum(nil))
}

// CSRF issues the per-session token to handlers and rejects mutating
// requests whose token does not match, before dispatch and independent of
// the route's own auth check.
func CSRF(secret string, log *logging.Logger) mux.MiddlewareFunc {
	if log == nil {
		log = logging.NewDefault("pipeline")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := logging.GetSessionID(r.Context())
			token := ""
			if sessionID != "" {
				token = DeriveCSRFToken(secret, sessionID)
			}

			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
				presented := r.Header.Get(CSRFHeader)
				if presented == "" {
					presented = r.PostFormValue(CSRFField)
				}
				if token == "" || !hmac.Equal([]byte(presented), []byte(token)) {
					log.WithContext(r.Context()).WithFields(map[string]interface{}{
						"path":   r.URL.Path,
						"method": r.Method,
					}).Warn("rejecting request with missing or invalid CSRF token")
					if rec := RequestRecord(r); rec != nil {
						rec.LogField("csrf_rejected", true)
					}
					http.Error(w, "invalid CSRF token", http.StatusForbidden)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(withCSRFToken(r.Context(), token)))
		})
	}
}
