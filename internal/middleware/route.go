package middleware

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RoutePattern stores the matched route's path template on the request
// record so the metrics path label stays bounded (`/devices/{hostname}`
// rather than one label per hostname). It runs inside the router; requests
// that end at the static fallback carry no template and keep the raw path.
func RoutePattern() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rec := RequestRecord(r); rec != nil {
				if route := mux.CurrentRoute(r); route != nil {
					if tmpl, err := route.GetPathTemplate(); err == nil {
						rec.SetRoute(tmpl)
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
