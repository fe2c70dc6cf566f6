package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cloudykangaroo/orchestrate/internal/logging"
)

// RequestID assigns each request an identifier, initialises the kvLog
// record and stamps the id on the response. First stage of the pipeline.
func RequestID() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = logging.NewRequestID()
			}

			if rec := RequestRecord(r); rec != nil {
				rec.SetID(id)
				rec.LogField("request_id", id)
			}

			ctx := logging.WithRequestID(r.Context(), id)
			w.Header().Set("X-Request-ID", id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
