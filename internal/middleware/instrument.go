package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/cloudykangaroo/orchestrate/internal/logging"
	"github.com/cloudykangaroo/orchestrate/internal/metrics"
)

// Instrument is the outermost pipeline stage. It marks the request meter,
// starts the timer, wraps the response writer to capture the status code,
// and on completion merges status, timing and client metadata into the
// kvLog and emits exactly one access-log entry. Because it wraps the
// response-emitting primitive itself, the entry fires on every exit path,
// including short-circuits by inner stages.
func Instrument(m *metrics.Metrics, accessLog *logging.Logger) mux.MiddlewareFunc {
	if accessLog == nil {
		accessLog = logging.NewDefault("access")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newRecord()
			r = r.WithContext(withRecord(r.Context(), rec))

			m.IncInFlight()
			defer m.DecInFlight()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			defer func() {
				duration := time.Since(rec.Start)

				path := r.URL.Path
				if route := rec.Route(); route != "" {
					path = route
				}
				m.RecordRequest(r.Method, path, strconv.Itoa(wrapped.statusCode), duration)

				fields := map[string]interface{}{
					"status":        wrapped.statusCode,
					"response_time": duration.Milliseconds(),
					"method":        r.Method,
					"url":           r.URL.RequestURI(),
					"remote_addr":   remoteAddr(r),
					"referer":       referer(r),
				}

				info := rec.Client()
				fields["user_agent"] = info.Source
				fields["os"] = info.OS
				fields["browser"] = info.Browser
				fields["platform"] = info.Platform
				fields["is_bot"] = info.Bot
				fields["is_mobile"] = info.Mobile
				fields["is_desktop"] = info.Desktop

				rec.finalField("status", wrapped.statusCode)
				rec.finalField("response_time", duration.Milliseconds())
				for k, v := range rec.Fields() {
					fields[k] = v
				}

				accessLog.LogRequest(r.Context(), fields)
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}

func remoteAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

func referer(r *http.Request) string {
	if ref := r.Referer(); ref != "" {
		return ref
	}
	return "none"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
