package middleware

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mssola/useragent"
)

// UserAgent parses the client's user-agent string into structured fields
// available to later stages and to the access-log completion hook.
func UserAgent() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			source := r.UserAgent()
			ua := useragent.New(source)
			name, version := ua.Browser()
			bot, mobile := ua.Bot(), ua.Mobile()

			info := ClientInfo{
				Source:   source,
				OS:       ua.OS(),
				Browser:  name,
				Version:  version,
				Platform: ua.Platform(),
				Bot:      bot,
				Mobile:   mobile,
				Desktop:  !mobile && !bot,
			}

			if rec := RequestRecord(r); rec != nil {
				rec.SetClient(info)
			}
			next.ServeHTTP(w, r)
		})
	}
}
