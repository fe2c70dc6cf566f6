package web

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/cloudykangaroo/orchestrate/internal/logging"
)

//go:embed templates/*.html
var templateFS embed.FS

// renderer parses the embedded views once at startup. The view layer is
// deliberately thin; page structure lives in the templates.
type renderer struct {
	templates *template.Template
	log       *logging.Logger
}

func newRenderer(log *logging.Logger) (*renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &renderer{templates: tmpl, log: log}, nil
}

func (rd *renderer) render(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := rd.templates.ExecuteTemplate(w, name, data); err != nil {
		rd.log.WithContext(r.Context()).WithError(err).Error("render template")
	}
}
