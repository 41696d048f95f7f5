// Package web assembles the run report HTTP server.
package web

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v2"

	"provflow/interfaces/web/handlers"
)

// RouterOptions configure NewRouter.
type RouterOptions struct {
	// RequestLog receives one JSON line per request. Nil disables request logging.
	RequestLog io.Writer
}

// NewRouter routes the run report endpoints.
func NewRouter(runs *handlers.RunHandlers, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	if opts.RequestLog != nil {
		httpLogger := httplog.NewLogger("provflow", httplog.Options{
			Writer: opts.RequestLog,
			JSON:   true,
		})
		r.Use(httplog.RequestLogger(httpLogger))
	}
	r.Use(middleware.Recoverer)

	r.Get("/health", runs.Health)
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/runs", http.StatusFound)
	})
	r.Get("/runs", runs.ListRuns)
	r.Get("/runs/{runID}", runs.GetRun)
	r.Get("/runs/{runID}/attachments/{name}", runs.GetAttachment)

	return r
}
