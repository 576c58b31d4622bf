package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"adstudio/internal/http/handlers"
	"adstudio/internal/telemetry"
)

// Options configures optional router features.
type Options struct {
	// StaticDir, when set, serves generated images under /static for the
	// filesystem object store.
	StaticDir string
}

// NewRouter builds the API surface.
func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
	)

	r.Get("/v1/healthz", app.Health)
	r.Handle("/metrics", telemetry.Handler())

	r.Route("/v1/generations", func(r chi.Router) {
		r.Post("/", app.Enqueue)
		r.Get("/", app.ListGenerations)
		r.Get("/{id}", app.GetGeneration)
	})

	r.Post("/v1/worker/run", app.RunWorker)

	if opts.StaticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
