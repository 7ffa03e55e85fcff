package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new HTTP router with configured routes, middleware, and handlers.
// It sets up install, session, library and catalog routes, health check, and
// Prometheus metrics endpoint.
func NewRouter(sessions SessionServiceI, library LibraryServiceI, catalog CatalogServiceI, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	sessionHandler := NewSessionHandler(sessions, logger)
	libraryHandler := NewLibraryHandler(library, logger)
	catalogHandler := NewCatalogHandler(catalog, logger)

	r.Post("/installs", sessionHandler.StartInstall)

	r.Route("/session", func(r chi.Router) {
		r.Get("/", sessionHandler.GetSession)
		r.Post("/dismiss", sessionHandler.Dismiss)
		r.Post("/cancel", sessionHandler.Cancel)
	})

	r.Get("/runs", sessionHandler.ListRuns)

	r.Route("/library", func(r chi.Router) {
		r.Get("/", libraryHandler.List)
		r.Get("/{appID}", libraryHandler.Get)
		r.Delete("/{appID}", libraryHandler.Uninstall)
		r.Get("/{appID}/update", libraryHandler.CheckUpdate)
	})

	r.Route("/catalog/apps", func(r chi.Router) {
		r.Get("/", catalogHandler.ListApps)
		r.Get("/featured", catalogHandler.ListFeatured)
		r.Get("/{appID}/release", catalogHandler.LatestRelease)
		r.Get("/{appID}/screenshots", catalogHandler.Screenshots)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
