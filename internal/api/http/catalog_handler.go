package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/veranemoloko/app-installer/internal/domain"
)

// CatalogServiceI is the subset of the catalog client proxied over HTTP.
type CatalogServiceI interface {
	GetApps(ctx context.Context) ([]domain.App, error)
	GetFeaturedApps(ctx context.Context) ([]domain.App, error)
	GetLatestRelease(ctx context.Context, appID string) (*domain.Release, error)
	GetScreenshots(ctx context.Context, appID string) ([]string, error)
}

// CatalogHandler proxies catalog reads.
type CatalogHandler struct {
	catalog CatalogServiceI
	logger  *slog.Logger
}

func NewCatalogHandler(catalog CatalogServiceI, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// ListApps handles GET /catalog/apps. The optional "category" query parameter
// filters case-insensitively.
func (h *CatalogHandler) ListApps(w http.ResponseWriter, r *http.Request) {
	h.writeApps(w, r, h.catalog.GetApps)
}

// ListFeatured handles GET /catalog/apps/featured.
func (h *CatalogHandler) ListFeatured(w http.ResponseWriter, r *http.Request) {
	h.writeApps(w, r, h.catalog.GetFeaturedApps)
}

// LatestRelease handles GET /catalog/apps/{appID}/release.
func (h *CatalogHandler) LatestRelease(w http.ResponseWriter, r *http.Request) {
	appID, ok := appIDParam(w, r)
	if !ok {
		return
	}

	release, err := h.catalog.GetLatestRelease(r.Context(), appID)
	if err != nil {
		h.logger.Error("failed to fetch release", "app_id", appID, "error", err)
		writeError(w, http.StatusBadGateway, "catalog unavailable")
		return
	}
	if release == nil {
		writeError(w, http.StatusNotFound, "release not found")
		return
	}
	writeJSON(w, http.StatusOK, release)
}

// Screenshots handles GET /catalog/apps/{appID}/screenshots.
func (h *CatalogHandler) Screenshots(w http.ResponseWriter, r *http.Request) {
	appID, ok := appIDParam(w, r)
	if !ok {
		return
	}

	urls, err := h.catalog.GetScreenshots(r.Context(), appID)
	if err != nil {
		h.logger.Error("failed to fetch screenshots", "app_id", appID, "error", err)
		writeError(w, http.StatusBadGateway, "catalog unavailable")
		return
	}
	if urls == nil {
		urls = []string{}
	}
	writeJSON(w, http.StatusOK, urls)
}

func (h *CatalogHandler) writeApps(w http.ResponseWriter, r *http.Request, fetch func(context.Context) ([]domain.App, error)) {
	apps, err := fetch(r.Context())
	if err != nil {
		h.logger.Error("failed to fetch catalog", "error", err)
		writeError(w, http.StatusBadGateway, "catalog unavailable")
		return
	}

	category := strings.TrimSpace(r.URL.Query().Get("category"))
	filtered := make([]domain.App, 0, len(apps))
	for _, app := range apps {
		if category == "" || strings.EqualFold(app.Category, category) {
			filtered = append(filtered, app)
		}
	}
	writeJSON(w, http.StatusOK, filtered)
}
