package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veranemoloko/app-installer/internal/domain"
	errpkg "github.com/veranemoloko/app-installer/internal/errors"
	"github.com/veranemoloko/app-installer/internal/validation"
)

// LibraryServiceI defines the installed-app operations exposed over HTTP.
type LibraryServiceI interface {
	List(ctx context.Context) ([]*domain.InstalledApp, error)
	Get(ctx context.Context, appID string) (*domain.InstalledApp, error)
	Uninstall(ctx context.Context, appID string) error
	CheckUpdate(ctx context.Context, appID string) (*domain.UpdateInfo, error)
}

// LibraryHandler handles HTTP requests for installed apps.
type LibraryHandler struct {
	library LibraryServiceI
	logger  *slog.Logger
}

func NewLibraryHandler(library LibraryServiceI, logger *slog.Logger) *LibraryHandler {
	return &LibraryHandler{library: library, logger: logger}
}

// List handles GET /library.
func (h *LibraryHandler) List(w http.ResponseWriter, r *http.Request) {
	apps, err := h.library.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list library", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if apps == nil {
		apps = []*domain.InstalledApp{}
	}
	writeJSON(w, http.StatusOK, apps)
}

// Get handles GET /library/{appID}.
func (h *LibraryHandler) Get(w http.ResponseWriter, r *http.Request) {
	appID, ok := appIDParam(w, r)
	if !ok {
		return
	}

	app, err := h.library.Get(r.Context(), appID)
	if err != nil {
		h.writeLibraryError(w, appID, "failed to get app", err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// Uninstall handles DELETE /library/{appID}.
func (h *LibraryHandler) Uninstall(w http.ResponseWriter, r *http.Request) {
	appID, ok := appIDParam(w, r)
	if !ok {
		return
	}

	if err := h.library.Uninstall(r.Context(), appID); err != nil {
		h.writeLibraryError(w, appID, "failed to uninstall app", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckUpdate handles GET /library/{appID}/update.
func (h *LibraryHandler) CheckUpdate(w http.ResponseWriter, r *http.Request) {
	appID, ok := appIDParam(w, r)
	if !ok {
		return
	}

	info, err := h.library.CheckUpdate(r.Context(), appID)
	if err != nil {
		h.writeLibraryError(w, appID, "failed to check update", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *LibraryHandler) writeLibraryError(w http.ResponseWriter, appID, msg string, err error) {
	if errors.Is(err, errpkg.ErrAppNotInstalled) {
		writeError(w, http.StatusNotFound, "app not installed")
		return
	}
	h.logger.Error(msg, "app_id", appID, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func appIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	appID := chi.URLParam(r, "appID")
	if err := validation.ValidateAppID(appID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid app ID")
		return "", false
	}
	return appID, true
}
