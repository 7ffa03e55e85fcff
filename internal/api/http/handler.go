package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/veranemoloko/app-installer/internal/domain"
	errpkg "github.com/veranemoloko/app-installer/internal/errors"
	"github.com/veranemoloko/app-installer/internal/service"
	"github.com/veranemoloko/app-installer/internal/validation"
)

// SessionServiceI defines the installation session operations exposed over HTTP.
type SessionServiceI interface {
	Install(ctx context.Context, app domain.App, opts ...service.InstallOption) (*service.Invocation, error)
	State() domain.SessionState
	Dismiss() bool
	Cancel() bool
	Runs() []*domain.RunRecord
}

// SessionHandler handles HTTP requests for the installation session.
type SessionHandler struct {
	sessions  SessionServiceI
	validator *validator.Validate
	logger    *slog.Logger
}

// NewSessionHandler creates a new SessionHandler with the provided service and logger.
func NewSessionHandler(sessions SessionServiceI, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions:  sessions,
		validator: validation.New(),
		logger:    logger,
	}
}

// StartInstall handles the HTTP POST /installs request.
func (h *SessionHandler) StartInstall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.InstallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("validation failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	inv, err := h.sessions.Install(ctx, req.App())
	switch {
	case errors.Is(err, errpkg.ErrConcurrentInstall):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, errpkg.ErrServiceShutdown):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to start install", "app_id", req.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("install accepted", "app_id", req.ID, "invocation_id", inv.ID, "run_id", inv.RunID)

	writeJSON(w, http.StatusAccepted, domain.InstallResponse{
		InvocationID: inv.ID,
		RunID:        inv.RunID,
	})
}

// GetSession handles GET /session.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.State())
}

// Dismiss handles POST /session/dismiss.
func (h *SessionHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"dismissed": h.sessions.Dismiss()})
}

// Cancel handles POST /session/cancel.
func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": h.sessions.Cancel()})
}

// ListRuns handles GET /runs.
func (h *SessionHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs := h.sessions.Runs()
	if runs == nil {
		runs = []*domain.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
