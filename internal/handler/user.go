package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nafis/campus-hub/internal/metrics"
	"github.com/nafis/campus-hub/internal/repository"
	"github.com/nafis/campus-hub/internal/service"
)

// UserHandler exposes the admin-side user management surface: granting and
// revoking the submit_project capability.
type UserHandler struct {
	users   repository.UserRepository
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users repository.UserRepository, rec metrics.Recorder, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:   users,
		metrics: rec,
		logger:  logger,
	}
}

type uploadProjectRequest struct {
	Allowed bool `json:"allowed"`
}

// HandleSetUploadProject grants or revokes a user's submit_project flag.
//
// HTTP: PUT /api/users/{userID}/upload-project {"allowed": true}
// Auth: required, manage_users capability.
//
// The flag is the whole grant — there is no separate grant table. Flipping
// it here is immediately visible to the authorization gate on the user's
// next request (the gate reads the snapshot taken at request start).
func (h *UserHandler) HandleSetUploadProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := checkCapability(w, r, h.metrics, service.CapManageUsers)
	if !ok {
		return
	}

	var req uploadProjectRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	userID := chi.URLParam(r, "userID")
	if err := h.users.SetUploadProject(r.Context(), userID, req.Allowed); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("upload_project flag changed",
		slog.String("actorID", actor.ID),
		slog.String("userID", userID),
		slog.Bool("allowed", req.Allowed),
	)

	writeJSON(w, http.StatusOK, map[string]bool{"allowed": req.Allowed})
}
