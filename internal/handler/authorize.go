package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nafis/campus-hub/internal/apperror"
	"github.com/nafis/campus-hub/internal/auth"
	"github.com/nafis/campus-hub/internal/metrics"
	"github.com/nafis/campus-hub/internal/model"
	"github.com/nafis/campus-hub/internal/service"
)

// AuthorizeHandler exposes the capability gate over HTTP so the frontend
// can ask "may the current user do X?" before rendering a button.
//
// The gate itself (service.Authorize) is a pure function over the identity
// snapshot in the request context; this handler only parses the capability
// name and records the decision metric. A deny is a 200 with allow=false —
// asking was perfectly fine, the answer just happens to be no.
type AuthorizeHandler struct {
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewAuthorizeHandler creates an AuthorizeHandler.
func NewAuthorizeHandler(rec metrics.Recorder, logger *slog.Logger) *AuthorizeHandler {
	return &AuthorizeHandler{metrics: rec, logger: logger}
}

type authorizeRequest struct {
	Capability string `json:"capability"`
}

// HandleAuthorize evaluates a capability for the current request identity.
//
// HTTP: POST /api/authorize {"capability": "submit_project"}
// Auth: optional — anonymous callers get a deny, not a 401.
func (h *AuthorizeHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	capability := service.Capability(req.Capability)
	if !service.ValidCapability(capability) {
		writeError(w, apperror.ValidationFailed("capability",
			fmt.Sprintf("unknown capability %q", req.Capability)))
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	decision := service.Authorize(user, capability)
	h.metrics.RecordAuthzDecision(string(capability), decision.Allow)

	writeJSON(w, http.StatusOK, decision)
}

// checkCapability is the gate call protected endpoints make before acting.
// It returns the user when allowed; otherwise it writes the 403 (denial in
// an enforcement position IS an error to the caller) and returns false.
func checkCapability(w http.ResponseWriter, r *http.Request, rec metrics.Recorder, capability service.Capability) (*model.User, bool) {
	user, _ := auth.UserFromContext(r.Context())
	decision := service.Authorize(user, capability)
	rec.RecordAuthzDecision(string(capability), decision.Allow)

	if !decision.Allow {
		writeError(w, apperror.Forbidden(fmt.Sprintf("capability %s required", capability)))
		return nil, false
	}
	return user, true
}
