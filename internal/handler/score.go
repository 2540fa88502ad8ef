package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nafis/campus-hub/internal/metrics"
	"github.com/nafis/campus-hub/internal/model"
	"github.com/nafis/campus-hub/internal/service"
)

// ScoreHandler exposes score reads and ledger writes.
//
//	HandleGetScore       → GET  /api/users/{userID}/score
//	HandleRecordActivity → POST /api/activities
type ScoreHandler struct {
	scores  *service.ScoreService
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewScoreHandler creates a ScoreHandler.
func NewScoreHandler(scores *service.ScoreService, rec metrics.Recorder, logger *slog.Logger) *ScoreHandler {
	return &ScoreHandler{
		scores:  scores,
		metrics: rec,
		logger:  logger,
	}
}

// scoreResponse is the public shape of an aggregation result. The entry
// count and achievement instant are projection bookkeeping, not part of the
// API.
type scoreResponse struct {
	UserID      string `json:"userId"`
	TotalPoints int64  `json:"totalPoints"`
	CodeCoins   int64  `json:"codeCoins"`
	Partial     bool   `json:"partial"`
}

// HandleGetScore aggregates the user's ledger and returns the totals.
//
// HTTP: GET /api/users/{userID}/score
// Auth: optional — scores are public profile data.
//
// The read path IS the refresh path: every score request recomputes from
// the ledger and updates the cached projection, so the answer is never
// staler than the sources it could reach. partial=true tells the caller
// some sources were unreachable and the total is a floor, not a lie.
func (h *ScoreHandler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	result, err := h.scores.Aggregate(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, scoreResponse{
		UserID:      result.UserID,
		TotalPoints: result.TotalPoints,
		CodeCoins:   result.CodeCoins,
		Partial:     result.Partial,
	})
}

type recordActivityRequest struct {
	UserID      string    `json:"userId"`
	Source      string    `json:"source"`
	PointsDelta int64     `json:"pointsDelta"`
	Timestamp   time.Time `json:"timestamp"` // optional; zero means "now"
}

// HandleRecordActivity appends an entry to the activity ledger.
//
// HTTP: POST /api/activities
// Auth: required, plus a capability that depends on the source:
//   - manual_grant needs manage_users (granting points IS user management)
//   - everything else needs manage_content (approval/curation flows)
//
// Replaying the same event (same user, source, timestamp) returns 202 just
// like the first write — upstream retries must be safe.
func (h *ScoreHandler) HandleRecordActivity(w http.ResponseWriter, r *http.Request) {
	var req recordActivityRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	required := service.CapManageContent
	if model.ActivitySource(req.Source) == model.SourceManualGrant {
		required = service.CapManageUsers
	}
	actor, ok := checkCapability(w, r, h.metrics, required)
	if !ok {
		return
	}

	entry := &model.ActivityEntry{
		UserID:      req.UserID,
		Source:      model.ActivitySource(req.Source),
		PointsDelta: req.PointsDelta,
		Timestamp:   req.Timestamp,
	}
	if err := h.scores.RecordActivity(r.Context(), entry); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("activity ingested",
		slog.String("actorID", actor.ID),
		slog.String("userID", entry.UserID),
		slog.String("source", string(entry.Source)),
	)

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}
