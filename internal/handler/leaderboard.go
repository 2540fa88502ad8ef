package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nafis/campus-hub/internal/apperror"
	"github.com/nafis/campus-hub/internal/service"
)

// LeaderboardHandler serves ranked views over the score projections.
type LeaderboardHandler struct {
	boards *service.LeaderboardService
	// aroundRadius is the window half-size used when the around scope is
	// requested without an explicit radius parameter.
	aroundRadius int
	logger       *slog.Logger
}

// NewLeaderboardHandler creates a LeaderboardHandler. aroundRadius is the
// configured default for the around scope.
func NewLeaderboardHandler(boards *service.LeaderboardService, aroundRadius int, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{boards: boards, aroundRadius: aroundRadius, logger: logger}
}

// HandleLeaderboard returns a ranked view selected by the scope parameter.
//
// HTTP: GET /api/leaderboard?scope=global|top|around&n=20&user=<id>&radius=3
// Auth: optional — the board is public.
//
// SCOPES:
//
//	global (default) — the whole board
//	top              — first n entries (n clamped server-side)
//	around           — a window of ±radius rows centred on user, keeping
//	                   global ranks
func (h *LeaderboardHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope := q.Get("scope")
	if scope == "" {
		scope = "global"
	}

	var (
		entries interface{}
		err     error
	)
	switch scope {
	case "global":
		entries, err = h.boards.Global(r.Context())
	case "top":
		entries, err = h.boards.Top(r.Context(), intParam(q.Get("n")))
	case "around":
		userID := q.Get("user")
		if userID == "" {
			writeError(w, apperror.ValidationFailed("user", "around scope requires a user parameter"))
			return
		}
		radius := intParam(q.Get("radius"))
		if radius <= 0 {
			radius = h.aroundRadius
		}
		entries, err = h.boards.Around(r.Context(), userID, radius)
	default:
		writeError(w, apperror.ValidationFailed("scope",
			fmt.Sprintf("unknown scope %q (want global, top, or around)", scope)))
		return
	}

	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scope":   scope,
		"entries": entries,
	})
}

// intParam parses an optional numeric query parameter; anything unparseable
// falls back to zero, which callers treat as "use the default".
func intParam(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
