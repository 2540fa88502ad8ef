package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nafis/campus-hub/internal/handler"
	"github.com/nafis/campus-hub/internal/model"
)

type boardResponse struct {
	Scope   string                   `json:"scope"`
	Entries []model.LeaderboardEntry `json:"entries"`
}

func TestLeaderboardHandler_HandleLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	h := handler.NewLeaderboardHandler(env.boards, 2, env.logger())

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env.users.add(model.User{ID: "a", Name: "a", TotalPoints: 100, ScoreAchievedAt: base})
	env.users.add(model.User{ID: "b", Name: "b", TotalPoints: 80, ScoreAchievedAt: base.Add(time.Minute)})
	env.users.add(model.User{ID: "c", Name: "c", TotalPoints: 60, ScoreAchievedAt: base.Add(2 * time.Minute)})
	env.users.add(model.User{ID: "d", Name: "d", TotalPoints: 40, ScoreAchievedAt: base.Add(3 * time.Minute)})
	env.users.add(model.User{ID: "e", Name: "e", TotalPoints: 20, ScoreAchievedAt: base.Add(4 * time.Minute)})

	get := func(url string) (*httptest.ResponseRecorder, boardResponse) {
		rr := httptest.NewRecorder()
		h.HandleLeaderboard(rr, httptest.NewRequest(http.MethodGet, url, nil))
		var res boardResponse
		if rr.Code == http.StatusOK {
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		}
		return rr, res
	}

	t.Run("default scope is global", func(t *testing.T) {
		rr, res := get("/api/leaderboard")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "global", res.Scope)
		require.Len(t, res.Entries, 5)
		assert.Equal(t, "a", res.Entries[0].UserID)
		assert.Equal(t, 1, res.Entries[0].Rank)
	})

	t.Run("top with n", func(t *testing.T) {
		rr, res := get("/api/leaderboard?scope=top&n=2")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, res.Entries, 2)
	})

	t.Run("around keeps global ranks", func(t *testing.T) {
		rr, res := get("/api/leaderboard?scope=around&user=b&radius=1")
		assert.Equal(t, http.StatusOK, rr.Code)
		require.Len(t, res.Entries, 3)
		assert.Equal(t, 1, res.Entries[0].Rank)
		assert.Equal(t, "b", res.Entries[1].UserID)
		assert.Equal(t, 2, res.Entries[1].Rank)
	})

	t.Run("around without radius uses the configured default", func(t *testing.T) {
		rr, res := get("/api/leaderboard?scope=around&user=c")
		assert.Equal(t, http.StatusOK, rr.Code)
		require.Len(t, res.Entries, 5, "default radius 2 must give a five-row window")
		assert.Equal(t, "a", res.Entries[0].UserID)
		assert.Equal(t, "c", res.Entries[2].UserID)
		assert.Equal(t, 3, res.Entries[2].Rank)
	})

	t.Run("around without user", func(t *testing.T) {
		rr, _ := get("/api/leaderboard?scope=around")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("around unknown user", func(t *testing.T) {
		rr, _ := get("/api/leaderboard?scope=around&user=ghost")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("unknown scope", func(t *testing.T) {
		rr, _ := get("/api/leaderboard?scope=galaxy")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
