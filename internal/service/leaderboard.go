package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/nafis/campus-hub/internal/apperror"
	"github.com/nafis/campus-hub/internal/metrics"
	"github.com/nafis/campus-hub/internal/model"
	"github.com/nafis/campus-hub/internal/repository"
)

// Leaderboard size limits, same spirit as pagination clamps elsewhere:
// callers can't ask for a million rows.
const (
	DefaultTopN = 20
	MaxTopN     = 100
)

// LeaderboardService ranks the cached score projections into ordered views.
//
// SORT KEY (fully deterministic — equal inputs always produce the same
// board):
//  1. total_points descending
//  2. achievement time ascending — at equal points, whoever got there
//     FIRST outranks whoever got there later
//  3. user id ascending, as the final arbiter
//
// RANK ASSIGNMENT (standard competition ranking):
// A tie means the ENTIRE ordering key ties: equal points AND equal
// achievement time. True ties share a rank, and the next distinct key gets
// a rank equal to the number of positions consumed so far plus one:
// [100, 100, 80] (same achievement time) ranks [1, 1, 3] — NOT the dense
// [1, 1, 2]. Two users at 100 points with different achievement times are
// not tied at all: the earlier achiever is rank 1, the later rank 2.
//
// Users whose last aggregation was partial stay on the board, annotated as
// provisional — hiding them would make the leaderboard lie by omission.
type LeaderboardService struct {
	users   repository.UserRepository
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewLeaderboardService creates a LeaderboardService.
func NewLeaderboardService(users repository.UserRepository, rec metrics.Recorder, logger *slog.Logger) *LeaderboardService {
	return &LeaderboardService{
		users:   users,
		metrics: rec,
		logger:  logger,
	}
}

// Global returns the full ranked leaderboard.
func (s *LeaderboardService) Global(ctx context.Context) ([]model.LeaderboardEntry, error) {
	s.metrics.RecordLeaderboardRequest("global")
	return s.rankAll(ctx)
}

// Top returns the first n entries of the board. n is clamped to a sane
// range; zero or negative means the default page size.
func (s *LeaderboardService) Top(ctx context.Context, n int) ([]model.LeaderboardEntry, error) {
	s.metrics.RecordLeaderboardRequest("top")

	if n <= 0 {
		n = DefaultTopN
	}
	if n > MaxTopN {
		n = MaxTopN
	}

	board, err := s.rankAll(ctx)
	if err != nil {
		return nil, err
	}
	if n < len(board) {
		board = board[:n]
	}
	return board, nil
}

// Around returns a fixed-size window centred on the given user: radius rows
// above and radius rows below, clipped at the top and bottom of the board.
// Ranks are the user's GLOBAL ranks — the window is a view, not a re-ranking.
func (s *LeaderboardService) Around(ctx context.Context, userID string, radius int) ([]model.LeaderboardEntry, error) {
	s.metrics.RecordLeaderboardRequest("around")

	if radius < 0 {
		radius = 0
	}

	board, err := s.rankAll(ctx)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range board {
		if board[i].UserID == userID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, apperror.NotFound("user", userID)
	}

	lo := idx - radius
	if lo < 0 {
		lo = 0
	}
	hi := idx + radius + 1
	if hi > len(board) {
		hi = len(board)
	}

	return board[lo:hi], nil
}

// rankAll loads every projection, sorts, and assigns competition ranks.
//
// Recomputed per request. The board is derived data with no lifecycle of
// its own; caching it would just add an invalidation problem to a query
// that is a single table scan.
func (s *LeaderboardService) rankAll(ctx context.Context) ([]model.LeaderboardEntry, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		s.logger.Error("failed to load users for leaderboard", slog.String("error", err.Error()))
		return nil, fmt.Errorf("ranking leaderboard: %w", err)
	}

	sort.Slice(users, func(i, j int) bool {
		a, b := &users[i], &users[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if !a.ScoreAchievedAt.Equal(b.ScoreAchievedAt) {
			return a.ScoreAchievedAt.Before(b.ScoreAchievedAt)
		}
		return a.ID < b.ID
	})

	board := make([]model.LeaderboardEntry, len(users))
	for i := range users {
		rank := i + 1
		if i > 0 && users[i].TotalPoints == users[i-1].TotalPoints &&
			users[i].ScoreAchievedAt.Equal(users[i-1].ScoreAchievedAt) {
			// True tie: share the rank of the first user at this key.
			rank = board[i-1].Rank
		}
		board[i] = model.LeaderboardEntry{
			UserID:      users[i].ID,
			Name:        users[i].Name,
			Rank:        rank,
			TotalPoints: users[i].TotalPoints,
			Partial:     users[i].ScorePartial,
		}
	}

	return board, nil
}
