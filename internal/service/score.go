package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nafis/campus-hub/internal/apperror"
	"github.com/nafis/campus-hub/internal/metrics"
	"github.com/nafis/campus-hub/internal/model"
	"github.com/nafis/campus-hub/internal/repository"
)

// maxUpdateRetries bounds how often an aggregation re-reads and retries
// after losing the optimistic-version race. Three attempts is plenty: each
// loser re-reads a FRESHER version, so sustained conflict means something
// is genuinely hot and the caller should see the 409 rather than spin.
const maxUpdateRetries = 3

// coinSources are the only sources that mint spendable code-coins.
//
// TWO CURRENCIES, DELIBERATELY DECOUPLED:
// total_points is reputation — every source contributes, weighted.
// code_coins is spendable currency — only daily activity and manual grants
// mint it, and always at face value (no weighting). Earning reputation from
// an approved question must not also print money.
var coinSources = map[model.ActivitySource]bool{
	model.SourceDailyActivity: true,
	model.SourceManualGrant:   true,
}

// ScoreService derives a user's authoritative {total_points, code_coins}
// pair from the activity ledger and maintains the cached projection on the
// user record.
//
// THE PIPELINE:
//
//	LedgerReader → weighted sum with de-duplication → CAS write of the projection
//
// INVARIANTS HELD HERE:
//   - Idempotence: aggregating an unchanged ledger twice yields identical
//     totals; the computation is a pure fold over the (sorted) entries.
//   - De-duplication: entries sharing (user, source, timestamp) count once.
//   - Completeness wins: a projection counted from fewer entries never
//     overwrites one counted from more — a stale partial result cannot
//     clobber a complete one, regardless of wall-clock arrival order.
//   - No write on abandonment: a cancelled request leaves the projection
//     untouched.
type ScoreService struct {
	reader  *LedgerReader
	ledger  repository.LedgerRepository
	users   repository.UserRepository
	weights map[model.ActivitySource]int64
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewScoreService creates a ScoreService. The weight table comes from
// config — the aggregator itself has no opinion about how much a project
// submission is worth.
func NewScoreService(
	reader *LedgerReader,
	ledger repository.LedgerRepository,
	users repository.UserRepository,
	weights map[model.ActivitySource]int64,
	rec metrics.Recorder,
	logger *slog.Logger,
) *ScoreService {
	return &ScoreService{
		reader:  reader,
		ledger:  ledger,
		users:   users,
		weights: weights,
		metrics: rec,
		logger:  logger,
	}
}

// Aggregate recomputes the user's totals from the ledger and refreshes the
// cached projection.
//
// The returned result is always the freshly computed one — even when the
// stored projection was kept because it was more complete, the caller asked
// "what does the ledger say right now" and that is what it gets, marked
// partial if sources were missing.
func (s *ScoreService) Aggregate(ctx context.Context, userID string) (*model.AggregateResult, error) {
	userID = trimID(userID)
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "user ID is required")
	}

	start := time.Now()

	entries, skipped, err := s.reader.Read(ctx, userID, model.TimeWindow{})
	if err != nil {
		return nil, fmt.Errorf("aggregating user %s: %w", userID, err)
	}

	result := s.fold(userID, entries)
	result.Partial = len(skipped) > 0

	if err := s.persist(ctx, result); err != nil {
		return nil, err
	}

	s.metrics.RecordAggregation(result.Partial, time.Since(start))

	if result.Partial {
		s.logger.Warn("aggregation ran partial",
			slog.String("userID", userID),
			slog.Int("skippedSources", len(skipped)),
			slog.Int64("totalPoints", result.TotalPoints),
		)
	}

	return result, nil
}

// fold reduces timestamp-ordered entries to totals.
//
// Pure — no I/O, no clock, no randomness. Same entries in, same result out,
// which is exactly what makes Aggregate idempotent.
func (s *ScoreService) fold(userID string, entries []model.ActivityEntry) *model.AggregateResult {
	result := &model.AggregateResult{UserID: userID}

	seen := make(map[string]bool, len(entries))
	for i := range entries {
		e := &entries[i]

		// De-duplication law: (source, timestamp) identifies the upstream
		// event; a retried write of the same event counts once. First wins.
		key := e.DedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		result.Entries++

		weighted := e.PointsDelta * s.weights[e.Source]
		result.TotalPoints += weighted
		if coinSources[e.Source] {
			result.CodeCoins += e.PointsDelta
		}

		// The achievement timestamp for the tie-break: the moment the
		// running total last moved. Entries are timestamp-sorted, so this
		// ends up as the entry that reached the final total.
		if weighted != 0 {
			result.AchievedAt = e.Timestamp
		}
	}

	// The projection is a non-negative cache; corrections can drive the raw
	// sum below zero but a user never owes points.
	if result.TotalPoints < 0 {
		result.TotalPoints = 0
	}
	if result.CodeCoins < 0 {
		result.CodeCoins = 0
	}

	return result
}

// persist writes the projection with optimistic locking and the
// completeness-wins rule.
func (s *ScoreService) persist(ctx context.Context, result *model.AggregateResult) error {
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		// The caller abandoned the request — leave the projection alone.
		if err := ctx.Err(); err != nil {
			return err
		}

		user, err := s.users.GetByID(ctx, result.UserID)
		if err != nil {
			return err
		}

		// Completeness precedence: if the stored projection was counted
		// from MORE entries than we saw (we had a partial read, someone
		// else had a full one), keep theirs.
		if user.ScoreEntries > result.Entries {
			s.logger.Info("keeping more complete projection",
				slog.String("userID", result.UserID),
				slog.Int("storedEntries", user.ScoreEntries),
				slog.Int("computedEntries", result.Entries),
			)
			return nil
		}

		err = s.users.UpdateScore(ctx, result.UserID, result, user.Version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return err
		}

		// Lost the version race — another aggregation committed first.
		// Re-read (picking up the new version AND the new entry count) and
		// try again.
		s.metrics.RecordVersionConflict()
		s.logger.Debug("score update conflict, retrying",
			slog.String("userID", result.UserID),
			slog.Int("attempt", attempt+1),
		)
	}

	return fmt.Errorf("persisting score for user %s: %w",
		result.UserID, apperror.VersionConflict(result.UserID))
}

// RecordActivity appends a new entry to the ledger and refreshes the
// projection so reads immediately after ingestion see the new total.
//
// A duplicate (user, source, timestamp) append is reported as success — the
// event is already in the ledger, which is all the caller wanted. The
// refresh is best-effort: if it loses its races the projection simply stays
// reconcilable until the next Aggregate.
func (s *ScoreService) RecordActivity(ctx context.Context, entry *model.ActivityEntry) error {
	if trimID(entry.UserID) == "" {
		return apperror.ValidationFailed("userId", "user ID is required")
	}
	if !model.ValidSource(entry.Source) {
		return apperror.ValidationFailed("source",
			fmt.Sprintf("unknown activity source %q", entry.Source))
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if err := s.ledger.Append(ctx, entry); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			// Retried upstream write of the same event — already recorded.
			s.logger.Info("duplicate ledger entry ignored",
				slog.String("userID", entry.UserID),
				slog.String("key", entry.DedupKey()),
			)
			return nil
		}
		return fmt.Errorf("recording activity for user %s: %w", entry.UserID, err)
	}

	s.logger.Info("activity recorded",
		slog.String("userID", entry.UserID),
		slog.String("source", string(entry.Source)),
		slog.Int64("pointsDelta", entry.PointsDelta),
	)

	if _, err := s.Aggregate(ctx, entry.UserID); err != nil {
		// The ledger write succeeded; the projection will catch up on the
		// next aggregation. Don't fail the ingestion over a cache refresh.
		s.logger.Warn("projection refresh after ingest failed",
			slog.String("userID", entry.UserID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

func trimID(id string) string {
	return strings.TrimSpace(id)
}
