package service

import (
	"context"
	"log/slog"
	"sort"

	"github.com/nafis/campus-hub/internal/metrics"
	"github.com/nafis/campus-hub/internal/model"
	"github.com/nafis/campus-hub/internal/repository"
)

// LedgerReader reads a user's activity entries from every known source and
// merges them into one timestamp-ordered sequence.
//
// BEST-EFFORT BY DESIGN:
// Each source is read with its own repository call. If one source fails
// (say the project-submission store is down), the reader records the skip
// and keeps going — the caller gets the entries that WERE readable plus the
// list of sources that weren't, instead of an all-or-nothing error. The
// aggregator turns a non-empty skip list into a `partial` result.
//
// The read is restartable: no state is kept between calls, so calling Read
// again simply re-queries everything.
type LedgerReader struct {
	store   repository.LedgerRepository
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewLedgerReader creates a LedgerReader.
func NewLedgerReader(store repository.LedgerRepository, rec metrics.Recorder, logger *slog.Logger) *LedgerReader {
	return &LedgerReader{
		store:   store,
		metrics: rec,
		logger:  logger,
	}
}

// Read returns the user's entries across all sources within the window,
// sorted by timestamp ascending, plus the sources that could not be read.
//
// Ordering is fully deterministic: the stable sort preserves the fixed
// source iteration order for entries with identical timestamps.
//
// A cancelled context is the one failure that aborts the whole read — a
// caller that has gone away must not be answered with half a ledger that
// then gets written anywhere.
func (r *LedgerReader) Read(ctx context.Context, userID string, window model.TimeWindow) ([]model.ActivityEntry, []model.ActivitySource, error) {
	var merged []model.ActivityEntry
	var skipped []model.ActivitySource

	for _, source := range model.ActivitySources() {
		entries, err := r.store.ReadEntries(ctx, userID, source, window)
		if err != nil {
			// Cancellation is not a source failure — stop everything.
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}

			r.logger.Warn("ledger source unreachable, skipping",
				slog.String("userID", userID),
				slog.String("source", string(source)),
				slog.String("error", err.Error()),
			)
			r.metrics.RecordSourceSkipped(string(source))
			skipped = append(skipped, source)
			continue
		}
		merged = append(merged, entries...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})

	return merged, skipped, nil
}
