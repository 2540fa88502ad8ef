package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/nafis/campus-hub/internal/apperror"
	"github.com/nafis/campus-hub/internal/model"
	"github.com/nafis/campus-hub/internal/repository"
)

// compile-time check that *DB implements repository.LedgerRepository
var _ repository.LedgerRepository = (*DB)(nil)

// Append records one activity entry in the ledger.
//
// The ledger is append-only: there is no Update or Delete on this table,
// and corrections are new entries with a negative delta. A duplicate
// (user, source, timestamp) — a retried upstream write — trips the unique
// index and returns apperror.ErrConflict, which callers may treat as
// success-already-recorded.
func (db *DB) Append(ctx context.Context, entry *model.ActivityEntry) error {
	entry.ID = xid.New().String()
	entry.Timestamp = entry.Timestamp.UTC()
	entry.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO activity_entries (id, user_id, source, points_delta, timestamp, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.Source,
		entry.PointsDelta,
		entry.Timestamp,
		entry.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return apperror.Conflict("activity entry", entry.DedupKey())
		}
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			return apperror.NotFound("user", entry.UserID)
		}
		return fmt.Errorf("sqlite: appending ledger entry for user %s: %w", entry.UserID, err)
	}

	return nil
}

// ReadEntries returns one source's entries for a user, ordered by timestamp
// ascending, optionally bounded by a time window.
//
// Per-source on purpose: the ledger reader calls this once per source so a
// failure in one source is isolated — aggregation proceeds best-effort on
// whatever the other sources returned.
func (db *DB) ReadEntries(ctx context.Context, userID string, source model.ActivitySource, window model.TimeWindow) ([]model.ActivityEntry, error) {
	query := `SELECT id, user_id, source, points_delta, timestamp, created_at
		 FROM activity_entries WHERE user_id = ? AND source = ?`
	args := []any{userID, source}

	if !window.Since.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, window.Since.UTC())
	}
	if !window.Until.IsZero() {
		query += ` AND timestamp <= ?`
		args = append(args, window.Until.UTC())
	}
	query += ` ORDER BY timestamp ASC, id ASC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading %s entries for user %s: %w", source, userID, err)
	}
	defer rows.Close()

	var entries []model.ActivityEntry
	for rows.Next() {
		var e model.ActivityEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Source, &e.PointsDelta, &e.Timestamp, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating ledger entries: %w", err)
	}

	return entries, nil
}
