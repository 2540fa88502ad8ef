package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/nafis/campus-hub/internal/apperror"
	"github.com/nafis/campus-hub/internal/model"
	"github.com/nafis/campus-hub/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, name, email, password_hash, github_id, role, upload_project,
	total_points, code_coins, score_entries, score_partial, score_achieved_at,
	version, created_at, updated_at`

// Create inserts a new user with a generated ID and version 1.
// Returns apperror.ErrConflict if the email is already registered.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	if user.Role == "" {
		user.Role = model.RoleMember
	}
	user.Version = 1
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, github_id, role, upload_project, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.GitHubID,
		user.Role,
		user.UploadProject,
		user.Version,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		// SQLite reports unique violations as a generic error; the email
		// UNIQUE constraint is the only one Create can trip over.
		if strings.Contains(err.Error(), "UNIQUE") {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	return nil
}

// Upsert inserts or updates a user based on their GitHub ID.
//
// Used by the OAuth callback: first login → INSERT; subsequent logins →
// UPDATE the profile fields in case the user changed them on GitHub. The
// existing internal ID, role, capability flags, and the cached score
// projection are all preserved on update — OAuth logins must never reset
// what an admin or the aggregator wrote.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	var existingID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM users WHERE github_id = ?`, user.GitHubID,
	).Scan(&existingID)

	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	if existingID != "" {
		user.ID = existingID
		user.UpdatedAt = time.Now().UTC()
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users SET name = ?, email = ?, updated_at = ? WHERE id = ?`,
			user.Name,
			user.Email,
			user.UpdatedAt,
			user.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
		}
		// Re-read so the caller gets the canonical record (role, flags,
		// projection) — not just the profile fields it sent in.
		fresh, err := db.GetByID(ctx, user.ID)
		if err != nil {
			return err
		}
		*user = *fresh
		return nil
	}

	return db.Create(ctx, user)
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email (used by password login).
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email %s: %w", email, err)
	}
	return user, nil
}

// List returns all users. The leaderboard ranker sorts and windows in memory;
// ordering here is only for determinism of the scan, not the ranking.
func (db *DB) List(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating user rows: %w", err)
	}

	return users, nil
}

// UpdateScore writes the cached score projection using optimistic locking.
//
// The WHERE clause carries both the id AND the expected version. If another
// aggregation committed in between, the version moved on, zero rows match,
// and we report a version conflict — the caller re-reads and retries. This
// is the compare-and-set that keeps concurrent aggregations for the same
// user from double-counting or interleaving half-written projections.
func (db *DB) UpdateScore(ctx context.Context, id string, result *model.AggregateResult, expectedVersion int64) error {
	var achievedAt any
	if !result.AchievedAt.IsZero() {
		achievedAt = result.AchievedAt.UTC()
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET total_points = ?, code_coins = ?, score_entries = ?, score_partial = ?,
		     score_achieved_at = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		result.TotalPoints,
		result.CodeCoins,
		result.Entries,
		result.Partial,
		achievedAt,
		time.Now().UTC(),
		id,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating score for user %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking score update for user %s: %w", id, err)
	}
	if affected == 0 {
		// Either the user vanished or the version is stale. Distinguish so
		// the caller retries only on a real race.
		if _, err := db.GetByID(ctx, id); err != nil {
			return err
		}
		return apperror.VersionConflict(id)
	}

	return nil
}

// SetUploadProject flips the submit-project capability flag.
func (db *DB) SetUploadProject(ctx context.Context, id string, allowed bool) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET upload_project = ?, updated_at = ? WHERE id = ?`,
		allowed, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlite: setting upload_project for user %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking upload_project update for user %s: %w", id, err)
	}
	if affected == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// rowScanner lets scanUser work with both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	var achievedAt sql.NullTime

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.GitHubID,
		&u.Role,
		&u.UploadProject,
		&u.TotalPoints,
		&u.CodeCoins,
		&u.ScoreEntries,
		&u.ScorePartial,
		&achievedAt,
		&u.Version,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if achievedAt.Valid {
		u.ScoreAchievedAt = achievedAt.Time
	}
	return &u, nil
}
