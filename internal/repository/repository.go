package repository

import (
	"context"

	"github.com/nafis/campus-hub/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Upsert(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)

	// UpdateScore writes the cached score projection for a user, but only if
	// the row still carries expectedVersion (optimistic locking). On a lost
	// race it returns an error wrapping apperror.ErrConflict; the caller
	// decides whether to re-read and retry.
	UpdateScore(ctx context.Context, id string, result *model.AggregateResult, expectedVersion int64) error

	// SetUploadProject flips the submit-project capability flag. Admin only;
	// the authorization gate is enforced above this layer.
	SetUploadProject(ctx context.Context, id string, allowed bool) error
}

// LedgerRepository is the append-only store of point-affecting events.
//
// ReadEntries is deliberately per-source: the ledger reader queries each
// source independently so one unreachable source fails alone instead of
// failing the whole read.
type LedgerRepository interface {
	Append(ctx context.Context, entry *model.ActivityEntry) error
	ReadEntries(ctx context.Context, userID string, source model.ActivitySource, window model.TimeWindow) ([]model.ActivityEntry, error)
}
