// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is a closed enum of account roles.
//
// WHY A NAMED STRING TYPE (not plain string)?
// A named type documents intent at every call site and lets the compiler
// catch accidental mix-ups (you can't pass a random string where a Role is
// expected without an explicit conversion). The underlying representation
// stays a string so it round-trips through JSON and SQL without adapters.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// User represents a registered member of the campus community.
//
// IDENTITY:
// Users can register with email+password or sign in via GitHub OAuth.
// We always generate our own internal string ID (xid) so primary keys are
// never tied to a third-party's numbering scheme. GitHubID is 0 for
// password-only accounts.
//
// CACHED SCORE PROJECTION:
// TotalPoints and CodeCoins are NOT source-of-truth values. The append-only
// activity ledger is the sole source of point facts; these fields are a
// cached projection that the score aggregator owns exclusively. Nothing else
// may write them. The projection carries three pieces of bookkeeping:
//
//   - ScoreEntries — how many ledger entries the cached total was counted
//     from. A concurrent aggregation that saw FEWER entries (a partial read)
//     must not overwrite a more complete projection; completeness wins, not
//     wall-clock arrival order.
//   - ScorePartial — whether the last aggregation ran with one or more
//     ledger sources unavailable. Surfaced on the leaderboard as an
//     annotation, never hidden.
//   - ScoreAchievedAt — timestamp of the ledger entry that brought the total
//     to its current value. The leaderboard tie-break: at equal points, the
//     earlier achiever outranks the later one.
//
// Version is the optimistic lock for projection writes. Every UpdateScore
// increments it; an update carrying a stale expected version affects zero
// rows, and the aggregator retries.
type User struct {
	ID              string    `json:"id"            db:"id"`
	Name            string    `json:"name"          db:"name"`
	Email           string    `json:"email"         db:"email"`
	PasswordHash    string    `json:"-"             db:"password_hash"`  // never serialized
	GitHubID        int64     `json:"-"             db:"github_id"`      // 0 unless linked to GitHub
	Role            Role      `json:"role"          db:"role"`
	UploadProject   bool      `json:"uploadProject" db:"upload_project"` // capability flag, granted by admins
	TotalPoints     int64     `json:"totalPoints"   db:"total_points"`
	CodeCoins       int64     `json:"codeCoins"     db:"code_coins"`
	ScoreEntries    int       `json:"-"             db:"score_entries"`
	ScorePartial    bool      `json:"-"             db:"score_partial"`
	ScoreAchievedAt time.Time `json:"-"             db:"score_achieved_at"`
	Version         int64     `json:"-"             db:"version"`
	CreatedAt       time.Time `json:"createdAt"     db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt"     db:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
