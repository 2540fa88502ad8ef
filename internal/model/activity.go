package model

import "time"

// ActivitySource identifies which part of the portal produced a ledger entry.
//
// The scoring pipeline reads each source independently, so one unreachable
// source never takes down aggregation for the others — the reader skips it
// and the result is marked partial.
type ActivitySource string

const (
	SourceQuestionApproval  ActivitySource = "question_approval"
	SourceProjectSubmission ActivitySource = "project_submission"
	SourceDailyActivity     ActivitySource = "daily_activity"
	SourceManualGrant       ActivitySource = "manual_grant"
)

// ActivitySources returns every known source in a fixed, deterministic order.
// The ledger reader iterates this slice; the order also decides how entries
// with identical timestamps are tie-broken after the stable sort by time.
func ActivitySources() []ActivitySource {
	return []ActivitySource{
		SourceQuestionApproval,
		SourceProjectSubmission,
		SourceDailyActivity,
		SourceManualGrant,
	}
}

// ValidSource reports whether s is one of the known activity sources.
// Ingestion rejects anything else — an unknown source in the ledger would
// silently contribute weight 0 forever, which is worse than a loud 400.
func ValidSource(s ActivitySource) bool {
	switch s {
	case SourceQuestionApproval, SourceProjectSubmission, SourceDailyActivity, SourceManualGrant:
		return true
	}
	return false
}

// ActivityEntry is one immutable fact in the append-only points ledger.
//
// The ledger is the single source of truth for scoring: User.TotalPoints is
// always re-derivable as the weighted sum of a user's entries. Entries are
// never updated or deleted — corrections are new entries with a negative
// PointsDelta.
//
// DE-DUPLICATION KEY:
// Two entries sharing (UserID, Source, Timestamp) are considered the same
// upstream event written twice (a retried write). Only the first counts.
// The aggregator enforces this in memory and the ledger table backs it with
// a unique index.
type ActivityEntry struct {
	ID          string         `json:"id"          db:"id"`
	UserID      string         `json:"userId"      db:"user_id"`
	Source      ActivitySource `json:"source"      db:"source"`
	PointsDelta int64          `json:"pointsDelta" db:"points_delta"` // negative for corrections
	Timestamp   time.Time      `json:"timestamp"   db:"timestamp"`
	CreatedAt   time.Time      `json:"createdAt"   db:"created_at"`
}

// DedupKey returns the identity of the upstream event this entry records.
// Entries with equal keys are duplicates; only the first one is counted.
func (e *ActivityEntry) DedupKey() string {
	return string(e.Source) + "|" + e.Timestamp.UTC().Format(time.RFC3339Nano)
}

// TimeWindow optionally bounds a ledger read. Zero values mean unbounded on
// that side, so the zero TimeWindow reads the full ledger.
type TimeWindow struct {
	Since time.Time
	Until time.Time
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	if !w.Since.IsZero() && t.Before(w.Since) {
		return false
	}
	if !w.Until.IsZero() && t.After(w.Until) {
		return false
	}
	return true
}

// AggregateResult is the outcome of one score aggregation run.
//
// Partial means one or more ledger sources were unreachable during the read:
// the totals are a best-effort lower bound computed from the sources that
// responded, not an error. Entries is the number of ledger entries counted
// after de-duplication — it is the completeness measure used to decide which
// of two concurrent aggregations gets to persist its projection.
type AggregateResult struct {
	UserID      string    `json:"userId"`
	TotalPoints int64     `json:"totalPoints"`
	CodeCoins   int64     `json:"codeCoins"`
	Partial     bool      `json:"partial"`
	Entries     int       `json:"-"`
	AchievedAt  time.Time `json:"-"`
}
