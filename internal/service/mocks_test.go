package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/nafis/campus-hub/internal/apperror"
	"github.com/nafis/campus-hub/internal/metrics"
	"github.com/nafis/campus-hub/internal/model"
	"github.com/nafis/campus-hub/internal/repository"
)

// =========================================================================
// MOCK REPOSITORIES
// =========================================================================
//
// Hand-written in-memory fakes implementing the repository interfaces.
// The services don't know or care which implementation they get — that's
// the point of programming to an interface. The `fail*` fields let tests
// simulate failures (store down, lost CAS races) that would be awkward to
// trigger with a real database.

type mockUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int

	failGet  error // returned by GetByID/GetByEmail/List when set
	failList error
	// forceConflicts makes the next N UpdateScore calls lose the version
	// race regardless of the version they carry.
	forceConflicts int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.Email {
			return apperror.Conflict("user", user.Email)
		}
	}

	m.nextID++
	user.ID = fmt.Sprintf("user-%d", m.nextID)
	if user.Role == "" {
		user.Role = model.RoleMember
	}
	user.Version = 1
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) Upsert(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	for _, u := range m.users {
		if u.GitHubID == user.GitHubID && user.GitHubID != 0 {
			// Refresh profile fields only — role, flags, and the score
			// projection survive re-login, same as the real store.
			u.Name = user.Name
			u.Email = user.Email
			copied := *u
			m.mu.Unlock()
			*user = copied
			return nil
		}
	}
	m.mu.Unlock()
	return m.Create(ctx, user)
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failGet != nil {
		return nil, m.failGet
	}
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *u
	return &result, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failGet != nil {
		return nil, m.failGet
	}
	for _, u := range m.users {
		if u.Email == email {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (m *mockUserRepo) List(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failList != nil {
		return nil, m.failList
	}
	result := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockUserRepo) UpdateScore(_ context.Context, id string, result *model.AggregateResult, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.forceConflicts > 0 {
		m.forceConflicts--
		return apperror.VersionConflict(id)
	}

	u, ok := m.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	if u.Version != expectedVersion {
		return apperror.VersionConflict(id)
	}

	u.TotalPoints = result.TotalPoints
	u.CodeCoins = result.CodeCoins
	u.ScoreEntries = result.Entries
	u.ScorePartial = result.Partial
	u.ScoreAchievedAt = result.AchievedAt
	u.Version++
	return nil
}

func (m *mockUserRepo) SetUploadProject(_ context.Context, id string, allowed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.UploadProject = allowed
	return nil
}

// addUser seeds a user directly, bypassing Create's defaults.
func (m *mockUserRepo) addUser(u model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.Version == 0 {
		u.Version = 1
	}
	m.users[u.ID] = &u
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

type mockLedgerRepo struct {
	mu      sync.Mutex
	entries []model.ActivityEntry
	nextID  int

	// failSources simulates per-source outages: ReadEntries for a listed
	// source returns its error while the other sources keep working.
	failSources map[model.ActivitySource]error
	failAppend  error
}

func newMockLedgerRepo() *mockLedgerRepo {
	return &mockLedgerRepo{failSources: make(map[model.ActivitySource]error)}
}

func (m *mockLedgerRepo) Append(_ context.Context, entry *model.ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failAppend != nil {
		return m.failAppend
	}
	for _, e := range m.entries {
		if e.UserID == entry.UserID && e.Source == entry.Source && e.Timestamp.Equal(entry.Timestamp) {
			return apperror.Conflict("activity entry", entry.DedupKey())
		}
	}

	m.nextID++
	entry.ID = fmt.Sprintf("entry-%d", m.nextID)
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockLedgerRepo) ReadEntries(_ context.Context, userID string, source model.ActivitySource, window model.TimeWindow) ([]model.ActivityEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failSources[source]; ok {
		return nil, err
	}

	var result []model.ActivityEntry
	for _, e := range m.entries {
		if e.UserID == userID && e.Source == source && window.Contains(e.Timestamp) {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

// add seeds an entry directly, skipping Append's duplicate check — tests
// for the de-duplication law need actual duplicates in the ledger.
func (m *mockLedgerRepo) add(e model.ActivityEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = fmt.Sprintf("entry-%d", m.nextID)
	m.entries = append(m.entries, e)
}

var _ repository.LedgerRepository = (*mockLedgerRepo)(nil)

// =========================================================================
// TEST HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testWeights is the documented default weight policy, pinned here so the
// scenario tests read as plain arithmetic.
func testWeights() map[model.ActivitySource]int64 {
	return map[model.ActivitySource]int64{
		model.SourceQuestionApproval:  10,
		model.SourceProjectSubmission: 25,
		model.SourceDailyActivity:     1,
		model.SourceManualGrant:       1,
	}
}

// newTestScoreService wires a ScoreService over fresh mocks.
func newTestScoreService(t *testing.T) (*ScoreService, *mockUserRepo, *mockLedgerRepo) {
	t.Helper()
	users := newMockUserRepo()
	ledger := newMockLedgerRepo()
	reader := NewLedgerReader(ledger, metrics.Nop{}, testLogger())
	svc := NewScoreService(reader, ledger, users, testWeights(), metrics.Nop{}, testLogger())
	return svc, users, ledger
}
