package handler_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/nafis/campus-hub/internal/apperror"
	"github.com/nafis/campus-hub/internal/auth"
	"github.com/nafis/campus-hub/internal/metrics"
	"github.com/nafis/campus-hub/internal/model"
	"github.com/nafis/campus-hub/internal/service"
)

// In-memory fakes for the repository interfaces, so handler tests run the
// real service stack with no database.

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Conflict("user", user.Email)
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.Version = 1
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) Upsert(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	for _, u := range f.users {
		if u.GitHubID == user.GitHubID && user.GitHubID != 0 {
			copied := *u
			f.mu.Unlock()
			*user = copied
			return nil
		}
	}
	f.mu.Unlock()
	return f.Create(ctx, user)
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *u
	return &result, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) List(_ context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeUserRepo) UpdateScore(_ context.Context, id string, result *model.AggregateResult, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
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

func (f *fakeUserRepo) SetUploadProject(_ context.Context, id string, allowed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.UploadProject = allowed
	return nil
}

func (f *fakeUserRepo) add(u model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.Version == 0 {
		u.Version = 1
	}
	f.users[u.ID] = &u
}

type fakeLedgerRepo struct {
	mu      sync.Mutex
	entries []model.ActivityEntry
}

func (f *fakeLedgerRepo) Append(_ context.Context, entry *model.ActivityEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.UserID == entry.UserID && e.Source == entry.Source && e.Timestamp.Equal(entry.Timestamp) {
			return apperror.Conflict("activity entry", entry.DedupKey())
		}
	}
	entry.ID = "entry"
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeLedgerRepo) ReadEntries(_ context.Context, userID string, source model.ActivitySource, window model.TimeWindow) ([]model.ActivityEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []model.ActivityEntry
	for _, e := range f.entries {
		if e.UserID == userID && e.Source == source && window.Contains(e.Timestamp) {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

// testEnv wires the real services over the fakes, the way the server does
// at startup, minus the database.
type testEnv struct {
	users    *fakeUserRepo
	ledger   *fakeLedgerRepo
	tokens   *auth.TokenService
	scores   *service.ScoreService
	boards   *service.LeaderboardService
	resolver *service.IdentityService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	tokens, err := auth.NewTokenService("test-secret-key-32-bytes-long!!!")
	require.NoError(t, err)

	users := newFakeUserRepo()
	ledger := &fakeLedgerRepo{}

	reader := service.NewLedgerReader(ledger, metrics.Nop{}, logger)
	weights := map[model.ActivitySource]int64{
		model.SourceQuestionApproval:  10,
		model.SourceProjectSubmission: 25,
		model.SourceDailyActivity:     1,
		model.SourceManualGrant:       1,
	}

	return &testEnv{
		users:    users,
		ledger:   ledger,
		tokens:   tokens,
		scores:   service.NewScoreService(reader, ledger, users, weights, metrics.Nop{}, logger),
		boards:   service.NewLeaderboardService(users, metrics.Nop{}, logger),
		resolver: service.NewIdentityService(tokens, users, logger),
	}
}

func (e *testEnv) logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// authed attaches a session cookie for the given user to the request.
func (e *testEnv) authed(t *testing.T, req *http.Request, userID string) {
	t.Helper()
	token, err := e.tokens.Generate(userID)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
}

// identified wraps a handler in the identity-resolving middleware, the same
// chain requests pass through in production.
func (e *testEnv) identified(h http.HandlerFunc) http.Handler {
	return auth.ResolveIdentity(e.resolver)(h)
}

// withURLParam injects a chi route parameter so handlers that read
// chi.URLParam can be called without mounting a full router.
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
