package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nafis/campus-hub/internal/apperror"
	"github.com/nafis/campus-hub/internal/model"
)

// TESTING WITH IN-MEMORY SQLITE:
// ":memory:" creates a fresh database that exists only for the test — fast,
// isolated, destroyed when the connection closes.
//
// newTestDB is a test helper; t.Helper() makes failures report at the
// CALLER's line, and t.Cleanup closes the DB even if a subtest fails.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, name, email string) *model.User {
	t.Helper()
	user := &model.User{Name: name, Email: email}
	if err := db.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func TestUserCreate(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{Name: "Nabil", Email: "nabil@campus.test"}
	if err := db.Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if user.ID == "" {
		t.Error("Create() did not generate an ID")
	}
	if user.Role != model.RoleMember {
		t.Errorf("Create() role = %q, want %q", user.Role, model.RoleMember)
	}
	if user.Version != 1 {
		t.Errorf("Create() version = %d, want 1", user.Version)
	}
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "First", "same@campus.test")

	err := db.Create(context.Background(), &model.User{Name: "Second", Email: "same@campus.test"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() with duplicate email error = %v, want ErrConflict", err)
	}
}

func TestUserGetByID(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "Nabil", "nabil@campus.test")

	got, err := db.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Nabil" || got.Email != "nabil@campus.test" {
		t.Errorf("GetByID() = %+v, want the created user", got)
	}
}

func TestUserGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByID(context.Background(), "no-such-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestUserGetByEmail(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "Nabil", "nabil@campus.test")

	got, err := db.GetByEmail(context.Background(), "nabil@campus.test")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("GetByEmail() ID = %q, want %q", got.ID, created.ID)
	}
}

func TestUserUpsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// First OAuth login creates the account.
	user := &model.User{GitHubID: 42, Name: "Rahim", Email: "rahim@campus.test"}
	if err := db.Upsert(ctx, user); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	firstID := user.ID

	// Grant things between logins.
	if err := db.SetUploadProject(ctx, firstID, true); err != nil {
		t.Fatalf("SetUploadProject() error = %v", err)
	}

	// Second login: same GitHub ID, changed profile.
	again := &model.User{GitHubID: 42, Name: "Rahim Uddin", Email: "rahim@campus.test"}
	if err := db.Upsert(ctx, again); err != nil {
		t.Fatalf("Upsert() second login error = %v", err)
	}

	if again.ID != firstID {
		t.Errorf("Upsert() created a second account: %q vs %q", again.ID, firstID)
	}
	if again.Name != "Rahim Uddin" {
		t.Errorf("Upsert() did not refresh name: %q", again.Name)
	}
	if !again.UploadProject {
		t.Error("Upsert() lost the upload_project flag on re-login")
	}
}

func TestUserUpsert_PasswordAccountsCoexist(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Two password accounts both have github_id = 0; the partial unique
	// index must not treat them as the same identity.
	createTestUser(t, db, "One", "one@campus.test")
	createTestUser(t, db, "Two", "two@campus.test")

	users, err := db.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(users) != 2 {
		t.Errorf("List() returned %d users, want 2", len(users))
	}
}

func TestUpdateScore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "Nabil", "nabil@campus.test")

	achieved := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	result := &model.AggregateResult{
		UserID:      user.ID,
		TotalPoints: 35,
		CodeCoins:   3,
		Entries:     4,
		AchievedAt:  achieved,
	}

	if err := db.UpdateScore(ctx, user.ID, result, user.Version); err != nil {
		t.Fatalf("UpdateScore() error = %v", err)
	}

	got, err := db.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() after update error = %v", err)
	}
	if got.TotalPoints != 35 || got.CodeCoins != 3 || got.ScoreEntries != 4 {
		t.Errorf("UpdateScore() stored %+v, want totals 35/3/4", got)
	}
	if !got.ScoreAchievedAt.Equal(achieved) {
		t.Errorf("UpdateScore() achievedAt = %v, want %v", got.ScoreAchievedAt, achieved)
	}
	if got.Version != user.Version+1 {
		t.Errorf("UpdateScore() version = %d, want %d", got.Version, user.Version+1)
	}
}

func TestUpdateScore_StaleVersion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "Nabil", "nabil@campus.test")

	result := &model.AggregateResult{UserID: user.ID, TotalPoints: 10, Entries: 1}

	// First write wins...
	if err := db.UpdateScore(ctx, user.ID, result, user.Version); err != nil {
		t.Fatalf("UpdateScore() error = %v", err)
	}

	// ...second write carries the now-stale version and must lose.
	err := db.UpdateScore(ctx, user.ID, result, user.Version)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("UpdateScore() with stale version error = %v, want ErrConflict", err)
	}
}

func TestUpdateScore_UnknownUser(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateScore(context.Background(), "ghost",
		&model.AggregateResult{UserID: "ghost"}, 1)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateScore() for unknown user error = %v, want ErrNotFound", err)
	}
}

func TestSetUploadProject_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.SetUploadProject(context.Background(), "ghost", true)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("SetUploadProject() error = %v, want ErrNotFound", err)
	}
}
