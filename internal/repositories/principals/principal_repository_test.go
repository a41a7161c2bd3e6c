package principals

import (
	"context"
	"path/filepath"
	"testing"

	"peerprep/interview/internal/testhelpers"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	return &Repository{DB: testhelpers.SetupTestDB(t)}
}

func TestRepository_Ensure(t *testing.T) {
	repo := newRepo(t)

	first, err := repo.Ensure("user-1", "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Ensure returned error: %v", err)
	}
	if first.ID == 0 {
		t.Fatalf("expected row ID to be set")
	}

	second, err := repo.Ensure("user-1", "Renamed", "other@example.com")
	if err != nil {
		t.Fatalf("Ensure returned error: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same row, got %d and %d", first.ID, second.ID)
	}
	if second.Name != "Alice" {
		t.Fatalf("expected name to be kept, got %q", second.Name)
	}
}

func TestRepository_GetByPrincipalID(t *testing.T) {
	repo := newRepo(t)
	if _, err := repo.Ensure("user-2", "Bob", "bob@example.com"); err != nil {
		t.Fatalf("failed to seed principal: %v", err)
	}

	t.Run("success", func(t *testing.T) {
		got, err := repo.GetByPrincipalID("user-2")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Email != "bob@example.com" {
			t.Fatalf("expected email bob@example.com, got %q", got.Email)
		}
	})

	t.Run("not found", func(t *testing.T) {
		if _, err := repo.GetByPrincipalID("nobody"); err != ErrPrincipalNotFound {
			t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
		}
	})
}

func TestOpen_SQLiteFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "principals.db")
	db, err := Open("", path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if !db.Migrator().HasTable("principals") {
		t.Fatalf("expected principals table to be migrated")
	}
}

func TestRepository_Profiles(t *testing.T) {
	repo := newRepo(t)
	for _, p := range [][3]string{{"user-a", "Ann", "ann@example.com"}, {"user-b", "Ben", "ben@example.com"}} {
		if _, err := repo.Ensure(p[0], p[1], p[2]); err != nil {
			t.Fatalf("failed to seed principal: %v", err)
		}
	}

	got, err := repo.Profiles(context.Background(), []string{"user-a", "user-b", "ghost"})
	if err != nil {
		t.Fatalf("Profiles returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(got))
	}
	if got["user-a"].Name != "Ann" || got["user-b"].Email != "ben@example.com" {
		t.Fatalf("unexpected profiles: %+v", got)
	}
	if _, ok := got["ghost"]; ok {
		t.Fatalf("unknown principal should be absent")
	}

	empty, err := repo.Profiles(context.Background(), nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty result, got %v, %v", empty, err)
	}
}
