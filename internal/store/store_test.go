package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"trueshuffle/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(MemoryPath, zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return s
}

func TestMigrations(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("loadMigrations() error = %v", err)
		}
		if len(migrations) == 0 {
			t.Fatal("Expected at least one migration")
		}
		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("Migrations not sorted: %d after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		s := newTestStore(t)
		if err := s.Migrate(context.Background()); err != nil {
			t.Fatalf("Second Migrate() error = %v", err)
		}
	})

	t.Run("rollback", func(t *testing.T) {
		s := newTestStore(t)
		ctx := context.Background()

		if err := s.Rollback(ctx); err != nil {
			t.Fatalf("Rollback() error = %v", err)
		}
		if _, err := s.db.ExecContext(ctx, "SELECT 1 FROM users LIMIT 1"); err == nil {
			t.Error("users table should not exist after rollback")
		}
		if err := s.Rollback(ctx); !errors.Is(err, ErrNoMigrations) {
			t.Errorf("Rollback() on empty schema error = %v, expected ErrNoMigrations", err)
		}
	})
}

func TestStore_Users(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.FindUser(ctx, "user1"); !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("FindUser() on empty store error = %v, expected ErrUserNotFound", err)
	}

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.UpsertUser(ctx, core.User{ID: "user1", DisplayName: "First", TrackersEnabled: true, CreatedAt: created}); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	if err := s.UpsertUser(ctx, core.User{ID: "user1", DisplayName: "Renamed", TrackersEnabled: false}); err != nil {
		t.Fatalf("Second UpsertUser() error = %v", err)
	}

	user, err := s.FindUser(ctx, "user1")
	if err != nil {
		t.Fatalf("FindUser() error = %v", err)
	}
	if user.DisplayName != "Renamed" || user.TrackersEnabled {
		t.Errorf("Unexpected user %+v", user)
	}
	if !user.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, expected the first insert time %v", user.CreatedAt, created)
	}
}

func TestStore_CountersStartAtZero(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.UserCounters(ctx, "nobody")
	if err != nil {
		t.Fatalf("UserCounters() error = %v", err)
	}
	if *user != (core.UsageCounters{}) {
		t.Errorf("Expected zero counters, got %+v", user)
	}

	global, err := s.GlobalCounters(ctx)
	if err != nil {
		t.Fatalf("GlobalCounters() error = %v", err)
	}
	if global.TrackShuffles != 0 || global.PlaylistShuffles != 0 {
		t.Errorf("Expected zero counters, got %+v", global)
	}
}

func TestStore_IncrementCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	shuffle := core.UsageDelta{TrackShuffles: 10, PlaylistShuffles: 1, DurationSeconds: 2}
	export := core.UsageDelta{LikedExports: 1, ExportedTracks: 40, DurationSeconds: 3}

	for _, delta := range []core.UsageDelta{shuffle, shuffle, export} {
		if err := s.IncrementUserCounters(ctx, "user1", delta); err != nil {
			t.Fatalf("IncrementUserCounters() error = %v", err)
		}
		if err := s.IncrementGlobalCounters(ctx, delta); err != nil {
			t.Fatalf("IncrementGlobalCounters() error = %v", err)
		}
	}

	user, err := s.UserCounters(ctx, "user1")
	if err != nil {
		t.Fatalf("UserCounters() error = %v", err)
	}
	expected := core.UsageCounters{
		TrackShuffles:    20,
		PlaylistShuffles: 2,
		DurationSeconds:  7,
		LikedExports:     1,
		ExportedTracks:   40,
	}
	user.UpdatedAt = time.Time{}
	if *user != expected {
		t.Errorf("User counters = %+v, expected %+v", *user, expected)
	}

	global, err := s.GlobalCounters(ctx)
	if err != nil {
		t.Fatalf("GlobalCounters() error = %v", err)
	}
	if global.TrackShuffles != 20 || global.UpdatedAt.IsZero() {
		t.Errorf("Unexpected global counters %+v", global)
	}
}

func TestStore_ConcurrentIncrements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			delta := core.UsageDelta{TrackShuffles: 10, PlaylistShuffles: 1}
			if err := s.IncrementUserCounters(ctx, "user1", delta); err != nil {
				t.Errorf("IncrementUserCounters() error = %v", err)
			}
			if err := s.IncrementGlobalCounters(ctx, delta); err != nil {
				t.Errorf("IncrementGlobalCounters() error = %v", err)
			}
		}()
	}
	wg.Wait()

	user, err := s.UserCounters(ctx, "user1")
	if err != nil {
		t.Fatalf("UserCounters() error = %v", err)
	}
	if user.TrackShuffles != 10*workers || user.PlaylistShuffles != workers {
		t.Errorf("Lost updates: %+v", user)
	}

	global, err := s.GlobalCounters(ctx)
	if err != nil {
		t.Fatalf("GlobalCounters() error = %v", err)
	}
	if global.TrackShuffles != 10*workers {
		t.Errorf("Lost global updates: %+v", global)
	}
}

func TestStore_PlaylistShuffles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	calls := []struct{ id, name string }{
		{"p1", "Road Trip"},
		{"p2", "Focus"},
		{"p1", "Road Trip 2024"},
	}
	for _, c := range calls {
		if err := s.IncrementPlaylistShuffles(ctx, "user1", c.id, c.name); err != nil {
			t.Fatalf("IncrementPlaylistShuffles() error = %v", err)
		}
	}
	if err := s.IncrementPlaylistShuffles(ctx, "user2", "p1", "Other"); err != nil {
		t.Fatalf("IncrementPlaylistShuffles() error = %v", err)
	}

	counts, err := s.PlaylistShuffles(ctx, "user1")
	if err != nil {
		t.Fatalf("PlaylistShuffles() error = %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("Expected 2 playlists, got %d", len(counts))
	}
	if counts[0].PlaylistID != "p1" || counts[0].Shuffles != 2 || counts[0].PlaylistName != "Road Trip 2024" {
		t.Errorf("Unexpected first entry %+v", counts[0])
	}
	if counts[1].PlaylistID != "p2" || counts[1].Shuffles != 1 {
		t.Errorf("Unexpected second entry %+v", counts[1])
	}
}

// Store must satisfy the core persistence interfaces.
var (
	_ core.UserStore    = (*Store)(nil)
	_ core.CounterStore = (*Store)(nil)
)
