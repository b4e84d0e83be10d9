// Package store persists registered users and usage counters in sqlite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"go.uber.org/zap"

	"trueshuffle/internal/core"
)

const (
	// MemoryPath opens a private in-memory database
	MemoryPath = ":memory:"
	// OverallCounterID is the key of the single global counter record
	OverallCounterID = "overall_counter"
)

// Store implements core.UserStore and core.CounterStore.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open connects to the sqlite database at path. Writes go through a single
// connection so that :memory: databases are shared and upserts never race on
// SQLITE_BUSY.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Debug("Opened database", zap.String("path", path))

	return &Store{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Migrate brings the schema up to date.
func (s *Store) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.db)
}

// Rollback reverts the latest schema version.
func (s *Store) Rollback(ctx context.Context) error {
	return RollbackMigration(ctx, s.db)
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// FindUser returns core.ErrUserNotFound when no user has the given id.
func (s *Store) FindUser(ctx context.Context, id string) (*core.User, error) {
	var user core.User
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, display_name, trackers_enabled, created_at
		FROM users WHERE user_id = ?`, id).
		Scan(&user.ID, &user.DisplayName, &user.TrackersEnabled, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user %s: %w", id, err)
	}
	return &user, nil
}

// UpsertUser records a user, updating the display name and tracker flag when
// the user already exists. The creation time is kept from the first insert.
func (s *Store) UpsertUser(ctx context.Context, user core.User) error {
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, display_name, trackers_enabled, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			display_name = excluded.display_name,
			trackers_enabled = excluded.trackers_enabled`,
		user.ID, user.DisplayName, user.TrackersEnabled, createdAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", user.ID, err)
	}

	s.logger.Info("Upserted user",
		zap.String("userID", user.ID),
		zap.Bool("trackersEnabled", user.TrackersEnabled))
	return nil
}
