package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trueshuffle/internal/core"
)

// PlaylistShuffleCount is how often a user shuffled one source playlist.
type PlaylistShuffleCount struct {
	PlaylistID     string    `json:"playlist_id"`
	PlaylistName   string    `json:"playlist_name"`
	Shuffles       int64     `json:"shuffles"`
	LastShuffledAt time.Time `json:"last_shuffled_at"`
}

const upsertCountersSet = `
	track_shuffles = track_shuffles + excluded.track_shuffles,
	playlist_shuffles = playlist_shuffles + excluded.playlist_shuffles,
	duration_seconds = duration_seconds + excluded.duration_seconds,
	liked_exports = liked_exports + excluded.liked_exports,
	exported_tracks = exported_tracks + excluded.exported_tracks,
	updated_at = excluded.updated_at`

// IncrementUserCounters adds delta to the user's record in one statement.
func (s *Store) IncrementUserCounters(ctx context.Context, userID string, delta core.UsageDelta) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_counters (user_id, track_shuffles, playlist_shuffles, duration_seconds,
			liked_exports, exported_tracks, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET`+upsertCountersSet,
		userID, delta.TrackShuffles, delta.PlaylistShuffles, delta.DurationSeconds,
		delta.LikedExports, delta.ExportedTracks, s.now())
	if err != nil {
		return fmt.Errorf("failed to increment counters for user %s: %w", userID, err)
	}
	return nil
}

// IncrementGlobalCounters adds delta to the overall record in one statement.
func (s *Store) IncrementGlobalCounters(ctx context.Context, delta core.UsageDelta) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO global_counters (counter_id, track_shuffles, playlist_shuffles, duration_seconds,
			liked_exports, exported_tracks, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(counter_id) DO UPDATE SET`+upsertCountersSet,
		OverallCounterID, delta.TrackShuffles, delta.PlaylistShuffles, delta.DurationSeconds,
		delta.LikedExports, delta.ExportedTracks, s.now())
	if err != nil {
		return fmt.Errorf("failed to increment overall counters: %w", err)
	}
	return nil
}

// IncrementPlaylistShuffles bumps the shuffle count of one source playlist and
// remembers its latest name.
func (s *Store) IncrementPlaylistShuffles(ctx context.Context, userID, playlistID, playlistName string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO playlist_shuffles (user_id, playlist_id, playlist_name, shuffles, last_shuffled_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(user_id, playlist_id) DO UPDATE SET
			playlist_name = excluded.playlist_name,
			shuffles = shuffles + 1,
			last_shuffled_at = excluded.last_shuffled_at`,
		userID, playlistID, playlistName, s.now())
	if err != nil {
		return fmt.Errorf("failed to increment shuffles of playlist %s: %w", playlistID, err)
	}
	return nil
}

// UserCounters returns zero counters for a user that has none yet.
func (s *Store) UserCounters(ctx context.Context, userID string) (*core.UsageCounters, error) {
	counters, err := s.readCounters(ctx, `
		SELECT track_shuffles, playlist_shuffles, duration_seconds, liked_exports, exported_tracks, updated_at
		FROM user_counters WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read counters for user %s: %w", userID, err)
	}
	return counters, nil
}

// GlobalCounters returns zero counters before the first recorded task.
func (s *Store) GlobalCounters(ctx context.Context) (*core.UsageCounters, error) {
	counters, err := s.readCounters(ctx, `
		SELECT track_shuffles, playlist_shuffles, duration_seconds, liked_exports, exported_tracks, updated_at
		FROM global_counters WHERE counter_id = ?`, OverallCounterID)
	if err != nil {
		return nil, fmt.Errorf("failed to read overall counters: %w", err)
	}
	return counters, nil
}

func (s *Store) readCounters(ctx context.Context, query string, key string) (*core.UsageCounters, error) {
	var c core.UsageCounters
	err := s.db.QueryRowContext(ctx, query, key).Scan(
		&c.TrackShuffles, &c.PlaylistShuffles, &c.DurationSeconds,
		&c.LikedExports, &c.ExportedTracks, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &core.UsageCounters{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// PlaylistShuffles lists the user's shuffled sources, most shuffled first.
func (s *Store) PlaylistShuffles(ctx context.Context, userID string) ([]PlaylistShuffleCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT playlist_id, playlist_name, shuffles, last_shuffled_at
		FROM playlist_shuffles WHERE user_id = ?
		ORDER BY shuffles DESC, playlist_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlist shuffles for user %s: %w", userID, err)
	}
	defer rows.Close()

	var counts []PlaylistShuffleCount
	for rows.Next() {
		var c PlaylistShuffleCount
		if err := rows.Scan(&c.PlaylistID, &c.PlaylistName, &c.Shuffles, &c.LastShuffledAt); err != nil {
			return nil, fmt.Errorf("failed to scan playlist shuffles: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
