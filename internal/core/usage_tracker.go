package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// UsageTracker turns completed tasks into counter increments. It never reads
// counters back; every update is one atomic increment in the store.
type UsageTracker struct {
	counters CounterStore
	logger   *zap.Logger
}

func NewUsageTracker(counters CounterStore, logger *zap.Logger) *UsageTracker {
	return &UsageTracker{
		counters: counters,
		logger:   logger,
	}
}

// RecordShuffle adds trackCount shuffled tracks, one shuffle and the duration to
// the user's and the global counters, and bumps the per-source shuffle count.
func (t *UsageTracker) RecordShuffle(
	ctx context.Context,
	userID, sourcePlaylistID, sourcePlaylistName string,
	trackCount int,
	duration time.Duration,
) error {
	delta := UsageDelta{
		TrackShuffles:    int64(trackCount),
		PlaylistShuffles: 1,
		DurationSeconds:  int64(duration / time.Second),
	}

	if err := t.counters.IncrementUserCounters(ctx, userID, delta); err != nil {
		return fmt.Errorf("failed to update user counters: %w", err)
	}

	if err := t.counters.IncrementPlaylistShuffles(ctx, userID, sourcePlaylistID, sourcePlaylistName); err != nil {
		return fmt.Errorf("failed to update playlist counters: %w", err)
	}

	if err := t.counters.IncrementGlobalCounters(ctx, delta); err != nil {
		return fmt.Errorf("failed to update overall counters: %w", err)
	}

	t.logger.Debug("Recorded shuffle",
		zap.String("userID", userID),
		zap.String("playlistID", sourcePlaylistID),
		zap.Int("tracks", trackCount),
		zap.Duration("duration", duration))

	return nil
}

// RecordExport counts one liked-tracks export of trackCount tracks.
func (t *UsageTracker) RecordExport(ctx context.Context, userID string, trackCount int, duration time.Duration) error {
	delta := UsageDelta{
		LikedExports:    1,
		ExportedTracks:  int64(trackCount),
		DurationSeconds: int64(duration / time.Second),
	}

	if err := t.counters.IncrementUserCounters(ctx, userID, delta); err != nil {
		return fmt.Errorf("failed to update user counters: %w", err)
	}

	if err := t.counters.IncrementGlobalCounters(ctx, delta); err != nil {
		return fmt.Errorf("failed to update overall counters: %w", err)
	}

	return nil
}
