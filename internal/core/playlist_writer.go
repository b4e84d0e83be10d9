package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PlaylistWriter creates a destination playlist and fills it in fixed-size batches.
type PlaylistWriter struct {
	reporter *ProgressReporter
	logger   *zap.Logger
	now      func() time.Time
}

func NewPlaylistWriter(reporter *ProgressReporter, logger *zap.Logger) *PlaylistWriter {
	return &PlaylistWriter{
		reporter: reporter,
		logger:   logger,
		now:      time.Now,
	}
}

// ValidateTracks keeps, in order, the refs that pass TrackRef.Valid and returns
// the rejected ones separately.
func ValidateTracks(tracks []TrackRef) (valid, invalid []TrackRef) {
	valid = make([]TrackRef, 0, len(tracks))
	for _, track := range tracks {
		if track.Valid() {
			valid = append(valid, track)
		} else {
			invalid = append(invalid, track)
		}
	}
	return valid, invalid
}

// Batches splits tracks into ceil(len/size) consecutive chunks of at most size.
// The last chunk is never empty.
func Batches(tracks []TrackRef, size int) [][]TrackRef {
	if size <= 0 || len(tracks) == 0 {
		return nil
	}

	count := (len(tracks) + size - 1) / size
	batches := make([][]TrackRef, 0, count)
	for start := 0; start < len(tracks); start += size {
		end := min(start+size, len(tracks))
		batches = append(batches, tracks[start:end])
	}
	return batches
}

// CreateAndFill creates a playlist owned by ownerID and writes tracks into it.
// A batch without a snapshot id aborts the whole operation with a
// *PartialWriteError; the created playlist is not rolled back.
func (w *PlaylistWriter) CreateAndFill(
	ctx context.Context,
	client CatalogClient,
	handle *TaskHandle,
	ownerID, name string,
	public bool,
	description string,
	tracks []TrackRef,
) (*PlaylistResult, error) {
	valid, invalid := ValidateTracks(tracks)
	if len(invalid) > 0 {
		w.logger.Warn("Tracks without the correct uri format were removed",
			zap.Int("removed", len(invalid)),
			zap.Any("tracks", invalid))
	}
	if len(valid) == 0 {
		return nil, ErrNoValidTracks
	}

	w.reporter.Progressf(handle, "progress.creating_playlist", name)
	playlist, err := client.CreatePlaylist(ctx, ownerID, name, public, description)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreationFailed, err)
	}
	if playlist == nil || playlist.ID == "" {
		return nil, fmt.Errorf("%w: created playlist id is missing", ErrCreationFailed)
	}

	w.logger.Info("Initialised playlist",
		zap.String("userID", ownerID),
		zap.String("playlistID", playlist.ID))

	total := len(valid)
	written := 0
	for i, batch := range Batches(valid, BatchSize) {
		snapshotID, addErr := client.AddTracksToPlaylist(ctx, playlist.ID, batch)
		if addErr != nil || snapshotID == "" {
			w.logger.Error("Error while adding tracks",
				zap.String("playlistID", playlist.ID),
				zap.Int("batch", i+1),
				zap.Int("written", written),
				zap.Int("total", total),
				zap.Error(addErr))
			return nil, &PartialWriteError{
				PlaylistID: playlist.ID,
				Written:    written,
				Total:      total,
				Err:        addErr,
			}
		}

		written += len(batch)
		w.reporter.Progressf(handle, "progress.added", written, total)
	}

	w.logger.Info("Created playlist",
		zap.String("userID", ownerID),
		zap.String("playlistID", playlist.ID),
		zap.Int("length", total))

	return &PlaylistResult{
		PlaylistID:   playlist.ID,
		PlaylistURI:  playlist.ExternalURL,
		TrackCount:   total,
		CreationTime: w.now(),
	}, nil
}
