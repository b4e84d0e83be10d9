package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ExportLikedTracks writes the caller's liked tracks, in library order, into a
// new public playlist. It never looks for or removes an earlier export.
func (p *Pipeline) ExportLikedTracks(
	ctx context.Context,
	handle *TaskHandle,
	auth AuthContext,
	playlistName string,
) (*PlaylistResult, error) {
	startTime := p.now()
	p.reporter.Progressf(handle, "progress.started")

	if playlistName == "" {
		playlistName = DefaultLikedPlaylistName
	}

	client, err := p.factory.NewClient(ctx, auth)
	if err != nil {
		return nil, err
	}

	tracks, err := p.collector.Collect(ctx, client, handle, LikedTracksSource{})
	if err != nil {
		return nil, fmt.Errorf("%w for user's liked songs: %w", ErrNoTracksFound, err)
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w for user's liked songs", ErrNoTracksFound)
	}

	account, user, err := p.requestingUser(ctx, client)
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf(LikedPlaylistDescriptionFormat, startTime.Format("02/01/2006"))
	result, err := p.writer.CreateAndFill(ctx, client, handle, account.ID, playlistName, true, description, tracks)
	if err != nil {
		return nil, err
	}

	duration := p.now().Sub(startTime)
	if err := p.tracker.RecordExport(ctx, user.ID, result.TrackCount, duration); err != nil {
		p.logger.Error("Failed to record export statistics",
			zap.String("userID", user.ID),
			zap.Error(err))
	}

	p.logger.Info("Exported liked tracks",
		zap.String("userID", user.ID),
		zap.String("playlistID", result.PlaylistID),
		zap.Int("tracks", result.TrackCount))

	return result, nil
}
