package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Shuffle collects the tracks of playlistID, permutes them uniformly, replaces
// any previous shuffled copy named after playlistName and writes the result
// into a new private playlist. Counters are only touched after the write
// fully succeeded.
func (p *Pipeline) Shuffle(
	ctx context.Context,
	handle *TaskHandle,
	auth AuthContext,
	playlistID, playlistName string,
) (*PlaylistResult, error) {
	startTime := p.now()
	p.reporter.Progressf(handle, "progress.started")

	client, err := p.factory.NewClient(ctx, auth)
	if err != nil {
		return nil, err
	}

	source := ParseSource(playlistID)
	tracks, err := p.collector.Collect(ctx, client, handle, source)
	if err != nil {
		return nil, fmt.Errorf("%w for playlist %s: %w", ErrNoTracksFound, playlistID, err)
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w for playlist %s", ErrNoTracksFound, playlistID)
	}

	account, user, err := p.requestingUser(ctx, client)
	if err != nil {
		return nil, err
	}

	p.reporter.Progressf(handle, "progress.shuffling", len(tracks))
	p.shuffle(len(tracks), func(i, j int) {
		tracks[i], tracks[j] = tracks[j], tracks[i]
	})

	shuffledName := ShuffledPlaylistPrefix + playlistName
	if err := p.removePreviousCopy(ctx, client, handle, shuffledName); err != nil {
		return nil, err
	}

	result, err := p.writer.CreateAndFill(ctx, client, handle, account.ID, shuffledName, false,
		ShuffledPlaylistDescription, tracks)
	if err != nil {
		return nil, err
	}

	duration := p.now().Sub(startTime)
	if err := p.tracker.RecordShuffle(ctx, user.ID, playlistID, playlistName, result.TrackCount, duration); err != nil {
		// The playlist exists at this point; losing a statistic must not fail the task.
		p.logger.Error("Failed to record shuffle statistics",
			zap.String("userID", user.ID),
			zap.String("playlistID", playlistID),
			zap.Error(err))
	}

	p.logger.Info("Shuffled playlist",
		zap.String("userID", user.ID),
		zap.String("sourceID", playlistID),
		zap.String("playlistID", result.PlaylistID),
		zap.Int("tracks", result.TrackCount),
		zap.Duration("duration", duration))

	return result, nil
}

// requestingUser resolves the remote account and its registered user record.
func (p *Pipeline) requestingUser(ctx context.Context, client CatalogClient) (*Account, *User, error) {
	account, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get current user: %w", err)
	}

	user, err := p.users.FindUser(ctx, account.ID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("failed to look up user %s: %w", account.ID, err)
	}

	return account, user, nil
}

// removePreviousCopy unfollows the first playlist named exactly shuffledName.
func (p *Pipeline) removePreviousCopy(ctx context.Context, client CatalogClient, handle *TaskHandle, shuffledName string) error {
	playlists, err := client.ListUserPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("failed to list user playlists: %w", err)
	}

	for i := range playlists {
		if playlists[i].Name != shuffledName {
			continue
		}

		p.reporter.Progressf(handle, "progress.replacing")
		if err := client.UnfollowPlaylist(ctx, playlists[i].ID); err != nil {
			return fmt.Errorf("failed to remove previous shuffled playlist %s: %w", playlists[i].ID, err)
		}

		p.logger.Info("Removed previous shuffled playlist",
			zap.String("playlistID", playlists[i].ID),
			zap.String("name", shuffledName))
		break
	}

	return nil
}
