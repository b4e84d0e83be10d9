package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// PlaylistListing is the set of sources a user can pick from.
type PlaylistListing struct {
	Playlists []PlaylistDescriptor `json:"all_playlists"`
	Counters  *UsageCounters       `json:"user_shuffle_counter,omitempty"`
}

// DeleteResult reports the shuffled copies removed by DeleteShuffledPlaylists.
type DeleteResult struct {
	Count       int      `json:"deleted_playlists_count"`
	PlaylistIDs []string `json:"deleted_playlists"`
}

// Library serves the synchronous, non-task operations on a user's catalog.
type Library struct {
	factory  ClientFactory
	users    UserStore
	counters CounterStore
	logger   *zap.Logger
}

func NewLibrary(factory ClientFactory, users UserStore, counters CounterStore, logger *zap.Logger) *Library {
	return &Library{
		factory:  factory,
		users:    users,
		counters: counters,
		logger:   logger,
	}
}

// ListPlaylists returns the liked-tracks source followed by every playlist that
// is not itself a shuffled copy. With includeStats the user's counters are
// attached when the user exists and has trackers enabled.
func (l *Library) ListPlaylists(ctx context.Context, auth AuthContext, includeStats bool) (*PlaylistListing, error) {
	client, err := l.factory.NewClient(ctx, auth)
	if err != nil {
		return nil, err
	}

	account, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	playlists, err := client.ListUserPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list user playlists: %w", err)
	}

	listing := &PlaylistListing{
		Playlists: make([]PlaylistDescriptor, 0, len(playlists)+1),
	}
	listing.Playlists = append(listing.Playlists, PlaylistDescriptor{
		ID:        LikedTracksID,
		Name:      LikedTracksName,
		Owner:     account.ID,
		OwnerName: account.DisplayName,
		CoverURL:  LikedTracksCoverURL,
	})
	for i := range playlists {
		if strings.HasPrefix(playlists[i].Name, ShuffledPlaylistPrefix) {
			continue
		}
		listing.Playlists = append(listing.Playlists, playlists[i])
	}

	l.logger.Info("Retrieved playlists",
		zap.String("userID", account.ID),
		zap.Int("playlists", len(listing.Playlists)))

	if includeStats {
		listing.Counters = l.userCounters(ctx, account.ID)
	}

	return listing, nil
}

// userCounters returns nil when statistics are unavailable for the user.
func (l *Library) userCounters(ctx context.Context, userID string) *UsageCounters {
	user, err := l.users.FindUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			l.logger.Warn("Failed to look up user for statistics", zap.String("userID", userID), zap.Error(err))
		}
		return nil
	}
	if !user.TrackersEnabled {
		return nil
	}

	counters, err := l.counters.UserCounters(ctx, userID)
	if err != nil {
		l.logger.Warn("Failed to load user counters", zap.String("userID", userID), zap.Error(err))
		return nil
	}
	return counters
}

// DeleteShuffledPlaylists unfollows every playlist carrying the shuffled
// prefix. The first failing unfollow aborts; earlier ones stay unfollowed.
func (l *Library) DeleteShuffledPlaylists(ctx context.Context, auth AuthContext) (*DeleteResult, error) {
	client, err := l.factory.NewClient(ctx, auth)
	if err != nil {
		return nil, err
	}

	playlists, err := client.ListUserPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list user playlists: %w", err)
	}

	result := &DeleteResult{PlaylistIDs: []string{}}
	for i := range playlists {
		if !strings.HasPrefix(playlists[i].Name, ShuffledPlaylistPrefix) {
			continue
		}
		if err := client.UnfollowPlaylist(ctx, playlists[i].ID); err != nil {
			return result, fmt.Errorf("failed to delete playlist %s: %w", playlists[i].ID, err)
		}
		result.PlaylistIDs = append(result.PlaylistIDs, playlists[i].ID)
		result.Count++
	}

	l.logger.Info("Deleted shuffled playlists",
		zap.Int("count", result.Count),
		zap.Strings("playlists", result.PlaylistIDs))

	return result, nil
}

// OverallStatistics returns the global counters.
func (l *Library) OverallStatistics(ctx context.Context) (*UsageCounters, error) {
	counters, err := l.counters.GlobalCounters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load overall counters: %w", err)
	}
	return counters, nil
}
