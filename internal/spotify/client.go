// Package spotify provides the Spotify Web API catalog client used by the shuffle pipelines.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"trueshuffle/internal/core"
)

const (
	// PlaylistPageSize is the page size used when listing the user's playlists
	PlaylistPageSize = 50
	// ExternalURLKey selects the web link from a playlist's external urls
	ExternalURLKey = "spotify"
)

// Scopes are the permissions a caller's token must carry.
var Scopes = []string{
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopeUserLibraryRead,
	spotifyauth.ScopeUserReadPrivate,
}

// Factory builds per-request catalog clients from caller credentials.
type Factory struct {
	config *core.SpotifyConfig
	auth   *spotifyauth.Authenticator
	logger *zap.Logger
	now    func() time.Time
}

func NewFactory(config *core.SpotifyConfig, logger *zap.Logger) *Factory {
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(config.RedirectURL),
		spotifyauth.WithScopes(Scopes...),
		spotifyauth.WithClientID(config.ClientID),
		spotifyauth.WithClientSecret(config.ClientSecret),
	)

	return &Factory{
		config: config,
		auth:   auth,
		logger: logger,
		now:    time.Now,
	}
}

// Validate rejects credentials without an access token, and expired ones that
// cannot be refreshed.
func (f *Factory) Validate(auth core.AuthContext) error {
	if auth.AccessToken == "" {
		return fmt.Errorf("%w: access token is missing", core.ErrAuthInvalid)
	}
	if auth.RefreshToken == "" && !auth.Expiry.IsZero() && !auth.Expiry.After(f.now()) {
		return fmt.Errorf("%w: access token expired and no refresh token was given", core.ErrAuthInvalid)
	}
	return nil
}

// NewClient returns a catalog client acting for the holder of auth. Expired
// tokens are refreshed transparently by the oauth2 transport.
func (f *Factory) NewClient(ctx context.Context, auth core.AuthContext) (core.CatalogClient, error) {
	if err := f.Validate(auth); err != nil {
		return nil, err
	}

	var opts []spotify.ClientOption
	if f.config.APIURL != "" {
		opts = append(opts, spotify.WithBaseURL(f.config.APIURL))
	}

	client := spotify.New(f.auth.Client(ctx, tokenFromAuth(auth)), opts...)
	return NewCatalog(client, f.logger), nil
}

func tokenFromAuth(auth core.AuthContext) *oauth2.Token {
	tokenType := auth.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	token := &oauth2.Token{
		AccessToken:  auth.AccessToken,
		TokenType:    tokenType,
		RefreshToken: auth.RefreshToken,
		Expiry:       auth.Expiry,
	}
	if auth.Scope != "" {
		token = token.WithExtra(map[string]interface{}{"scope": auth.Scope})
	}
	return token
}

// Catalog implements core.CatalogClient on top of the Spotify Web API.
type Catalog struct {
	client *spotify.Client
	logger *zap.Logger
}

func NewCatalog(client *spotify.Client, logger *zap.Logger) *Catalog {
	return &Catalog{
		client: client,
		logger: logger,
	}
}

func (c *Catalog) CurrentUser(ctx context.Context) (*core.Account, error) {
	user, err := c.client.CurrentUser(ctx)
	if err != nil {
		return nil, wrapError("get current user", err)
	}

	return &core.Account{
		ID:          user.ID,
		DisplayName: user.DisplayName,
	}, nil
}

// ListUserPlaylists returns every playlist the user owns or follows.
func (c *Catalog) ListUserPlaylists(ctx context.Context) ([]core.PlaylistDescriptor, error) {
	var playlists []core.PlaylistDescriptor
	offset := 0

	for {
		page, err := c.client.CurrentUsersPlaylists(ctx,
			spotify.Limit(PlaylistPageSize), spotify.Offset(offset))
		if err != nil {
			return nil, wrapError("list user playlists", err)
		}

		for i := range page.Playlists {
			playlists = append(playlists, convertPlaylist(&page.Playlists[i]))
		}

		offset += len(page.Playlists)
		if len(page.Playlists) < PlaylistPageSize || offset >= int(page.Total) {
			break
		}
	}

	c.logger.Debug("Retrieved user playlists", zap.Int("count", len(playlists)))
	return playlists, nil
}

func (c *Catalog) SavedTracksPage(ctx context.Context, limit, offset int) ([]core.CatalogItem, error) {
	page, err := c.client.CurrentUsersTracks(ctx, spotify.Limit(limit), spotify.Offset(offset))
	if err != nil {
		return nil, wrapError("get saved tracks", err)
	}

	items := make([]core.CatalogItem, 0, len(page.Tracks))
	for i := range page.Tracks {
		items = append(items, core.CatalogItem{Track: convertTrack(&page.Tracks[i].FullTrack)})
	}
	return items, nil
}

func (c *Catalog) PlaylistItemsPage(ctx context.Context, playlistID string, limit, offset int) ([]core.CatalogItem, error) {
	page, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
		spotify.Limit(limit), spotify.Offset(offset))
	if err != nil {
		return nil, wrapError("get playlist items", err)
	}

	items := make([]core.CatalogItem, 0, len(page.Items))
	for i := range page.Items {
		// Episodes and removed tracks have no playable track
		var track *core.CatalogTrack
		if page.Items[i].Track.Track != nil {
			track = convertTrack(page.Items[i].Track.Track)
		}
		items = append(items, core.CatalogItem{Track: track})
	}
	return items, nil
}

func (c *Catalog) CreatePlaylist(
	ctx context.Context,
	ownerID, name string,
	public bool,
	description string,
) (*core.PlaylistDescriptor, error) {
	playlist, err := c.client.CreatePlaylistForUser(ctx, ownerID, name, description, public, false)
	if err != nil {
		return nil, wrapError("create playlist", err)
	}

	c.logger.Debug("Created playlist",
		zap.String("playlistID", string(playlist.ID)),
		zap.String("name", name),
		zap.Bool("public", public))

	descriptor := convertPlaylist(&playlist.SimplePlaylist)
	return &descriptor, nil
}

func (c *Catalog) AddTracksToPlaylist(ctx context.Context, playlistID string, batch []core.TrackRef) (string, error) {
	ids := make([]spotify.ID, 0, len(batch))
	for _, ref := range batch {
		ids = append(ids, spotify.ID(ref.ID()))
	}

	snapshotID, err := c.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...)
	if err != nil {
		return "", wrapError("add tracks to playlist", err)
	}
	return snapshotID, nil
}

func (c *Catalog) UnfollowPlaylist(ctx context.Context, playlistID string) error {
	if err := c.client.UnfollowPlaylist(ctx, spotify.ID(playlistID)); err != nil {
		return wrapError("unfollow playlist", err)
	}
	return nil
}

func convertPlaylist(playlist *spotify.SimplePlaylist) core.PlaylistDescriptor {
	descriptor := core.PlaylistDescriptor{
		ID:          string(playlist.ID),
		Name:        playlist.Name,
		Owner:       playlist.Owner.ID,
		OwnerName:   playlist.Owner.DisplayName,
		ExternalURL: playlist.ExternalURLs[ExternalURLKey],
	}
	if len(playlist.Images) > 0 {
		descriptor.CoverURL = playlist.Images[0].URL
	}
	return descriptor
}

func convertTrack(track *spotify.FullTrack) *core.CatalogTrack {
	return &core.CatalogTrack{
		URI:  core.TrackRef(track.URI),
		Name: track.Name,
	}
}

// wrapError maps API and token failures onto the core error kinds.
func wrapError(op string, err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return fmt.Errorf("failed to %s: %w: %w", op, core.ErrAuthInvalid, err)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("failed to %s: %w: %w", op, core.ErrAuthInvalid, err)
	}

	return fmt.Errorf("failed to %s: %w: %w", op, core.ErrTransport, err)
}
