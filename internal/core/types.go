package core

import (
	"context"
	"strings"
	"time"
	"unicode"
)

const (
	// ShuffledPlaylistPrefix is prepended to the source name of every shuffled copy
	ShuffledPlaylistPrefix = "[Shuffled] "
	// LikedTracksID is the wire identifier callers use for the liked-tracks library
	LikedTracksID = "likedTracks"
	// LikedTracksName is the display name of the synthetic liked-tracks source
	LikedTracksName = "Liked Tracks"
	// LikedTracksCoverURL is the cover image shown for the liked-tracks source
	LikedTracksCoverURL = "https://misc.scdn.co/liked-songs/liked-songs-300.png"

	// PageSize is the number of items requested per catalog page
	PageSize = 50
	// BatchSize is the maximum number of tracks written per add call
	BatchSize = 100

	// ShuffledPlaylistDescription is the description set on every shuffled copy
	ShuffledPlaylistDescription = "Shuffled by True Shuffle"
	// LikedPlaylistDescriptionFormat is formatted with the export date (dd/mm/yyyy)
	LikedPlaylistDescriptionFormat = "True Shuffle | My Liked Tracks from %s"
	// DefaultLikedPlaylistName is used when an export request names no playlist
	DefaultLikedPlaylistName = "My Liked Tracks"

	trackRefPrefix = "spotify:track:"
)

// TrackRef is a catalog track URI of the form spotify:track:<id>.
type TrackRef string

// Valid reports whether the ref carries the track prefix followed by a non-empty id without whitespace.
func (r TrackRef) Valid() bool {
	s := string(r)
	if !strings.HasPrefix(s, trackRefPrefix) {
		return false
	}
	id := s[len(trackRefPrefix):]
	if id == "" {
		return false
	}
	return strings.IndexFunc(id, unicode.IsSpace) < 0
}

// ID returns the bare track id, or an empty string for a malformed ref.
func (r TrackRef) ID() string {
	if !r.Valid() {
		return ""
	}
	return strings.TrimPrefix(string(r), trackRefPrefix)
}

// Source selects where the collector reads tracks from.
// It is either LikedTracksSource or PlaylistSource.
type Source interface {
	isSource()
	String() string
}

// LikedTracksSource is the caller's saved-tracks library.
type LikedTracksSource struct{}

func (LikedTracksSource) isSource() {}

func (LikedTracksSource) String() string { return LikedTracksID }

// PlaylistSource is a specific playlist by catalog id.
type PlaylistSource struct {
	ID string
}

func (PlaylistSource) isSource() {}

func (s PlaylistSource) String() string { return s.ID }

// ParseSource maps a wire identifier to a Source. The liked-tracks sentinel is
// only interpreted here, at the edge.
func ParseSource(id string) Source {
	if id == LikedTracksID {
		return LikedTracksSource{}
	}
	return PlaylistSource{ID: id}
}

// Account is the remote identity the authorized client acts for.
type Account struct {
	ID          string
	DisplayName string
}

// PlaylistDescriptor describes a source or destination playlist.
type PlaylistDescriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Owner       string `json:"owner"`
	OwnerName   string `json:"owner_name,omitempty"`
	CoverURL    string `json:"cover_url,omitempty"`
	ExternalURL string `json:"external_url,omitempty"`
}

// CatalogTrack is the playable track inside a catalog page item.
type CatalogTrack struct {
	URI  TrackRef
	Name string
}

// CatalogItem is one entry of a source page. Track is nil for entries that have
// no playable track (removed tracks, podcast episodes).
type CatalogItem struct {
	Track *CatalogTrack
}

// PlaylistResult is the payload of a successfully materialized playlist.
type PlaylistResult struct {
	PlaylistID   string    `json:"playlist_id"`
	PlaylistURI  string    `json:"playlist_uri"`
	TrackCount   int       `json:"num_of_tracks"`
	CreationTime time.Time `json:"creation_time"`
}

// AuthContext is the opaque credential bundle a task uses to build its client.
// The pipeline never persists or mutates it.
type AuthContext struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Scope        string    `json:"scope,omitempty"`
}

// User is a registered user record in the user store.
type User struct {
	ID              string
	DisplayName     string
	TrackersEnabled bool
	CreatedAt       time.Time
}

// UsageDelta is an additive increment applied to a counter record.
type UsageDelta struct {
	TrackShuffles    int64
	PlaylistShuffles int64
	DurationSeconds  int64
	LikedExports     int64
	ExportedTracks   int64
}

// UsageCounters is the persisted value of a per-user or global counter record.
type UsageCounters struct {
	TrackShuffles    int64     `json:"track_shuffles"`
	PlaylistShuffles int64     `json:"playlist_shuffles"`
	DurationSeconds  int64     `json:"duration_seconds"`
	LikedExports     int64     `json:"liked_exports"`
	ExportedTracks   int64     `json:"exported_tracks"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TaskKind identifies which pipeline a task runs.
type TaskKind string

const (
	// TaskKindShuffle shuffles an existing playlist into a new one
	TaskKindShuffle TaskKind = "shuffle"
	// TaskKindExport materializes liked tracks as a playlist
	TaskKindExport TaskKind = "export"
)

// TaskState is the lifecycle state of a submitted task.
type TaskState string

const (
	StatePending  TaskState = "PENDING"
	StateProgress TaskState = "PROGRESS"
	StateSuccess  TaskState = "SUCCESS"
	StateFailure  TaskState = "FAILURE"
)

// Terminal reports whether no further transitions are allowed from s.
func (s TaskState) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// TaskHandle identifies a live task to the components publishing its progress.
type TaskHandle struct {
	ID   string
	Kind TaskKind
}

// TaskParams carries the kind-specific submission parameters.
type TaskParams struct {
	PlaylistID   string `json:"playlist_id,omitempty"`
	PlaylistName string `json:"playlist_name,omitempty"`
}

// TaskEvent is a state change emitted by a running task.
type TaskEvent struct {
	TaskID  string
	State   TaskState
	Message string
	Result  *PlaylistResult
	Error   string
}

// TaskStatus is the persisted view of a task that polling returns.
type TaskStatus struct {
	ID          string
	Kind        TaskKind
	State       TaskState
	Message     string
	Result      *PlaylistResult
	Error       string
	SubmittedAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// CatalogClient is the authorized remote catalog capability.
type CatalogClient interface {
	CurrentUser(ctx context.Context) (*Account, error)
	ListUserPlaylists(ctx context.Context) ([]PlaylistDescriptor, error)
	SavedTracksPage(ctx context.Context, limit, offset int) ([]CatalogItem, error)
	PlaylistItemsPage(ctx context.Context, playlistID string, limit, offset int) ([]CatalogItem, error)
	CreatePlaylist(ctx context.Context, ownerID, name string, public bool, description string) (*PlaylistDescriptor, error)
	// AddTracksToPlaylist returns the snapshot id acknowledging the write; an
	// empty snapshot id means the write was not applied.
	AddTracksToPlaylist(ctx context.Context, playlistID string, batch []TrackRef) (string, error)
	UnfollowPlaylist(ctx context.Context, playlistID string) error
}

// ClientFactory turns an AuthContext into an authorized CatalogClient.
type ClientFactory interface {
	// Validate rejects credentials that cannot possibly authorize a request.
	Validate(auth AuthContext) error
	NewClient(ctx context.Context, auth AuthContext) (CatalogClient, error)
}

// UserStore looks up registered users.
type UserStore interface {
	// FindUser returns ErrUserNotFound when no user has the given id.
	FindUser(ctx context.Context, id string) (*User, error)
}

// CounterStore persists usage counters. Every increment is a single atomic
// operation against the store.
type CounterStore interface {
	IncrementUserCounters(ctx context.Context, userID string, delta UsageDelta) error
	IncrementGlobalCounters(ctx context.Context, delta UsageDelta) error
	IncrementPlaylistShuffles(ctx context.Context, userID, playlistID, playlistName string) error
	UserCounters(ctx context.Context, userID string) (*UsageCounters, error)
	GlobalCounters(ctx context.Context) (*UsageCounters, error)
}

// EventSink receives task events; it is the only path to persisted task state.
type EventSink interface {
	Emit(evt TaskEvent)
}
