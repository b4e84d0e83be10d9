package core

import (
	"context"
	"errors"
	"slices"
	"testing"

	"go.uber.org/zap"
)

func newTestLibrary(f *pipelineFixture) *Library {
	return NewLibrary(&mockFactory{client: f.catalog}, f.users, f.counters, zap.NewNop())
}

func TestLibrary_ListPlaylists(t *testing.T) {
	f := newPipelineFixture(t)
	f.catalog.playlists = []PlaylistDescriptor{
		{ID: "p1", Name: "Road Trip"},
		{ID: "p2", Name: "[Shuffled] Road Trip"},
		{ID: "p3", Name: "Focus"},
	}

	listing, err := newTestLibrary(f).ListPlaylists(context.Background(), testAuth, false)
	if err != nil {
		t.Fatalf("ListPlaylists() error = %v", err)
	}

	ids := make([]string, 0, len(listing.Playlists))
	for _, p := range listing.Playlists {
		ids = append(ids, p.ID)
	}
	expected := []string{LikedTracksID, "p1", "p3"}
	if !slices.Equal(ids, expected) {
		t.Errorf("Playlist ids = %v, expected %v", ids, expected)
	}

	liked := listing.Playlists[0]
	if liked.Name != LikedTracksName || liked.Owner != "user1" || liked.CoverURL != LikedTracksCoverURL {
		t.Errorf("Unexpected liked-tracks entry %+v", liked)
	}
	if listing.Counters != nil {
		t.Error("Counters should only be attached on request")
	}
}

func TestLibrary_ListPlaylistsWithStats(t *testing.T) {
	f := newPipelineFixture(t)
	f.counters.users["user1"] = UsageCounters{TrackShuffles: 30, PlaylistShuffles: 2}

	listing, err := newTestLibrary(f).ListPlaylists(context.Background(), testAuth, true)
	if err != nil {
		t.Fatalf("ListPlaylists() error = %v", err)
	}
	if listing.Counters == nil || listing.Counters.TrackShuffles != 30 {
		t.Errorf("Expected user counters, got %+v", listing.Counters)
	}
}

func TestLibrary_ListPlaylistsStatsRespectTrackers(t *testing.T) {
	f := newPipelineFixture(t)
	f.users.users["user1"].TrackersEnabled = false
	f.counters.users["user1"] = UsageCounters{TrackShuffles: 30}

	listing, err := newTestLibrary(f).ListPlaylists(context.Background(), testAuth, true)
	if err != nil {
		t.Fatalf("ListPlaylists() error = %v", err)
	}
	if listing.Counters != nil {
		t.Error("Counters must not be exposed when trackers are disabled")
	}

	// Unknown users still get their playlists
	f.catalog.account.ID = "stranger"
	listing, err = newTestLibrary(f).ListPlaylists(context.Background(), testAuth, true)
	if err != nil {
		t.Fatalf("ListPlaylists() for unknown user error = %v", err)
	}
	if listing.Counters != nil || len(listing.Playlists) != 1 {
		t.Errorf("Unexpected listing for unknown user %+v", listing)
	}
}

func TestLibrary_DeleteShuffledPlaylists(t *testing.T) {
	f := newPipelineFixture(t)
	f.catalog.playlists = []PlaylistDescriptor{
		{ID: "p1", Name: "Road Trip"},
		{ID: "p2", Name: "[Shuffled] Road Trip"},
		{ID: "p3", Name: "[Shuffled] Focus"},
		{ID: "p4", Name: "Shuffled Focus"},
	}

	result, err := newTestLibrary(f).DeleteShuffledPlaylists(context.Background(), testAuth)
	if err != nil {
		t.Fatalf("DeleteShuffledPlaylists() error = %v", err)
	}

	if result.Count != 2 || !slices.Equal(result.PlaylistIDs, []string{"p2", "p3"}) {
		t.Errorf("Unexpected result %+v", result)
	}
	if len(f.catalog.playlists) != 2 {
		t.Errorf("Expected 2 playlists left, got %d", len(f.catalog.playlists))
	}
}

func TestLibrary_DeleteWithoutShuffledPlaylists(t *testing.T) {
	f := newPipelineFixture(t)

	result, err := newTestLibrary(f).DeleteShuffledPlaylists(context.Background(), testAuth)
	if err != nil {
		t.Fatalf("DeleteShuffledPlaylists() error = %v", err)
	}
	if result.Count != 0 || result.PlaylistIDs == nil {
		t.Errorf("Expected an empty, non-nil result, got %+v", result)
	}
}

func TestLibrary_InvalidAuth(t *testing.T) {
	f := newPipelineFixture(t)
	library := newTestLibrary(f)

	if _, err := library.ListPlaylists(context.Background(), AuthContext{}, false); !errors.Is(err, ErrAuthInvalid) {
		t.Errorf("ListPlaylists() error = %v, expected ErrAuthInvalid", err)
	}
	if _, err := library.DeleteShuffledPlaylists(context.Background(), AuthContext{}); !errors.Is(err, ErrAuthInvalid) {
		t.Errorf("DeleteShuffledPlaylists() error = %v, expected ErrAuthInvalid", err)
	}
}

func TestLibrary_OverallStatistics(t *testing.T) {
	f := newPipelineFixture(t)
	f.counters.global = UsageCounters{TrackShuffles: 1000, PlaylistShuffles: 12}

	counters, err := newTestLibrary(f).OverallStatistics(context.Background())
	if err != nil {
		t.Fatalf("OverallStatistics() error = %v", err)
	}
	if counters.TrackShuffles != 1000 || counters.PlaylistShuffles != 12 {
		t.Errorf("Unexpected counters %+v", counters)
	}
}
