package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"

	"trueshuffle/internal/i18n"
)

// Mock implementations for testing

var errUpstream = errors.New("upstream unavailable")

type mockCatalog struct {
	mu sync.Mutex

	account   Account
	liked     []CatalogItem
	items     map[string][]CatalogItem
	pageErr   error
	pageErrAt int // offset at which pageErr is returned, -1 for never

	playlists   []PlaylistDescriptor
	createErr   error
	nextID      int
	addCalls    [][]TrackRef
	added       map[string][]TrackRef
	failAddCall int // 1-based add call that returns no snapshot, 0 for never
	unfollowed  []string
	pageCalls   int
}

func newMockCatalog(userID string) *mockCatalog {
	return &mockCatalog{
		account:   Account{ID: userID, DisplayName: "Test User"},
		items:     make(map[string][]CatalogItem),
		added:     make(map[string][]TrackRef),
		pageErrAt: -1,
	}
}

func (m *mockCatalog) CurrentUser(_ context.Context) (*Account, error) {
	account := m.account
	return &account, nil
}

func (m *mockCatalog) ListUserPlaylists(_ context.Context) ([]PlaylistDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PlaylistDescriptor(nil), m.playlists...), nil
}

func (m *mockCatalog) SavedTracksPage(_ context.Context, limit, offset int) ([]CatalogItem, error) {
	return m.page(m.liked, limit, offset)
}

func (m *mockCatalog) PlaylistItemsPage(_ context.Context, playlistID string, limit, offset int) ([]CatalogItem, error) {
	return m.page(m.items[playlistID], limit, offset)
}

func (m *mockCatalog) page(all []CatalogItem, limit, offset int) ([]CatalogItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pageCalls++
	if m.pageErr != nil && m.pageErrAt == offset {
		return nil, m.pageErr
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (m *mockCatalog) CreatePlaylist(_ context.Context, ownerID, name string, _ bool, _ string) (*PlaylistDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return nil, m.createErr
	}
	m.nextID++
	playlist := PlaylistDescriptor{
		ID:          fmt.Sprintf("created%d", m.nextID),
		Name:        name,
		Owner:       ownerID,
		ExternalURL: fmt.Sprintf("https://open.spotify.com/playlist/created%d", m.nextID),
	}
	m.playlists = append(m.playlists, playlist)
	return &playlist, nil
}

func (m *mockCatalog) AddTracksToPlaylist(_ context.Context, playlistID string, batch []TrackRef) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addCalls = append(m.addCalls, append([]TrackRef(nil), batch...))
	if m.failAddCall == len(m.addCalls) {
		return "", nil
	}
	m.added[playlistID] = append(m.added[playlistID], batch...)
	return fmt.Sprintf("snapshot%d", len(m.addCalls)), nil
}

func (m *mockCatalog) UnfollowPlaylist(_ context.Context, playlistID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.unfollowed = append(m.unfollowed, playlistID)
	kept := m.playlists[:0]
	for _, p := range m.playlists {
		if p.ID != playlistID {
			kept = append(kept, p)
		}
	}
	m.playlists = kept
	return nil
}

func (m *mockCatalog) playlistsNamed(name string) []PlaylistDescriptor {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found []PlaylistDescriptor
	for _, p := range m.playlists {
		if p.Name == name {
			found = append(found, p)
		}
	}
	return found
}

type mockFactory struct {
	client CatalogClient
	err    error
}

func (m *mockFactory) Validate(auth AuthContext) error {
	if auth.AccessToken == "" {
		return ErrAuthInvalid
	}
	return nil
}

func (m *mockFactory) NewClient(_ context.Context, auth AuthContext) (CatalogClient, error) {
	if m.err != nil {
		return nil, m.err
	}
	if err := m.Validate(auth); err != nil {
		return nil, err
	}
	return m.client, nil
}

type mockUserStore struct {
	users map[string]*User
}

func (m *mockUserStore) FindUser(_ context.Context, id string) (*User, error) {
	if user, exists := m.users[id]; exists {
		return user, nil
	}
	return nil, ErrUserNotFound
}

type mockCounterStore struct {
	mu        sync.Mutex
	users     map[string]UsageCounters
	global    UsageCounters
	playlists map[string]int
	err       error
	calls     int
}

func newMockCounterStore() *mockCounterStore {
	return &mockCounterStore{
		users:     make(map[string]UsageCounters),
		playlists: make(map[string]int),
	}
}

func addDelta(c UsageCounters, d UsageDelta) UsageCounters {
	c.TrackShuffles += d.TrackShuffles
	c.PlaylistShuffles += d.PlaylistShuffles
	c.DurationSeconds += d.DurationSeconds
	c.LikedExports += d.LikedExports
	c.ExportedTracks += d.ExportedTracks
	return c
}

func (m *mockCounterStore) IncrementUserCounters(_ context.Context, userID string, delta UsageDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.users[userID] = addDelta(m.users[userID], delta)
	return nil
}

func (m *mockCounterStore) IncrementGlobalCounters(_ context.Context, delta UsageDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.global = addDelta(m.global, delta)
	return nil
}

func (m *mockCounterStore) IncrementPlaylistShuffles(_ context.Context, userID, playlistID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.playlists[userID+"/"+playlistID]++
	return nil
}

func (m *mockCounterStore) UserCounters(_ context.Context, userID string) (*UsageCounters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counters := m.users[userID]
	return &counters, nil
}

func (m *mockCounterStore) GlobalCounters(_ context.Context) (*UsageCounters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counters := m.global
	return &counters, nil
}

func (m *mockCounterStore) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type recordingSink struct {
	mu     sync.Mutex
	events []TaskEvent
}

func (r *recordingSink) Emit(evt TaskEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingSink) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	messages := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		messages = append(messages, evt.Message)
	}
	return messages
}

func newTestReporter(sink EventSink) *ProgressReporter {
	return NewProgressReporter(sink, i18n.NewLocalizer(i18n.DefaultLanguage), zap.NewNop())
}

// trackItems builds n catalog items with distinct, valid track refs.
func trackItems(prefix string, n int) []CatalogItem {
	items := make([]CatalogItem, n)
	for i := range items {
		items[i] = CatalogItem{Track: &CatalogTrack{URI: TrackRef(fmt.Sprintf("spotify:track:%s%d", prefix, i))}}
	}
	return items
}

func trackRefs(prefix string, n int) []TrackRef {
	refs := make([]TrackRef, n)
	for i := range refs {
		refs[i] = TrackRef(fmt.Sprintf("spotify:track:%s%d", prefix, i))
	}
	return refs
}

type pipelineFixture struct {
	catalog  *mockCatalog
	users    *mockUserStore
	counters *mockCounterStore
	sink     *recordingSink
	pipeline *Pipeline
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	catalog := newMockCatalog("user1")
	users := &mockUserStore{users: map[string]*User{
		"user1": {ID: "user1", DisplayName: "Test User", TrackersEnabled: true},
	}}
	counters := newMockCounterStore()
	sink := &recordingSink{}

	pipeline := NewPipeline(&mockFactory{client: catalog}, users, counters, newTestReporter(sink), zap.NewNop())

	return &pipelineFixture{
		catalog:  catalog,
		users:    users,
		counters: counters,
		sink:     sink,
		pipeline: pipeline,
	}
}

var testAuth = AuthContext{AccessToken: "access", RefreshToken: "refresh"}
