// Package flood limits how often a caller may submit tasks.
package flood

import (
	"context"
	"sync"
	"time"
)

const (
	// windowDuration is the sliding window submissions are counted in
	windowDuration = 60 * time.Second
	// cleanupInterval is how often idle callers are forgotten
	cleanupInterval = 10 * time.Minute
	// idleTimeout is how long a caller stays tracked after its last submission
	idleTimeout = 10 * time.Minute
)

// Floodgate is a per-scope, per-caller sliding window rate limit.
// A limit of zero or less disables it.
type Floodgate struct {
	limitPerMinute int
	entries        map[string]*callerEntry // Key: "scope:key"
	mutex          sync.Mutex
	now            func() time.Time
}

type callerEntry struct {
	timestamps []time.Time
	lastSeen   time.Time
}

func New(limitPerMinute int) *Floodgate {
	return &Floodgate{
		limitPerMinute: limitPerMinute,
		entries:        make(map[string]*callerEntry),
		now:            time.Now,
	}
}

// Allow records a submission by key within scope and reports whether it is
// within the limit. Rejected submissions are not counted.
func (fg *Floodgate) Allow(scope, key string) bool {
	if fg.limitPerMinute <= 0 {
		return true
	}

	entryKey := scope + ":" + key
	now := fg.now()

	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	entry, exists := fg.entries[entryKey]
	if !exists {
		entry = &callerEntry{
			timestamps: make([]time.Time, 0, fg.limitPerMinute+1),
		}
		fg.entries[entryKey] = entry
	}
	entry.lastSeen = now

	windowStart := now.Add(-windowDuration)
	valid := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}
	entry.timestamps = valid

	if len(entry.timestamps) >= fg.limitPerMinute {
		return false
	}

	entry.timestamps = append(entry.timestamps, now)
	return true
}

// Run forgets idle callers periodically until ctx is cancelled.
func (fg *Floodgate) Run(ctx context.Context) error {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fg.performCleanup()
		case <-ctx.Done():
			return nil
		}
	}
}

func (fg *Floodgate) performCleanup() {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	cutoff := fg.now().Add(-idleTimeout)
	for key, entry := range fg.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(fg.entries, key)
		}
	}
}

// GetStats returns the current limiter state for monitoring.
func (fg *Floodgate) GetStats() Stats {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	return Stats{
		ActiveCallers:  len(fg.entries),
		LimitPerMinute: fg.limitPerMinute,
		WindowSeconds:  int(windowDuration.Seconds()),
	}
}

// Stats contains floodgate statistics
type Stats struct {
	ActiveCallers  int `json:"active_callers"`
	LimitPerMinute int `json:"limit_per_minute"`
	WindowSeconds  int `json:"window_seconds"`
}
