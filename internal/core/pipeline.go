package core

import (
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Pipeline runs the two task kinds: shuffling a playlist and exporting liked
// tracks. Every step inside a task is sequential and no step is retried.
type Pipeline struct {
	factory   ClientFactory
	users     UserStore
	collector *Collector
	writer    *PlaylistWriter
	tracker   *UsageTracker
	reporter  *ProgressReporter
	logger    *zap.Logger

	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
}

func NewPipeline(
	factory ClientFactory,
	users UserStore,
	counters CounterStore,
	reporter *ProgressReporter,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		factory:   factory,
		users:     users,
		collector: NewCollector(reporter, logger.Named("collector")),
		writer:    NewPlaylistWriter(reporter, logger.Named("writer")),
		tracker:   NewUsageTracker(counters, logger.Named("tracker")),
		reporter:  reporter,
		logger:    logger,
		now:       time.Now,
		// Fisher-Yates over the whole collection; ordering is not security sensitive
		shuffle: rand.Shuffle, //nolint:gosec
	}
}

