package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Collector paginates a source into an ordered list of track refs.
type Collector struct {
	reporter *ProgressReporter
	logger   *zap.Logger
}

func NewCollector(reporter *ProgressReporter, logger *zap.Logger) *Collector {
	return &Collector{
		reporter: reporter,
		logger:   logger,
	}
}

// Collect reads every page of source, starting at offset 0, until a page comes
// back empty. Items without a playable track or without a URI are skipped.
// A remote failure fails the whole call; no partial collection is returned.
func (c *Collector) Collect(ctx context.Context, client CatalogClient, handle *TaskHandle, source Source) ([]TrackRef, error) {
	var tracks []TrackRef
	offset := 0

	for {
		items, err := c.page(ctx, client, source, offset)
		if err != nil {
			return nil, fmt.Errorf("%w: %s at offset %d: %w", ErrCollectionFailed, source, offset, err)
		}

		if len(items) == 0 {
			break
		}

		for i := range items {
			track := items[i].Track
			if track == nil || track.URI == "" {
				c.logger.Info("Track missing uri",
					zap.String("source", source.String()),
					zap.Int("position", offset+i))
				continue
			}
			tracks = append(tracks, track.URI)
		}

		offset += len(items)
		c.reporter.Progressf(handle, "progress.retrieved", len(tracks))
	}

	c.logger.Debug("Collected source tracks",
		zap.String("source", source.String()),
		zap.Int("tracks", len(tracks)),
		zap.Int("items", offset))

	return tracks, nil
}

func (c *Collector) page(ctx context.Context, client CatalogClient, source Source, offset int) ([]CatalogItem, error) {
	switch s := source.(type) {
	case LikedTracksSource:
		return client.SavedTracksPage(ctx, PageSize, offset)
	case PlaylistSource:
		return client.PlaylistItemsPage(ctx, s.ID, PageSize, offset)
	default:
		return nil, fmt.Errorf("unsupported source %T", source)
	}
}
