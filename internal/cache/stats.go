package cache

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dataforseo-mcp/internal/model"
	"github.com/sells-group/dataforseo-mcp/internal/store"
)

// Stats is a point-in-time aggregate view of the cache.
type Stats struct {
	Keywords    store.KeywordCounts `json:"keywords"`
	Rankings    int                 `json:"rankings"`
	Domains     int                 `json:"domains"`
	Locations   []string            `json:"locations"`
	Languages   []string            `json:"languages"`
	OldestFetch *time.Time          `json:"oldest_fetch,omitempty"`
	NewestFetch *time.Time          `json:"newest_fetch,omitempty"`
	TopByVolume []model.KeywordItem `json:"top_by_volume"`
	CollectedAt time.Time           `json:"collected_at"`
}

// GetStats collects the cache aggregates. The sub-aggregates are read-only
// and order-independent, so they run concurrently.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{CollectedAt: s.now().UTC()}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := s.store.KeywordCounts(ctx)
		if err != nil {
			return err
		}
		stats.Keywords = *counts
		return nil
	})
	g.Go(func() error {
		locations, languages, err := s.store.DistinctLocales(ctx)
		if err != nil {
			return err
		}
		stats.Locations = locations
		stats.Languages = languages
		return nil
	})
	g.Go(func() error {
		oldest, newest, err := s.store.FetchedRange(ctx)
		if err != nil {
			return err
		}
		stats.OldestFetch = oldest
		stats.NewestFetch = newest
		return nil
	})
	g.Go(func() error {
		n, err := s.store.CountRankings(ctx)
		if err != nil {
			return err
		}
		stats.Rankings = n
		return nil
	})
	g.Go(func() error {
		n, err := s.store.CountDomains(ctx)
		if err != nil {
			return err
		}
		stats.Domains = n
		return nil
	})
	g.Go(func() error {
		top, err := s.store.SearchKeywords(ctx, store.KeywordFilter{SortBy: "volume", Limit: 10})
		if err != nil {
			return err
		}
		items := make([]model.KeywordItem, 0, len(top))
		for _, r := range top {
			items = append(items, r.Item())
		}
		stats.TopByVolume = items
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "cache: collect stats")
	}
	return stats, nil
}
