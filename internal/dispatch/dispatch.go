// Package dispatch intercepts tool invocations to minimize upstream API
// calls. Caching here is an optimization layer: it never fails a request
// that would otherwise succeed.
package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/dataforseo-mcp/internal/cache"
	"github.com/sells-group/dataforseo-mcp/internal/metrics"
	"github.com/sells-group/dataforseo-mcp/internal/model"
)

// KeywordFetch performs the upstream call for a bulk keyword tool, narrowed
// to the given keywords.
type KeywordFetch func(ctx context.Context, keywords []string) ([]model.KeywordItem, error)

// RankingFetch performs the upstream call for a ranking-producing tool.
type RankingFetch func(ctx context.Context) ([]model.RankingItem, error)

// DomainFetch performs the upstream call for a domain-overview tool.
type DomainFetch func(ctx context.Context) (*model.DomainItem, error)

// KeywordRequest describes a bulk keyword tool invocation.
type KeywordRequest struct {
	Tool     string
	Keywords []string
	Location string
	Language string
	Source   string // provenance tag written with cached records
}

// Dispatcher wraps upstream fetches with cache lookup, partial-miss
// narrowing, and best-effort persistence.
type Dispatcher struct {
	cache *cache.Service
}

// New creates a Dispatcher over the given cache service.
func New(c *cache.Service) *Dispatcher {
	return &Dispatcher{cache: c}
}

// Keywords resolves a bulk keyword request. Cached keywords are served
// without an upstream call; the upstream request is narrowed to the missing
// ones and results are merged back in the original input order.
func (d *Dispatcher) Keywords(ctx context.Context, req KeywordRequest, fetch KeywordFetch) ([]model.KeywordItem, error) {
	if len(req.Keywords) == 0 {
		metrics.UpstreamCalls.WithLabelValues(req.Tool).Inc()
		return fetch(ctx, nil)
	}

	// A failed lookup degrades to a cold cache, never a failed request.
	cached, err := d.cache.GetCachedKeywords(ctx, req.Keywords, req.Location, req.Language)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		zap.L().Warn("cache lookup failed, treating as full miss",
			zap.String("tool", req.Tool),
			zap.Error(err),
		)
		cached = nil
	}

	var missing []string
	for _, kw := range req.Keywords {
		if _, ok := cached[kw]; !ok {
			missing = append(missing, kw)
		}
	}

	// Full hit: synthesize the response from cache, no upstream call.
	if len(missing) == 0 {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		metrics.CachedKeywordsServed.Add(float64(len(req.Keywords)))

		items := make([]model.KeywordItem, 0, len(req.Keywords))
		for _, kw := range req.Keywords {
			items = append(items, cached[kw].Item())
		}
		d.cache.LogSearch(ctx, req.Tool, req, len(items), true)
		return items, nil
	}

	metrics.UpstreamCalls.WithLabelValues(req.Tool).Inc()
	fetched, err := fetch(ctx, missing)
	if err != nil {
		return nil, err
	}

	d.persistKeywords(ctx, req, fetched)

	// Full miss: pass the upstream result through unchanged.
	if len(cached) == 0 {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		d.cache.LogSearch(ctx, req.Tool, req, len(fetched), false)
		return fetched, nil
	}

	// Partial hit: freshly fetched records win, cached records fill the
	// gaps, input order is preserved.
	metrics.CacheLookups.WithLabelValues("partial").Inc()
	metrics.CachedKeywordsServed.Add(float64(len(cached)))

	byKeyword := make(map[string]model.KeywordItem, len(fetched))
	for _, item := range fetched {
		byKeyword[item.Keyword] = item
	}

	merged := make([]model.KeywordItem, 0, len(req.Keywords))
	for _, kw := range req.Keywords {
		if item, ok := byKeyword[kw]; ok {
			merged = append(merged, item)
			continue
		}
		if rec, ok := cached[kw]; ok {
			merged = append(merged, rec.Item())
		}
	}
	d.cache.LogSearch(ctx, req.Tool, req, len(merged), false)
	return merged, nil
}

// KeywordsUncached calls upstream unconditionally and persists the result
// best-effort. Used by single-shot keyword tools that take no keyword list.
func (d *Dispatcher) KeywordsUncached(ctx context.Context, req KeywordRequest, fetch KeywordFetch) ([]model.KeywordItem, error) {
	metrics.UpstreamCalls.WithLabelValues(req.Tool).Inc()
	items, err := fetch(ctx, req.Keywords)
	if err != nil {
		return nil, err
	}
	d.persistKeywords(ctx, req, items)
	d.cache.LogSearch(ctx, req.Tool, req, len(items), false)
	return items, nil
}

// RankingRequest describes a ranking-producing tool invocation.
type RankingRequest struct {
	Tool     string
	Location string
	Language string
}

// Rankings calls upstream unconditionally and persists the rankings
// best-effort.
func (d *Dispatcher) Rankings(ctx context.Context, req RankingRequest, fetch RankingFetch) ([]model.RankingItem, error) {
	metrics.UpstreamCalls.WithLabelValues(req.Tool).Inc()
	items, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := d.cache.UpsertRankings(ctx, items, req.Location, req.Language); err != nil {
		d.swallowWriteFailure(req.Tool, err)
	}
	d.cache.LogSearch(ctx, req.Tool, req, len(items), false)
	return items, nil
}

// DomainRequest describes a domain-overview tool invocation.
type DomainRequest struct {
	Tool     string
	Domain   string
	Location string
	Language string
}

// Domain calls upstream unconditionally and persists the overview
// best-effort.
func (d *Dispatcher) Domain(ctx context.Context, req DomainRequest, fetch DomainFetch) (*model.DomainItem, error) {
	metrics.UpstreamCalls.WithLabelValues(req.Tool).Inc()
	item, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if item != nil {
		if err := d.cache.UpsertDomain(ctx, *item, req.Location, req.Language); err != nil {
			d.swallowWriteFailure(req.Tool, err)
		}
	}
	count := 0
	if item != nil {
		count = 1
	}
	d.cache.LogSearch(ctx, req.Tool, req, count, false)
	return item, nil
}

// persistKeywords writes fetched items to the cache. Persistence is awaited
// but its failure is swallowed: the tool's contract is returning upstream
// data, not caching it.
func (d *Dispatcher) persistKeywords(ctx context.Context, req KeywordRequest, items []model.KeywordItem) {
	if len(items) == 0 {
		return
	}
	if _, err := d.cache.UpsertKeywordBatch(ctx, items, req.Location, req.Language, req.Source); err != nil {
		d.swallowWriteFailure(req.Tool, err)
	}
}

func (d *Dispatcher) swallowWriteFailure(tool string, err error) {
	metrics.SwallowedWriteFailures.Inc()
	zap.L().Warn("cache write failed",
		zap.String("tool", tool),
		zap.Error(err),
	)
}
