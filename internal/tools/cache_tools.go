package tools

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dataforseo-mcp/internal/cache"
	"github.com/sells-group/dataforseo-mcp/internal/store"
)

// Cache tools are read-mostly administration surfaces. Store failures are
// reported as textual results rather than propagated, so a degraded cache
// never breaks the tool transport.
func errorResult(err error) (string, error) {
	zap.L().Warn("cache tool degraded", zap.Error(err))
	out, mErr := json.Marshal(map[string]string{"error": err.Error()})
	if mErr != nil {
		return `{"error":"internal error"}`, nil
	}
	return string(out), nil
}

// CacheSearchTool filters cached keyword records without touching upstream.
type CacheSearchTool struct {
	cache *cache.Service
}

func NewCacheSearchTool(c *cache.Service) *CacheSearchTool {
	return &CacheSearchTool{cache: c}
}

func (t *CacheSearchTool) Name() string { return "cache_search" }

func (t *CacheSearchTool) Description() string {
	return "Search cached keyword data with filters, sorting, and a 500-row cap."
}

func (t *CacheSearchTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var f cache.SearchFilter
	if len(args) > 0 {
		if err := json.Unmarshal(args, &f); err != nil {
			return "", eris.Wrap(err, "cache_search: parse arguments")
		}
	}
	records, err := t.cache.SearchKeywords(ctx, f)
	if err != nil {
		return errorResult(err)
	}
	return encodeResult(map[string]any{
		"count":   len(records),
		"results": records,
	})
}

// CacheStatsTool summarizes cache contents and freshness.
type CacheStatsTool struct {
	cache *cache.Service
}

func NewCacheStatsTool(c *cache.Service) *CacheStatsTool {
	return &CacheStatsTool{cache: c}
}

func (t *CacheStatsTool) Name() string { return "cache_stats" }

func (t *CacheStatsTool) Description() string {
	return "Cache statistics: row counts, locales, freshness range, top keywords by volume."
}

func (t *CacheStatsTool) Call(ctx context.Context, _ json.RawMessage) (string, error) {
	stats, err := t.cache.GetStats(ctx)
	if err != nil {
		return errorResult(err)
	}
	return encodeResult(stats)
}

// CacheExportTool dumps cached keyword records as JSON, CSV, or xlsx.
type CacheExportTool struct {
	cache *cache.Service
}

func NewCacheExportTool(c *cache.Service) *CacheExportTool {
	return &CacheExportTool{cache: c}
}

func (t *CacheExportTool) Name() string { return "cache_export" }

func (t *CacheExportTool) Description() string {
	return "Export cached keyword data as JSON, CSV, or xlsx, capped at 1000 rows."
}

type cacheExportArgs struct {
	cache.SearchFilter
	Format string `json:"format,omitempty"`
}

func (t *CacheExportTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var a cacheExportArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return "", eris.Wrap(err, "cache_export: parse arguments")
		}
	}
	data, err := t.cache.ExportKeywords(ctx, a.SearchFilter, a.Format)
	if err != nil {
		return errorResult(err)
	}
	return string(data), nil
}

// CacheClearTool removes rows from a single cache table.
type CacheClearTool struct {
	cache *cache.Service
}

func NewCacheClearTool(c *cache.Service) *CacheClearTool {
	return &CacheClearTool{cache: c}
}

func (t *CacheClearTool) Name() string { return "cache_clear" }

func (t *CacheClearTool) Description() string {
	return "Clear rows from one cache table, optionally filtered by locale, keyword pattern, or expiry."
}

type cacheClearArgs struct {
	Table       string `json:"table"`
	Location    string `json:"location,omitempty"`
	Language    string `json:"language,omitempty"`
	Match       string `json:"match,omitempty"`
	ExpiredOnly bool   `json:"expired_only,omitempty"`
}

func (t *CacheClearTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var a cacheClearArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", eris.Wrap(err, "cache_clear: parse arguments")
	}
	if a.Table == "" {
		return "", eris.New("cache_clear: table is required")
	}
	deleted, err := t.cache.ClearCache(ctx, a.Table, store.ClearFilter{
		Location:    a.Location,
		Language:    a.Language,
		Match:       a.Match,
		ExpiredOnly: a.ExpiredOnly,
	})
	if err != nil {
		return errorResult(err)
	}
	return encodeResult(map[string]any{
		"table":   a.Table,
		"deleted": deleted,
	})
}
