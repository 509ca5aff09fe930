// Package cache is the typed façade over the record store. It owns the TTL
// policy and the translation between compact wire items and storage records.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dataforseo-mcp/internal/metrics"
	"github.com/sells-group/dataforseo-mcp/internal/model"
	"github.com/sells-group/dataforseo-mcp/internal/store"
)

// TTLPolicy fixes the expiry duration per cached entity class.
type TTLPolicy struct {
	KeywordData    time.Duration `yaml:"keyword_data" mapstructure:"keyword_data"`
	Rankings       time.Duration `yaml:"rankings" mapstructure:"rankings"`
	DomainOverview time.Duration `yaml:"domain_overview" mapstructure:"domain_overview"`
}

// DefaultTTLPolicy returns the standard expiry windows.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		KeywordData:    30 * 24 * time.Hour,
		Rankings:       7 * 24 * time.Hour,
		DomainOverview: 7 * 24 * time.Hour,
	}
}

// Service provides typed cache operations over a record store.
type Service struct {
	store store.Store
	ttl   TTLPolicy
	now   func() time.Time
}

// New creates a cache service. A zero TTL in the policy falls back to the
// default for that class.
func New(st store.Store, ttl TTLPolicy) *Service {
	defaults := DefaultTTLPolicy()
	if ttl.KeywordData <= 0 {
		ttl.KeywordData = defaults.KeywordData
	}
	if ttl.Rankings <= 0 {
		ttl.Rankings = defaults.Rankings
	}
	if ttl.DomainOverview <= 0 {
		ttl.DomainOverview = defaults.DomainOverview
	}
	return &Service{store: st, ttl: ttl, now: time.Now}
}

// GetCachedKeywords returns the live cached records for the requested
// keywords, keyed by keyword. Absent or expired keywords are simply missing
// from the map.
func (s *Service) GetCachedKeywords(ctx context.Context, keywords []string, location, language string) (map[string]model.KeywordRecord, error) {
	return s.store.GetKeywords(ctx, keywords, location, language)
}

// UpsertKeywordBatch stores the given items under (location, language).
// Items lacking a resolvable keyword are silently dropped; the drop is
// counted, not logged per item. Returns the number of records written.
func (s *Service) UpsertKeywordBatch(ctx context.Context, items []model.KeywordItem, location, language, source string) (int, error) {
	fetchedAt := s.now().UTC()
	records := make([]model.KeywordRecord, 0, len(items))
	for _, item := range items {
		item.Keyword = model.NormalizeKeyword(item.Keyword)
		if item.Keyword == "" {
			metrics.DroppedItems.Inc()
			continue
		}
		records = append(records, item.Record(location, language, source, fetchedAt, s.ttl.KeywordData))
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := s.store.UpsertKeywords(ctx, records); err != nil {
		return 0, eris.Wrap(err, "cache: upsert keyword batch")
	}
	return len(records), nil
}

// UpsertRankings stores ranking items under (location, language), dropping
// items that lack a keyword or domain.
func (s *Service) UpsertRankings(ctx context.Context, items []model.RankingItem, location, language string) (int, error) {
	fetchedAt := s.now().UTC()
	records := make([]model.RankingRecord, 0, len(items))
	for _, item := range items {
		if item.Keyword == "" || item.Domain == "" {
			metrics.DroppedItems.Inc()
			continue
		}
		records = append(records, item.Record(location, language, fetchedAt, s.ttl.Rankings))
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := s.store.UpsertRankings(ctx, records); err != nil {
		return 0, eris.Wrap(err, "cache: upsert rankings")
	}
	return len(records), nil
}

// UpsertDomain stores a single domain overview under (location, language).
func (s *Service) UpsertDomain(ctx context.Context, item model.DomainItem, location, language string) error {
	if item.Domain == "" {
		return eris.New("cache: domain item missing domain")
	}
	record := item.Record(location, language, s.now().UTC(), s.ttl.DomainOverview)
	return eris.Wrap(s.store.UpsertDomain(ctx, record), "cache: upsert domain")
}

// ClearCache deletes matching rows from one of the four known tables and
// returns the deleted count. Unknown tables and unsupported filters abort
// with an error and touch nothing.
func (s *Service) ClearCache(ctx context.Context, table string, f store.ClearFilter) (int, error) {
	return s.store.Purge(ctx, table, f)
}

// LogSearch appends an audit row for a tool invocation. Failures are
// swallowed and counted; audit logging never fails a request.
func (s *Service) LogSearch(ctx context.Context, tool string, params any, resultCount int, cacheHit bool) {
	encoded, err := json.Marshal(params)
	if err != nil {
		encoded = []byte("{}")
	}
	entry := model.SearchLogEntry{
		ToolName:    tool,
		QueryParams: string(encoded),
		ResultCount: resultCount,
		CacheHit:    cacheHit,
	}
	if err := s.store.AppendSearchLog(ctx, entry); err != nil {
		metrics.SwallowedWriteFailures.Inc()
		zap.L().Warn("search log append failed",
			zap.String("tool", tool),
			zap.Error(err),
		)
	}
}
