// Package store provides durable keyed storage for cached SEO records with
// conflict-resolving writes and TTL-aware reads.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dataforseo-mcp/internal/model"
)

// Table names accepted by Purge. Any other value is rejected with
// ErrInvalidTable and no rows are touched.
const (
	TableKeywords   = "keywords"
	TableRankings   = "keyword_rankings"
	TableDomains    = "domains"
	TableSearchLogs = "search_logs"
)

// ErrInvalidTable is returned by Purge for a table outside the allow-list.
var ErrInvalidTable = eris.New("store: invalid table")

// ErrInvalidFilter is returned by Purge when a filter is not supported by
// the selected table (search_logs only clears unconditionally; domains has
// no keyword column to substring-match).
var ErrInvalidFilter = eris.New("store: filter not supported for table")

// upsertChunkSize bounds a single write batch. Chunks are applied as
// independent atomic units; a failing chunk does not affect the others.
const upsertChunkSize = 50

// maxSearchLimit is the absolute row cap for filtered reads, regardless of
// the caller-requested limit.
const maxSearchLimit = 1000

// KeywordFilter selects keyword records for search, export, and top-N reads.
// All predicates are conjunctive. Only live rows are returned.
type KeywordFilter struct {
	Keywords    []string
	Match       string // substring match on keyword
	MinVolume   *int
	MaxVolume   *int
	Competition model.Competition
	Intent      model.Intent
	Location    string
	Language    string
	SortBy      string // one of SortColumns keys; defaults to volume
	SortAsc     bool
	Limit       int
}

// SortColumns maps the external sort field names to storage columns.
var SortColumns = map[string]string{
	"volume":     "search_volume",
	"cpc":        "cpc",
	"difficulty": "keyword_difficulty",
	"fetched_at": "fetched_at",
}

// ClearFilter narrows a Purge to matching rows. The zero value clears the
// whole table.
type ClearFilter struct {
	Location    string
	Language    string
	Match       string // keyword substring; not valid for domains
	ExpiredOnly bool
}

// IsZero reports whether the filter imposes no predicate.
func (f ClearFilter) IsZero() bool {
	return f.Location == "" && f.Language == "" && f.Match == "" && !f.ExpiredOnly
}

// KeywordCounts holds the keyword-table aggregate counters.
type KeywordCounts struct {
	Total         int `json:"total"`
	WithVolume    int `json:"with_volume"`
	WithoutVolume int `json:"without_volume"`
	Expired       int `json:"expired"`
}

// Store defines the persistence interface behind the cache service.
//
// Writes are last-write-wins per unique key; the backing database's
// conflict-resolving upsert is the only concurrency control.
type Store interface {
	// Keywords
	UpsertKeywords(ctx context.Context, records []model.KeywordRecord) error
	GetKeywords(ctx context.Context, keywords []string, location, language string) (map[string]model.KeywordRecord, error)
	SearchKeywords(ctx context.Context, f KeywordFilter) ([]model.KeywordRecord, error)

	// Rankings and domains
	UpsertRankings(ctx context.Context, records []model.RankingRecord) error
	UpsertDomain(ctx context.Context, record model.DomainRecord) error

	// Maintenance
	Purge(ctx context.Context, table string, f ClearFilter) (int, error)
	AppendSearchLog(ctx context.Context, entry model.SearchLogEntry) error

	// Aggregates (read-only, order-independent)
	KeywordCounts(ctx context.Context) (*KeywordCounts, error)
	DistinctLocales(ctx context.Context) (locations, languages []string, err error)
	FetchedRange(ctx context.Context) (oldest, newest *time.Time, err error)
	CountRankings(ctx context.Context) (int, error)
	CountDomains(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// validPurge checks the table allow-list and per-table filter rules shared
// by both backends.
func validPurge(table string, f ClearFilter) error {
	switch table {
	case TableKeywords, TableRankings:
		return nil
	case TableDomains:
		if f.Match != "" {
			return eris.Wrap(ErrInvalidFilter, "domains has no keyword column")
		}
		return nil
	case TableSearchLogs:
		if !f.IsZero() {
			return eris.Wrap(ErrInvalidFilter, "search_logs only supports a full clear")
		}
		return nil
	default:
		return eris.Wrapf(ErrInvalidTable, "%q", table)
	}
}

// chunk splits records into groups of at most size, preserving order.
func chunk[T any](records []T, size int) [][]T {
	if len(records) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		out = append(out, records[start:end])
	}
	return out
}

// capLimit clamps a requested limit to [1, maxSearchLimit], falling back to
// fallback when unset.
func capLimit(requested, fallback int) int {
	if requested <= 0 {
		requested = fallback
	}
	if requested > maxSearchLimit {
		return maxSearchLimit
	}
	return requested
}
