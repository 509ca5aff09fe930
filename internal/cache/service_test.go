package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dataforseo-mcp/internal/model"
	"github.com/sells-group/dataforseo-mcp/internal/store"
)

// fakeStore records writes and serves canned reads for service tests.
type fakeStore struct {
	keywords    map[string]model.KeywordRecord
	upserted    []model.KeywordRecord
	rankings    []model.RankingRecord
	domains     []model.DomainRecord
	logs        []model.SearchLogEntry
	searched    []store.KeywordFilter
	purged      []string
	purgeCount  int
	upsertErr   error
	lookupErr   error
	logErr      error
	counts      store.KeywordCounts
	locations   []string
	languages   []string
	oldest      *time.Time
	newest      *time.Time
	topRecords  []model.KeywordRecord
	numRankings int
	numDomains  int
}

func (f *fakeStore) UpsertKeywords(ctx context.Context, records []model.KeywordRecord) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, records...)
	return nil
}

func (f *fakeStore) GetKeywords(ctx context.Context, keywords []string, location, language string) (map[string]model.KeywordRecord, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	out := make(map[string]model.KeywordRecord)
	for _, kw := range keywords {
		if r, ok := f.keywords[kw]; ok {
			out[kw] = r
		}
	}
	return out, nil
}

func (f *fakeStore) SearchKeywords(ctx context.Context, filter store.KeywordFilter) ([]model.KeywordRecord, error) {
	f.searched = append(f.searched, filter)
	return f.topRecords, nil
}

func (f *fakeStore) UpsertRankings(ctx context.Context, records []model.RankingRecord) error {
	f.rankings = append(f.rankings, records...)
	return nil
}

func (f *fakeStore) UpsertDomain(ctx context.Context, record model.DomainRecord) error {
	f.domains = append(f.domains, record)
	return nil
}

func (f *fakeStore) Purge(ctx context.Context, table string, filter store.ClearFilter) (int, error) {
	f.purged = append(f.purged, table)
	return f.purgeCount, nil
}

func (f *fakeStore) AppendSearchLog(ctx context.Context, entry model.SearchLogEntry) error {
	if f.logErr != nil {
		return f.logErr
	}
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeStore) KeywordCounts(ctx context.Context) (*store.KeywordCounts, error) {
	return &f.counts, nil
}

func (f *fakeStore) DistinctLocales(ctx context.Context) ([]string, []string, error) {
	return f.locations, f.languages, nil
}

func (f *fakeStore) FetchedRange(ctx context.Context) (*time.Time, *time.Time, error) {
	return f.oldest, f.newest, nil
}

func (f *fakeStore) CountRankings(ctx context.Context) (int, error) { return f.numRankings, nil }
func (f *fakeStore) CountDomains(ctx context.Context) (int, error)  { return f.numDomains, nil }
func (f *fakeStore) Migrate(ctx context.Context) error              { return nil }
func (f *fakeStore) Close() error                                   { return nil }

func ptr[T any](v T) *T { return &v }

func newTestService(fs *fakeStore) *Service {
	svc := New(fs, TTLPolicy{})
	svc.now = func() time.Time {
		return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestNewAppliesDefaultTTLs(t *testing.T) {
	svc := New(&fakeStore{}, TTLPolicy{})
	assert.Equal(t, 30*24*time.Hour, svc.ttl.KeywordData)
	assert.Equal(t, 7*24*time.Hour, svc.ttl.Rankings)
	assert.Equal(t, 7*24*time.Hour, svc.ttl.DomainOverview)

	svc = New(&fakeStore{}, TTLPolicy{KeywordData: time.Hour})
	assert.Equal(t, time.Hour, svc.ttl.KeywordData)
	assert.Equal(t, 7*24*time.Hour, svc.ttl.Rankings)
}

func TestUpsertKeywordBatchStampsTTL(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs)

	n, err := svc.UpsertKeywordBatch(context.Background(), []model.KeywordItem{
		{Keyword: "seo", Volume: 100},
	}, "United States", "en", "google_ads")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, fs.upserted, 1)
	rec := fs.upserted[0]
	assert.Equal(t, "seo", rec.Keyword)
	assert.Equal(t, "United States", rec.Location)
	assert.Equal(t, "google_ads", rec.Source)
	assert.Equal(t, svc.now(), rec.FetchedAt)
	assert.Equal(t, svc.now().Add(30*24*time.Hour), rec.ExpiresAt)
}

func TestUpsertKeywordBatchDropsEmptyKeywords(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs)

	n, err := svc.UpsertKeywordBatch(context.Background(), []model.KeywordItem{
		{Keyword: "seo", Volume: 100},
		{Keyword: "", Volume: 50}, // silently dropped
		{Keyword: "audit", Volume: 20},
	}, "US", "en", "google_ads")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, fs.upserted, 2)
}

func TestUpsertKeywordBatchAllDropped(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs)

	n, err := svc.UpsertKeywordBatch(context.Background(), []model.KeywordItem{
		{Keyword: ""},
	}, "US", "en", "google_ads")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, fs.upserted)
}

func TestUpsertKeywordBatchWrapsStoreError(t *testing.T) {
	fs := &fakeStore{upsertErr: eris.New("disk full")}
	svc := newTestService(fs)

	_, err := svc.UpsertKeywordBatch(context.Background(), []model.KeywordItem{
		{Keyword: "seo"},
	}, "US", "en", "google_ads")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert keyword batch")
}

func TestUpsertRankingsDropsIncompleteItems(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs)

	n, err := svc.UpsertRankings(context.Background(), []model.RankingItem{
		{Keyword: "seo", Domain: "example.com", Position: ptr(1)},
		{Keyword: "", Domain: "example.com"},
		{Keyword: "seo", Domain: ""},
	}, "US", "en")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, fs.rankings, 1)
	rec := fs.rankings[0]
	assert.Equal(t, model.SerpOrganic, rec.SerpType)
	assert.Equal(t, svc.now().Add(7*24*time.Hour), rec.ExpiresAt)
}

func TestUpsertDomainRequiresDomain(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs)

	err := svc.UpsertDomain(context.Background(), model.DomainItem{}, "US", "en")
	require.Error(t, err)
	assert.Empty(t, fs.domains)

	err = svc.UpsertDomain(context.Background(), model.DomainItem{Domain: "example.com"}, "US", "en")
	require.NoError(t, err)
	require.Len(t, fs.domains, 1)
	assert.Equal(t, svc.now().Add(7*24*time.Hour), fs.domains[0].ExpiresAt)
}

func TestGetCachedKeywords(t *testing.T) {
	now := time.Now().UTC()
	fs := &fakeStore{keywords: map[string]model.KeywordRecord{
		"seo": {Keyword: "seo", SearchVolume: 100, ExpiresAt: now.Add(time.Hour)},
	}}
	svc := newTestService(fs)

	got, err := svc.GetCachedKeywords(context.Background(), []string{"seo", "absent"}, "US", "en")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 100, got["seo"].SearchVolume)
}

func TestClearCacheDelegates(t *testing.T) {
	fs := &fakeStore{purgeCount: 4}
	svc := newTestService(fs)

	n, err := svc.ClearCache(context.Background(), store.TableKeywords, store.ClearFilter{ExpiredOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []string{store.TableKeywords}, fs.purged)
}

func TestLogSearchMarshalsParams(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs)

	svc.LogSearch(context.Background(), "search_volume", map[string]any{"keywords": []string{"seo"}}, 3, true)

	require.Len(t, fs.logs, 1)
	entry := fs.logs[0]
	assert.Equal(t, "search_volume", entry.ToolName)
	assert.JSONEq(t, `{"keywords":["seo"]}`, entry.QueryParams)
	assert.Equal(t, 3, entry.ResultCount)
	assert.True(t, entry.CacheHit)
}

func TestLogSearchSwallowsWriteFailure(t *testing.T) {
	fs := &fakeStore{logErr: eris.New("table locked")}
	svc := newTestService(fs)

	// Must not panic or surface the error.
	svc.LogSearch(context.Background(), "search_volume", nil, 0, false)
	assert.Empty(t, fs.logs)
}

func TestGetStats(t *testing.T) {
	oldest := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newest := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	fs := &fakeStore{
		counts:      store.KeywordCounts{Total: 10, WithVolume: 8, WithoutVolume: 2, Expired: 1},
		locations:   []string{"United States"},
		languages:   []string{"en"},
		oldest:      &oldest,
		newest:      &newest,
		numRankings: 5,
		numDomains:  2,
		topRecords: []model.KeywordRecord{
			{Keyword: "seo", SearchVolume: 1000},
		},
	}
	svc := newTestService(fs)

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, stats.Keywords.Total)
	assert.Equal(t, 5, stats.Rankings)
	assert.Equal(t, 2, stats.Domains)
	assert.Equal(t, []string{"United States"}, stats.Locations)
	assert.Equal(t, []string{"en"}, stats.Languages)
	assert.Equal(t, &oldest, stats.OldestFetch)
	assert.Equal(t, &newest, stats.NewestFetch)
	require.Len(t, stats.TopByVolume, 1)
	assert.Equal(t, "seo", stats.TopByVolume[0].Keyword)
	assert.Equal(t, svc.now(), stats.CollectedAt)

	// The top-N read sorts by volume with a fixed small limit.
	require.Len(t, fs.searched, 1)
	assert.Equal(t, "volume", fs.searched[0].SortBy)
	assert.Equal(t, 10, fs.searched[0].Limit)
}
