package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dataforseo-mcp/internal/cache"
	"github.com/sells-group/dataforseo-mcp/internal/dispatch"
	"github.com/sells-group/dataforseo-mcp/internal/model"
	"github.com/sells-group/dataforseo-mcp/internal/store"
	"github.com/sells-group/dataforseo-mcp/pkg/dataforseo"
)

func ptr[T any](v T) *T { return &v }

// toolStore is an in-memory store.Store backing the tool tests.
type toolStore struct {
	keywords map[string]model.KeywordRecord
	upserted []model.KeywordRecord
	rankings []model.RankingRecord
	domains  []model.DomainRecord
	logs     []model.SearchLogEntry
	purged   []string
}

func newToolStore() *toolStore {
	return &toolStore{keywords: map[string]model.KeywordRecord{}}
}

func (s *toolStore) UpsertKeywords(_ context.Context, records []model.KeywordRecord) error {
	s.upserted = append(s.upserted, records...)
	for _, r := range records {
		s.keywords[r.Keyword] = r
	}
	return nil
}

func (s *toolStore) GetKeywords(_ context.Context, keywords []string, _, _ string) (map[string]model.KeywordRecord, error) {
	out := map[string]model.KeywordRecord{}
	for _, kw := range keywords {
		if rec, ok := s.keywords[kw]; ok && rec.Live(time.Now()) {
			out[kw] = rec
		}
	}
	return out, nil
}

func (s *toolStore) SearchKeywords(_ context.Context, _ store.KeywordFilter) ([]model.KeywordRecord, error) {
	return nil, nil
}

func (s *toolStore) UpsertRankings(_ context.Context, records []model.RankingRecord) error {
	s.rankings = append(s.rankings, records...)
	return nil
}

func (s *toolStore) UpsertDomain(_ context.Context, record model.DomainRecord) error {
	s.domains = append(s.domains, record)
	return nil
}

func (s *toolStore) Purge(_ context.Context, table string, f store.ClearFilter) (int, error) {
	s.purged = append(s.purged, table)
	return 4, nil
}

func (s *toolStore) AppendSearchLog(_ context.Context, entry model.SearchLogEntry) error {
	s.logs = append(s.logs, entry)
	return nil
}

func (s *toolStore) KeywordCounts(_ context.Context) (*store.KeywordCounts, error) {
	return &store.KeywordCounts{Total: len(s.keywords)}, nil
}

func (s *toolStore) DistinctLocales(_ context.Context) ([]string, []string, error) {
	return []string{"United States"}, []string{"en"}, nil
}

func (s *toolStore) FetchedRange(_ context.Context) (*time.Time, *time.Time, error) {
	return nil, nil, nil
}

func (s *toolStore) CountRankings(_ context.Context) (int, error) { return len(s.rankings), nil }
func (s *toolStore) CountDomains(_ context.Context) (int, error)  { return len(s.domains), nil }
func (s *toolStore) Migrate(_ context.Context) error              { return nil }
func (s *toolStore) Close() error                                 { return nil }

// fakeAPI is a canned dataforseo.Client recording the requests it gets.
type fakeAPI struct {
	volumeReqs   []dataforseo.SearchVolumeRequest
	volumeStats  []dataforseo.KeywordStat
	suggestReqs  []dataforseo.SuggestionsRequest
	suggestStats []dataforseo.KeywordStat
	rankedReqs   []dataforseo.RankedKeywordsRequest
	ranked       []dataforseo.RankedKeyword
	overview     *dataforseo.DomainOverview
	overviewErr  error
	backlinks    *dataforseo.BacklinksSummary
	backlinksErr error
}

func (f *fakeAPI) SearchVolume(_ context.Context, req dataforseo.SearchVolumeRequest) ([]dataforseo.KeywordStat, error) {
	f.volumeReqs = append(f.volumeReqs, req)
	return f.volumeStats, nil
}

func (f *fakeAPI) KeywordSuggestions(_ context.Context, req dataforseo.SuggestionsRequest) ([]dataforseo.KeywordStat, error) {
	f.suggestReqs = append(f.suggestReqs, req)
	return f.suggestStats, nil
}

func (f *fakeAPI) RankedKeywords(_ context.Context, req dataforseo.RankedKeywordsRequest) ([]dataforseo.RankedKeyword, error) {
	f.rankedReqs = append(f.rankedReqs, req)
	return f.ranked, nil
}

func (f *fakeAPI) DomainRankOverview(_ context.Context, _ dataforseo.DomainOverviewRequest) (*dataforseo.DomainOverview, error) {
	return f.overview, f.overviewErr
}

func (f *fakeAPI) BacklinksSummary(_ context.Context, _ string) (*dataforseo.BacklinksSummary, error) {
	return f.backlinks, f.backlinksErr
}

func newToolFixture() (*toolStore, *cache.Service, *dispatch.Dispatcher) {
	st := newToolStore()
	svc := cache.New(st, cache.TTLPolicy{})
	return st, svc, dispatch.New(svc)
}

func TestSearchVolumeToolNarrowsFetch(t *testing.T) {
	st, _, d := newToolFixture()
	st.keywords["seo"] = model.KeywordRecord{
		Keyword:      "seo",
		Location:     "United States",
		Language:     "en",
		SearchVolume: 1000,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	api := &fakeAPI{volumeStats: []dataforseo.KeywordStat{
		{Keyword: "link building", SearchVolume: 400, Competition: "LOW"},
	}}
	tool := NewSearchVolumeTool(d, api)

	out, err := tool.Call(context.Background(), json.RawMessage(`{"keywords":["seo","link building"]}`))
	require.NoError(t, err)

	require.Len(t, api.volumeReqs, 1)
	assert.Equal(t, []string{"link building"}, api.volumeReqs[0].Keywords)
	assert.Equal(t, "United States", api.volumeReqs[0].LocationName)
	assert.Equal(t, "en", api.volumeReqs[0].LanguageCode)

	var items []model.KeywordItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 2)
	assert.Equal(t, "seo", items[0].Keyword)
	assert.Equal(t, 1000, items[0].Volume)
	assert.Equal(t, "link building", items[1].Keyword)

	// Fetched keywords are persisted with the request locale.
	require.Len(t, st.upserted, 1)
	assert.Equal(t, "link building", st.upserted[0].Keyword)
	assert.Equal(t, "google_ads", st.upserted[0].Source)
}

func TestSearchVolumeToolBadArgs(t *testing.T) {
	_, _, d := newToolFixture()
	tool := NewSearchVolumeTool(d, &fakeAPI{})

	_, err := tool.Call(context.Background(), json.RawMessage(`{"keywords":"not a list"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse arguments")
}

func TestKeywordSuggestionsToolRequiresKeyword(t *testing.T) {
	_, _, d := newToolFixture()
	tool := NewKeywordSuggestionsTool(d, &fakeAPI{})

	_, err := tool.Call(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keyword is required")
}

func TestKeywordSuggestionsToolFetchesAndPersists(t *testing.T) {
	st, _, d := newToolFixture()
	api := &fakeAPI{suggestStats: []dataforseo.KeywordStat{
		{Keyword: "seo tools", SearchVolume: 900, Intent: "commercial"},
		{Keyword: "seo audit", SearchVolume: 300},
	}}
	tool := NewKeywordSuggestionsTool(d, api)

	out, err := tool.Call(context.Background(), json.RawMessage(`{"keyword":"seo","limit":25}`))
	require.NoError(t, err)

	require.Len(t, api.suggestReqs, 1)
	assert.Equal(t, "seo", api.suggestReqs[0].Keyword)
	assert.Equal(t, 25, api.suggestReqs[0].Limit)

	var items []model.KeywordItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 2)
	require.NotNil(t, items[0].Intent)
	assert.Equal(t, model.IntentCommercial, *items[0].Intent)

	require.Len(t, st.upserted, 2)
	assert.Equal(t, "dataforseo_labs", st.upserted[0].Source)
	require.Len(t, st.logs, 1)
	assert.Equal(t, "keyword_suggestions", st.logs[0].ToolName)
}

func TestRankedKeywordsToolRequiresTarget(t *testing.T) {
	_, _, d := newToolFixture()
	tool := NewRankedKeywordsTool(d, &fakeAPI{})

	_, err := tool.Call(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target is required")
}

func TestRankedKeywordsToolFetchesAndPersists(t *testing.T) {
	st, _, d := newToolFixture()
	api := &fakeAPI{ranked: []dataforseo.RankedKeyword{
		{Keyword: "seo tools", Domain: "example.com", Position: ptr(3), Type: "organic"},
		{Keyword: "seo audit", Domain: "example.com", Position: ptr(9), Type: "shopping"},
	}}
	tool := NewRankedKeywordsTool(d, api)

	out, err := tool.Call(context.Background(), json.RawMessage(`{"target":"example.com"}`))
	require.NoError(t, err)

	require.Len(t, api.rankedReqs, 1)
	assert.Equal(t, "example.com", api.rankedReqs[0].Target)

	var items []model.RankingItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 2)
	assert.Equal(t, model.SerpOrganic, items[1].SerpType)

	require.Len(t, st.rankings, 2)
	assert.Equal(t, "example.com", st.rankings[0].Domain)
}

func TestDomainOverviewToolRequiresTarget(t *testing.T) {
	_, _, d := newToolFixture()
	tool := NewDomainOverviewTool(d, &fakeAPI{})

	_, err := tool.Call(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target is required")
}

func TestDomainOverviewToolMergesBacklinks(t *testing.T) {
	st, _, d := newToolFixture()
	api := &fakeAPI{
		overview:  &dataforseo.DomainOverview{Domain: "example.com", OrganicKeywords: ptr(500)},
		backlinks: &dataforseo.BacklinksSummary{Target: "example.com", Backlinks: ptr(9000)},
	}
	tool := NewDomainOverviewTool(d, api)

	out, err := tool.Call(context.Background(), json.RawMessage(`{"target":"example.com"}`))
	require.NoError(t, err)

	var item model.DomainItem
	require.NoError(t, json.Unmarshal([]byte(out), &item))
	assert.Equal(t, "example.com", item.Domain)
	assert.Equal(t, 500, *item.OrganicKeywords)
	assert.Equal(t, 9000, *item.Backlinks)

	require.Len(t, st.domains, 1)
}

func TestDomainOverviewToolSurvivesBacklinksOutage(t *testing.T) {
	_, _, d := newToolFixture()
	api := &fakeAPI{
		overview:     &dataforseo.DomainOverview{Domain: "example.com", OrganicKeywords: ptr(500)},
		backlinksErr: assert.AnError,
	}
	tool := NewDomainOverviewTool(d, api)

	out, err := tool.Call(context.Background(), json.RawMessage(`{"target":"example.com"}`))
	require.NoError(t, err)

	var item model.DomainItem
	require.NoError(t, json.Unmarshal([]byte(out), &item))
	assert.Equal(t, "example.com", item.Domain)
	assert.Nil(t, item.Backlinks)
}

func TestDomainOverviewToolNoData(t *testing.T) {
	st, _, d := newToolFixture()
	tool := NewDomainOverviewTool(d, &fakeAPI{})

	out, err := tool.Call(context.Background(), json.RawMessage(`{"target":"ghost.example"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"no data for target ghost.example"}`, out)
	assert.Empty(t, st.domains)
}

func TestCacheSearchToolDegradesOnInvalidFilter(t *testing.T) {
	_, svc, _ := newToolFixture()
	tool := NewCacheSearchTool(svc)

	out, err := tool.Call(context.Background(), json.RawMessage(`{"sort_by":"relevance"}`))
	require.NoError(t, err)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Contains(t, body["error"], "sort field")
}

func TestCacheClearToolRequiresTable(t *testing.T) {
	_, svc, _ := newToolFixture()
	tool := NewCacheClearTool(svc)

	_, err := tool.Call(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table is required")
}

func TestCacheClearToolReportsDeleted(t *testing.T) {
	st, svc, _ := newToolFixture()
	tool := NewCacheClearTool(svc)

	out, err := tool.Call(context.Background(), json.RawMessage(`{"table":"keywords","expired_only":true}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"table":"keywords","deleted":4}`, out)
	assert.Equal(t, []string{"keywords"}, st.purged)
}

func TestCacheExportToolRejectsFormat(t *testing.T) {
	_, svc, _ := newToolFixture()
	tool := NewCacheExportTool(svc)

	out, err := tool.Call(context.Background(), json.RawMessage(`{"format":"xml"}`))
	require.NoError(t, err)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Contains(t, body["error"], "xml")
}

func TestCacheStatsTool(t *testing.T) {
	st, svc, _ := newToolFixture()
	st.keywords["seo"] = model.KeywordRecord{Keyword: "seo"}
	tool := NewCacheStatsTool(svc)

	out, err := tool.Call(context.Background(), nil)
	require.NoError(t, err)

	var stats cache.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.Keywords.Total)
	assert.Equal(t, []string{"United States"}, stats.Locations)
}
