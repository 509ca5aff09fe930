package dataforseo

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"
)

// KeywordStat is the parsed, field-stripped keyword metrics record. Monthly
// volumes are ordered newest first.
type KeywordStat struct {
	Keyword      string
	SearchVolume int
	CPC          *float64
	Competition  string
	Intent       string
	Difficulty   *int
	Monthly      []int
}

// SearchVolumeRequest parameterizes a Google Ads search-volume lookup.
type SearchVolumeRequest struct {
	Keywords     []string `json:"keywords"`
	LocationName string   `json:"location_name,omitempty"`
	LanguageCode string   `json:"language_code,omitempty"`
}

// SuggestionsRequest parameterizes a Labs keyword-suggestions lookup.
type SuggestionsRequest struct {
	Keyword      string `json:"keyword"`
	LocationName string `json:"location_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

// monthlyEntry is the raw per-month volume entry.
type monthlyEntry struct {
	Year         int `json:"year"`
	Month        int `json:"month"`
	SearchVolume int `json:"search_volume"`
}

// flattenMonthly orders raw entries newest first and strips them to bare
// volumes.
func flattenMonthly(entries []monthlyEntry) []int {
	if len(entries) == 0 {
		return nil
	}
	sorted := make([]monthlyEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Year != sorted[j].Year {
			return sorted[i].Year > sorted[j].Year
		}
		return sorted[i].Month > sorted[j].Month
	})
	out := make([]int, len(sorted))
	for i, e := range sorted {
		out[i] = e.SearchVolume
	}
	return out
}

// searchVolumeResult is the raw result shape of the search_volume endpoint.
type searchVolumeResult struct {
	Keyword         string         `json:"keyword"`
	SearchVolume    *int           `json:"search_volume"`
	CPC             *float64       `json:"cpc"`
	Competition     string         `json:"competition"`
	MonthlySearches []monthlyEntry `json:"monthly_searches"`
}

func (c *httpClient) SearchVolume(ctx context.Context, req SearchVolumeRequest) ([]KeywordStat, error) {
	results, err := c.post(ctx, "/v3/keywords_data/google_ads/search_volume/live", req)
	if err != nil {
		return nil, err
	}

	var stats []KeywordStat
	for _, raw := range results {
		var r searchVolumeResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, eris.Wrap(err, "dataforseo: parse search volume result")
		}
		stat := KeywordStat{
			Keyword:     r.Keyword,
			CPC:         r.CPC,
			Competition: r.Competition,
			Monthly:     flattenMonthly(r.MonthlySearches),
		}
		if r.SearchVolume != nil {
			stat.SearchVolume = *r.SearchVolume
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// suggestionsResult is the raw result shape of the keyword_suggestions
// endpoint; the parser strips it down to KeywordStat.
type suggestionsResult struct {
	Items []struct {
		Keyword     string `json:"keyword"`
		KeywordInfo struct {
			SearchVolume    *int           `json:"search_volume"`
			CPC             *float64       `json:"cpc"`
			Competition     string         `json:"competition_level"`
			MonthlySearches []monthlyEntry `json:"monthly_searches"`
		} `json:"keyword_info"`
		KeywordProperties struct {
			KeywordDifficulty *int `json:"keyword_difficulty"`
		} `json:"keyword_properties"`
		SearchIntentInfo struct {
			MainIntent string `json:"main_intent"`
		} `json:"search_intent_info"`
	} `json:"items"`
}

func (c *httpClient) KeywordSuggestions(ctx context.Context, req SuggestionsRequest) ([]KeywordStat, error) {
	results, err := c.post(ctx, "/v3/dataforseo_labs/google/keyword_suggestions/live", req)
	if err != nil {
		return nil, err
	}

	var stats []KeywordStat
	for _, raw := range results {
		var r suggestionsResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, eris.Wrap(err, "dataforseo: parse suggestions result")
		}
		for _, item := range r.Items {
			stat := KeywordStat{
				Keyword:     item.Keyword,
				CPC:         item.KeywordInfo.CPC,
				Competition: item.KeywordInfo.Competition,
				Intent:      item.SearchIntentInfo.MainIntent,
				Difficulty:  item.KeywordProperties.KeywordDifficulty,
				Monthly:     flattenMonthly(item.KeywordInfo.MonthlySearches),
			}
			if item.KeywordInfo.SearchVolume != nil {
				stat.SearchVolume = *item.KeywordInfo.SearchVolume
			}
			stats = append(stats, stat)
		}
	}
	return stats, nil
}
