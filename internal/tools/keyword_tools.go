package tools

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dataforseo-mcp/internal/dispatch"
	"github.com/sells-group/dataforseo-mcp/internal/model"
	"github.com/sells-group/dataforseo-mcp/pkg/dataforseo"
)

// SearchVolumeTool is the bulk keyword tool. It is the only path with
// partial-miss logic: cached keywords are served locally and the upstream
// request is narrowed to the missing ones.
type SearchVolumeTool struct {
	dispatcher *dispatch.Dispatcher
	api        dataforseo.Client
}

// NewSearchVolumeTool creates the search_volume handler.
func NewSearchVolumeTool(d *dispatch.Dispatcher, api dataforseo.Client) *SearchVolumeTool {
	return &SearchVolumeTool{dispatcher: d, api: api}
}

func (t *SearchVolumeTool) Name() string { return "search_volume" }

func (t *SearchVolumeTool) Description() string {
	return "Google Ads search volume, CPC and competition for a list of keywords (cached)."
}

type searchVolumeArgs struct {
	Keywords     []string `json:"keywords"`
	LocationName string   `json:"location_name,omitempty"`
	LanguageCode string   `json:"language_code,omitempty"`
}

func (t *SearchVolumeTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var a searchVolumeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", eris.Wrap(err, "search_volume: parse arguments")
	}
	location := orDefault(a.LocationName, DefaultLocation)
	language := orDefault(a.LanguageCode, DefaultLanguage)

	keywords := make([]string, 0, len(a.Keywords))
	for _, kw := range a.Keywords {
		if kw = model.NormalizeKeyword(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	req := dispatch.KeywordRequest{
		Tool:     t.Name(),
		Keywords: keywords,
		Location: location,
		Language: language,
		Source:   "google_ads",
	}
	items, err := t.dispatcher.Keywords(ctx, req, func(ctx context.Context, missing []string) ([]model.KeywordItem, error) {
		stats, err := t.api.SearchVolume(ctx, dataforseo.SearchVolumeRequest{
			Keywords:     missing,
			LocationName: location,
			LanguageCode: language,
		})
		if err != nil {
			return nil, err
		}
		return keywordItems(stats), nil
	})
	if err != nil {
		return "", err
	}
	return encodeResult(items)
}

// KeywordSuggestionsTool expands a seed keyword into related keywords with
// metrics. Results are persisted best-effort but never answered from cache:
// the suggestion set for a seed is not a keyed lookup.
type KeywordSuggestionsTool struct {
	dispatcher *dispatch.Dispatcher
	api        dataforseo.Client
}

// NewKeywordSuggestionsTool creates the keyword_suggestions handler.
func NewKeywordSuggestionsTool(d *dispatch.Dispatcher, api dataforseo.Client) *KeywordSuggestionsTool {
	return &KeywordSuggestionsTool{dispatcher: d, api: api}
}

func (t *KeywordSuggestionsTool) Name() string { return "keyword_suggestions" }

func (t *KeywordSuggestionsTool) Description() string {
	return "Keyword suggestions with volume, difficulty and intent for a seed keyword."
}

type suggestionsArgs struct {
	Keyword      string `json:"keyword"`
	LocationName string `json:"location_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

func (t *KeywordSuggestionsTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var a suggestionsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", eris.Wrap(err, "keyword_suggestions: parse arguments")
	}
	if a.Keyword == "" {
		return "", eris.New("keyword_suggestions: keyword is required")
	}
	location := orDefault(a.LocationName, DefaultLocation)
	language := orDefault(a.LanguageCode, DefaultLanguage)

	req := dispatch.KeywordRequest{
		Tool:     t.Name(),
		Location: location,
		Language: language,
		Source:   "dataforseo_labs",
	}
	items, err := t.dispatcher.KeywordsUncached(ctx, req, func(ctx context.Context, _ []string) ([]model.KeywordItem, error) {
		stats, err := t.api.KeywordSuggestions(ctx, dataforseo.SuggestionsRequest{
			Keyword:      a.Keyword,
			LocationName: location,
			LanguageCode: language,
			Limit:        a.Limit,
		})
		if err != nil {
			return nil, err
		}
		return keywordItems(stats), nil
	})
	if err != nil {
		return "", err
	}
	return encodeResult(items)
}
