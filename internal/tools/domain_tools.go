package tools

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dataforseo-mcp/internal/dispatch"
	"github.com/sells-group/dataforseo-mcp/internal/model"
	"github.com/sells-group/dataforseo-mcp/pkg/dataforseo"
)

// RankedKeywordsTool lists the keywords a domain ranks for, persisting the
// rankings best-effort.
type RankedKeywordsTool struct {
	dispatcher *dispatch.Dispatcher
	api        dataforseo.Client
}

// NewRankedKeywordsTool creates the ranked_keywords handler.
func NewRankedKeywordsTool(d *dispatch.Dispatcher, api dataforseo.Client) *RankedKeywordsTool {
	return &RankedKeywordsTool{dispatcher: d, api: api}
}

func (t *RankedKeywordsTool) Name() string { return "ranked_keywords" }

func (t *RankedKeywordsTool) Description() string {
	return "Keywords a domain ranks for, with positions and traffic estimates."
}

type rankedKeywordsArgs struct {
	Target       string `json:"target"`
	LocationName string `json:"location_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

func (t *RankedKeywordsTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var a rankedKeywordsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", eris.Wrap(err, "ranked_keywords: parse arguments")
	}
	if a.Target == "" {
		return "", eris.New("ranked_keywords: target is required")
	}
	location := orDefault(a.LocationName, DefaultLocation)
	language := orDefault(a.LanguageCode, DefaultLanguage)

	req := dispatch.RankingRequest{Tool: t.Name(), Location: location, Language: language}
	items, err := t.dispatcher.Rankings(ctx, req, func(ctx context.Context) ([]model.RankingItem, error) {
		ranked, err := t.api.RankedKeywords(ctx, dataforseo.RankedKeywordsRequest{
			Target:       a.Target,
			LocationName: location,
			LanguageCode: language,
			Limit:        a.Limit,
		})
		if err != nil {
			return nil, err
		}
		return rankingItems(ranked), nil
	})
	if err != nil {
		return "", err
	}
	return encodeResult(items)
}

// DomainOverviewTool combines rank overview and backlink totals for a
// domain into one cached record.
type DomainOverviewTool struct {
	dispatcher *dispatch.Dispatcher
	api        dataforseo.Client
}

// NewDomainOverviewTool creates the domain_overview handler.
func NewDomainOverviewTool(d *dispatch.Dispatcher, api dataforseo.Client) *DomainOverviewTool {
	return &DomainOverviewTool{dispatcher: d, api: api}
}

func (t *DomainOverviewTool) Name() string { return "domain_overview" }

func (t *DomainOverviewTool) Description() string {
	return "Organic/paid visibility and backlink totals for a domain."
}

type domainOverviewArgs struct {
	Target       string `json:"target"`
	LocationName string `json:"location_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

func (t *DomainOverviewTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var a domainOverviewArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", eris.Wrap(err, "domain_overview: parse arguments")
	}
	if a.Target == "" {
		return "", eris.New("domain_overview: target is required")
	}
	location := orDefault(a.LocationName, DefaultLocation)
	language := orDefault(a.LanguageCode, DefaultLanguage)

	req := dispatch.DomainRequest{Tool: t.Name(), Domain: a.Target, Location: location, Language: language}
	item, err := t.dispatcher.Domain(ctx, req, func(ctx context.Context) (*model.DomainItem, error) {
		overview, err := t.api.DomainRankOverview(ctx, dataforseo.DomainOverviewRequest{
			Target:       a.Target,
			LocationName: location,
			LanguageCode: language,
		})
		if err != nil {
			return nil, err
		}

		// Backlink totals enrich the overview; their failure does not fail
		// the tool.
		backlinks, err := t.api.BacklinksSummary(ctx, a.Target)
		if err != nil {
			zap.L().Warn("backlinks summary unavailable",
				zap.String("target", a.Target),
				zap.Error(err),
			)
			backlinks = nil
		}
		return domainItem(overview, backlinks), nil
	})
	if err != nil {
		return "", err
	}
	if item == nil {
		return encodeResult(map[string]string{"message": "no data for target " + a.Target})
	}
	return encodeResult(item)
}
