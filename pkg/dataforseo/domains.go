package dataforseo

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// RankedKeyword is a parsed SERP position a domain holds for one keyword.
type RankedKeyword struct {
	Keyword  string
	Domain   string
	Position *int
	Type     string // organic, paid, featured_snippet
	URL      string
	ETV      *float64
}

// RankedKeywordsRequest parameterizes a Labs ranked-keywords lookup.
type RankedKeywordsRequest struct {
	Target       string `json:"target"`
	LocationName string `json:"location_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

// rankedKeywordsResult is the raw result shape of the ranked_keywords
// endpoint.
type rankedKeywordsResult struct {
	Items []struct {
		KeywordData struct {
			Keyword string `json:"keyword"`
		} `json:"keyword_data"`
		RankedSerpElement struct {
			SerpItem struct {
				Type         string   `json:"type"`
				RankAbsolute *int     `json:"rank_absolute"`
				URL          string   `json:"url"`
				ETV          *float64 `json:"etv"`
			} `json:"serp_item"`
		} `json:"ranked_serp_element"`
	} `json:"items"`
}

func (c *httpClient) RankedKeywords(ctx context.Context, req RankedKeywordsRequest) ([]RankedKeyword, error) {
	results, err := c.post(ctx, "/v3/dataforseo_labs/google/ranked_keywords/live", req)
	if err != nil {
		return nil, err
	}

	var ranked []RankedKeyword
	for _, raw := range results {
		var r rankedKeywordsResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, eris.Wrap(err, "dataforseo: parse ranked keywords result")
		}
		for _, item := range r.Items {
			ranked = append(ranked, RankedKeyword{
				Keyword:  item.KeywordData.Keyword,
				Domain:   req.Target,
				Position: item.RankedSerpElement.SerpItem.RankAbsolute,
				Type:     item.RankedSerpElement.SerpItem.Type,
				URL:      item.RankedSerpElement.SerpItem.URL,
				ETV:      item.RankedSerpElement.SerpItem.ETV,
			})
		}
	}
	return ranked, nil
}

// DomainOverview is the parsed organic/paid visibility summary for a domain.
type DomainOverview struct {
	Domain          string
	OrganicKeywords *int
	OrganicETV      *float64
	PaidKeywords    *int
	PaidETV         *float64
}

// DomainOverviewRequest parameterizes a Labs domain-rank-overview lookup.
type DomainOverviewRequest struct {
	Target       string `json:"target"`
	LocationName string `json:"location_name,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// domainOverviewResult is the raw result shape of the domain_rank_overview
// endpoint.
type domainOverviewResult struct {
	Items []struct {
		Metrics struct {
			Organic struct {
				Count *int     `json:"count"`
				ETV   *float64 `json:"etv"`
			} `json:"organic"`
			Paid struct {
				Count *int     `json:"count"`
				ETV   *float64 `json:"etv"`
			} `json:"paid"`
		} `json:"metrics"`
	} `json:"items"`
}

func (c *httpClient) DomainRankOverview(ctx context.Context, req DomainOverviewRequest) (*DomainOverview, error) {
	results, err := c.post(ctx, "/v3/dataforseo_labs/google/domain_rank_overview/live", req)
	if err != nil {
		return nil, err
	}

	for _, raw := range results {
		var r domainOverviewResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, eris.Wrap(err, "dataforseo: parse domain overview result")
		}
		if len(r.Items) == 0 {
			continue
		}
		m := r.Items[0].Metrics
		return &DomainOverview{
			Domain:          req.Target,
			OrganicKeywords: m.Organic.Count,
			OrganicETV:      m.Organic.ETV,
			PaidKeywords:    m.Paid.Count,
			PaidETV:         m.Paid.ETV,
		}, nil
	}
	return nil, nil
}

// BacklinksSummary is the parsed backlink totals for a domain.
type BacklinksSummary struct {
	Target           string
	Backlinks        *int
	ReferringDomains *int
	Rank             *int
}

// backlinksResult is the raw result shape of the backlinks summary endpoint.
type backlinksResult struct {
	Items []struct {
		Backlinks        *int `json:"backlinks"`
		ReferringDomains *int `json:"referring_domains"`
		Rank             *int `json:"rank"`
	} `json:"items"`
}

type backlinksRequest struct {
	Target string `json:"target"`
}

func (c *httpClient) BacklinksSummary(ctx context.Context, target string) (*BacklinksSummary, error) {
	results, err := c.post(ctx, "/v3/backlinks/summary/live", backlinksRequest{Target: target})
	if err != nil {
		return nil, err
	}

	for _, raw := range results {
		var r backlinksResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, eris.Wrap(err, "dataforseo: parse backlinks result")
		}
		if len(r.Items) == 0 {
			continue
		}
		item := r.Items[0]
		return &BacklinksSummary{
			Target:           target,
			Backlinks:        item.Backlinks,
			ReferringDomains: item.ReferringDomains,
			Rank:             item.Rank,
		}, nil
	}
	return nil, nil
}
