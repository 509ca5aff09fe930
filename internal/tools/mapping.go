package tools

import (
	"strings"

	"github.com/sells-group/dataforseo-mcp/internal/model"
	"github.com/sells-group/dataforseo-mcp/pkg/dataforseo"
)

// The mapping functions translate parsed API records into the compact wire
// items the cache round-trips. Unknown enum values map to absent rather
// than failing the item.

func keywordItem(s dataforseo.KeywordStat) model.KeywordItem {
	item := model.KeywordItem{
		Keyword:    s.Keyword,
		Volume:     s.SearchVolume,
		CPC:        s.CPC,
		Difficulty: s.Difficulty,
		Monthly:    s.Monthly,
	}
	switch c := model.Competition(strings.ToUpper(s.Competition)); c {
	case model.CompetitionLow, model.CompetitionMedium, model.CompetitionHigh:
		item.Competition = &c
	}
	switch i := model.Intent(strings.ToLower(s.Intent)); i {
	case model.IntentInformational, model.IntentCommercial,
		model.IntentTransactional, model.IntentNavigational:
		item.Intent = &i
	}
	return item
}

func keywordItems(stats []dataforseo.KeywordStat) []model.KeywordItem {
	items := make([]model.KeywordItem, 0, len(stats))
	for _, s := range stats {
		items = append(items, keywordItem(s))
	}
	return items
}

func rankingItem(r dataforseo.RankedKeyword) model.RankingItem {
	item := model.RankingItem{
		Keyword:  r.Keyword,
		Domain:   r.Domain,
		Position: r.Position,
		URL:      r.URL,
		ETV:      r.ETV,
	}
	switch t := model.SerpType(r.Type); t {
	case model.SerpOrganic, model.SerpPaid, model.SerpFeaturedSnippet:
		item.SerpType = t
	default:
		item.SerpType = model.SerpOrganic
	}
	return item
}

func rankingItems(ranked []dataforseo.RankedKeyword) []model.RankingItem {
	items := make([]model.RankingItem, 0, len(ranked))
	for _, r := range ranked {
		items = append(items, rankingItem(r))
	}
	return items
}

func domainItem(overview *dataforseo.DomainOverview, backlinks *dataforseo.BacklinksSummary) *model.DomainItem {
	if overview == nil && backlinks == nil {
		return nil
	}
	item := &model.DomainItem{}
	if overview != nil {
		item.Domain = overview.Domain
		item.OrganicKeywords = overview.OrganicKeywords
		item.OrganicETV = overview.OrganicETV
		item.PaidKeywords = overview.PaidKeywords
		item.PaidETV = overview.PaidETV
	}
	if backlinks != nil {
		if item.Domain == "" {
			item.Domain = backlinks.Target
		}
		item.Backlinks = backlinks.Backlinks
		item.ReferringDomains = backlinks.ReferringDomains
		item.DomainRank = backlinks.Rank
	}
	return item
}
