package model

import "time"

// SerpType is the SERP element type a ranking was observed in.
type SerpType string

const (
	SerpOrganic         SerpType = "organic"
	SerpPaid            SerpType = "paid"
	SerpFeaturedSnippet SerpType = "featured_snippet"
)

// RankingRecord is a cached keyword-ranking row, unique per
// (keyword, domain, location, language).
type RankingRecord struct {
	Keyword   string    `json:"keyword"`
	Domain    string    `json:"domain"`
	Position  *int      `json:"position,omitempty"`
	URL       string    `json:"url,omitempty"`
	SerpType  SerpType  `json:"serp_type"`
	ETV       *float64  `json:"etv,omitempty"`
	Location  string    `json:"location"`
	Language  string    `json:"language"`
	FetchedAt time.Time `json:"fetched_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Live reports whether the record has not yet expired.
func (r RankingRecord) Live(now time.Time) bool {
	return r.ExpiresAt.After(now)
}

// RankingItem is the compact wire shape for a domain ranking on a keyword.
type RankingItem struct {
	Keyword  string   `json:"kw"`
	Domain   string   `json:"domain"`
	Position *int     `json:"pos,omitempty"`
	SerpType SerpType `json:"type,omitempty"`
	URL      string   `json:"url,omitempty"`
	ETV      *float64 `json:"etv,omitempty"`
}

// Record materializes the item into a storable record.
func (i RankingItem) Record(location, language string, fetchedAt time.Time, ttl time.Duration) RankingRecord {
	serpType := i.SerpType
	if serpType == "" {
		serpType = SerpOrganic
	}
	return RankingRecord{
		Keyword:   i.Keyword,
		Domain:    i.Domain,
		Position:  i.Position,
		URL:       i.URL,
		SerpType:  serpType,
		ETV:       i.ETV,
		Location:  location,
		Language:  language,
		FetchedAt: fetchedAt,
		ExpiresAt: fetchedAt.Add(ttl),
	}
}

// Item converts the stored record back into the compact wire shape.
func (r RankingRecord) Item() RankingItem {
	return RankingItem{
		Keyword:  r.Keyword,
		Domain:   r.Domain,
		Position: r.Position,
		SerpType: r.SerpType,
		URL:      r.URL,
		ETV:      r.ETV,
	}
}
