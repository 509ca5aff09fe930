package model

import "time"

// DomainRecord is a cached domain-overview row, unique per
// (domain, location, language). All metrics are nullable; a partial
// upstream response still produces a valid record.
type DomainRecord struct {
	Domain           string    `json:"domain"`
	OrganicKeywords  *int      `json:"organic_keywords,omitempty"`
	OrganicETV       *float64  `json:"organic_etv,omitempty"`
	PaidKeywords     *int      `json:"paid_keywords,omitempty"`
	PaidETV          *float64  `json:"paid_etv,omitempty"`
	Backlinks        *int      `json:"backlinks,omitempty"`
	ReferringDomains *int      `json:"referring_domains,omitempty"`
	DomainRank       *int      `json:"domain_rank,omitempty"`
	Location         string    `json:"location"`
	Language         string    `json:"language"`
	FetchedAt        time.Time `json:"fetched_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// Live reports whether the record has not yet expired.
func (r DomainRecord) Live(now time.Time) bool {
	return r.ExpiresAt.After(now)
}

// DomainItem is the compact wire shape for domain overview metrics.
type DomainItem struct {
	Domain           string   `json:"domain"`
	OrganicKeywords  *int     `json:"organic_keywords,omitempty"`
	OrganicETV       *float64 `json:"organic_etv,omitempty"`
	PaidKeywords     *int     `json:"paid_keywords,omitempty"`
	PaidETV          *float64 `json:"paid_etv,omitempty"`
	Backlinks        *int     `json:"backlinks,omitempty"`
	ReferringDomains *int     `json:"referring_domains,omitempty"`
	DomainRank       *int     `json:"rank,omitempty"`
}

// Record materializes the item into a storable record.
func (i DomainItem) Record(location, language string, fetchedAt time.Time, ttl time.Duration) DomainRecord {
	return DomainRecord{
		Domain:           i.Domain,
		OrganicKeywords:  i.OrganicKeywords,
		OrganicETV:       i.OrganicETV,
		PaidKeywords:     i.PaidKeywords,
		PaidETV:          i.PaidETV,
		Backlinks:        i.Backlinks,
		ReferringDomains: i.ReferringDomains,
		DomainRank:       i.DomainRank,
		Location:         location,
		Language:         language,
		FetchedAt:        fetchedAt,
		ExpiresAt:        fetchedAt.Add(ttl),
	}
}

// Item converts the stored record back into the compact wire shape.
func (r DomainRecord) Item() DomainItem {
	return DomainItem{
		Domain:           r.Domain,
		OrganicKeywords:  r.OrganicKeywords,
		OrganicETV:       r.OrganicETV,
		PaidKeywords:     r.PaidKeywords,
		PaidETV:          r.PaidETV,
		Backlinks:        r.Backlinks,
		ReferringDomains: r.ReferringDomains,
		DomainRank:       r.DomainRank,
	}
}
