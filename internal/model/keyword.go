// Package model defines the cached entity records and the compact wire
// items exchanged with the upstream SEO data API.
package model

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// NormalizeKeyword canonicalizes a keyword for use as a cache key. Leading
// and trailing whitespace is stripped and the text is NFC-composed, so the
// same accented keyword cannot occupy two cache rows.
func NormalizeKeyword(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Competition is the Google Ads competition bucket for a keyword.
type Competition string

const (
	CompetitionLow    Competition = "LOW"
	CompetitionMedium Competition = "MEDIUM"
	CompetitionHigh   Competition = "HIGH"
)

// Intent classifies the dominant search intent of a keyword.
type Intent string

const (
	IntentInformational Intent = "informational"
	IntentCommercial    Intent = "commercial"
	IntentTransactional Intent = "transactional"
	IntentNavigational  Intent = "navigational"
)

// MonthlySearches is the per-month search volume history, newest first.
//
// Upstream payloads deliver it either as an ordered list or as a map keyed
// by "YYYY-MM"; both forms unmarshal into the normalized list. Lexicographic
// descending order of year-month keys is chronological descending.
type MonthlySearches []int

// UnmarshalJSON accepts both the ordered-list and the year-month-map shape.
func (m *MonthlySearches) UnmarshalJSON(data []byte) error {
	var list []int
	if err := json.Unmarshal(data, &list); err == nil {
		*m = list
		return nil
	}

	var byMonth map[string]int
	if err := json.Unmarshal(data, &byMonth); err != nil {
		return err
	}
	months := make([]string, 0, len(byMonth))
	for k := range byMonth {
		months = append(months, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))

	list = make([]int, 0, len(months))
	for _, k := range months {
		list = append(list, byMonth[k])
	}
	*m = list
	return nil
}

// DecodeMonthly parses a stored monthly-series value. Malformed or empty
// input decodes to nil (absent), never an error.
func DecodeMonthly(raw []byte) MonthlySearches {
	if len(raw) == 0 {
		return nil
	}
	var m MonthlySearches
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// KeywordRecord is a cached keyword-metrics row, unique per
// (keyword, location, language).
type KeywordRecord struct {
	Keyword           string          `json:"keyword"`
	Location          string          `json:"location"`
	Language          string          `json:"language"`
	SearchVolume      int             `json:"search_volume"`
	CPC               *float64        `json:"cpc,omitempty"`
	Competition       *Competition    `json:"competition,omitempty"`
	Intent            *Intent         `json:"intent,omitempty"`
	KeywordDifficulty *int            `json:"keyword_difficulty,omitempty"`
	MonthlySearches   MonthlySearches `json:"monthly_searches,omitempty"`
	Source            string          `json:"source"`
	FetchedAt         time.Time       `json:"fetched_at"`
	ExpiresAt         time.Time       `json:"expires_at"`
}

// Live reports whether the record has not yet expired.
func (r KeywordRecord) Live(now time.Time) bool {
	return r.ExpiresAt.After(now)
}

// Item converts the stored record back into the compact wire shape.
func (r KeywordRecord) Item() KeywordItem {
	return KeywordItem{
		Keyword:     r.Keyword,
		Volume:      r.SearchVolume,
		CPC:         r.CPC,
		Competition: r.Competition,
		Intent:      r.Intent,
		Difficulty:  r.KeywordDifficulty,
		Monthly:     r.MonthlySearches,
	}
}

// KeywordItem is the compact wire shape for keyword metrics, as produced by
// the upstream response parsers and round-tripped through the cache.
type KeywordItem struct {
	Keyword     string          `json:"kw"`
	Volume      int             `json:"vol"`
	CPC         *float64        `json:"cpc,omitempty"`
	Competition *Competition    `json:"comp,omitempty"`
	Intent      *Intent         `json:"intent,omitempty"`
	Difficulty  *int            `json:"kd,omitempty"`
	Monthly     MonthlySearches `json:"monthly,omitempty"`
}

// UnmarshalJSON accepts the keyword under either "kw" or the long-form
// "keyword" field name. Items that carry neither decode with an empty
// Keyword; the cache boundary drops those.
func (k *KeywordItem) UnmarshalJSON(data []byte) error {
	type alias KeywordItem
	aux := struct {
		*alias
		LongKeyword string `json:"keyword"`
	}{alias: (*alias)(k)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if k.Keyword == "" {
		k.Keyword = aux.LongKeyword
	}
	return nil
}

// Record materializes the item into a storable record for the given locale
// and TTL window.
func (k KeywordItem) Record(location, language, source string, fetchedAt time.Time, ttl time.Duration) KeywordRecord {
	return KeywordRecord{
		Keyword:           k.Keyword,
		Location:          location,
		Language:          language,
		SearchVolume:      k.Volume,
		CPC:               k.CPC,
		Competition:       k.Competition,
		Intent:            k.Intent,
		KeywordDifficulty: k.Difficulty,
		MonthlySearches:   k.Monthly,
		Source:            source,
		FetchedAt:         fetchedAt,
		ExpiresAt:         fetchedAt.Add(ttl),
	}
}
