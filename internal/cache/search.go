package cache

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dataforseo-mcp/internal/model"
	"github.com/sells-group/dataforseo-mcp/internal/store"
)

// Row caps applied regardless of the caller-requested limit.
const (
	searchLimitCap = 500
	exportLimitCap = 1000
)

// SearchFilter is the tool-shaped conjunctive filter for cached keywords.
type SearchFilter struct {
	Keywords    []string `json:"keywords,omitempty"`
	Match       string   `json:"match,omitempty"`
	MinVolume   *int     `json:"min_volume,omitempty"`
	MaxVolume   *int     `json:"max_volume,omitempty"`
	Competition string   `json:"competition,omitempty"`
	Intent      string   `json:"intent,omitempty"`
	Location    string   `json:"location,omitempty"`
	Language    string   `json:"language,omitempty"`
	SortBy      string   `json:"sort_by,omitempty"`
	SortDir     string   `json:"sort_dir,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

// toStoreFilter validates the sort fields and clamps the limit.
func (f SearchFilter) toStoreFilter(limitCap int) (store.KeywordFilter, error) {
	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = "volume"
	}
	if _, ok := store.SortColumns[sortBy]; !ok {
		return store.KeywordFilter{}, eris.Errorf("cache: unsupported sort field %q", f.SortBy)
	}

	var sortAsc bool
	switch f.SortDir {
	case "", "desc":
	case "asc":
		sortAsc = true
	default:
		return store.KeywordFilter{}, eris.Errorf("cache: unsupported sort direction %q", f.SortDir)
	}

	limit := f.Limit
	if limit <= 0 || limit > limitCap {
		limit = limitCap
	}

	return store.KeywordFilter{
		Keywords:    f.Keywords,
		Match:       f.Match,
		MinVolume:   f.MinVolume,
		MaxVolume:   f.MaxVolume,
		Competition: model.Competition(f.Competition),
		Intent:      model.Intent(f.Intent),
		Location:    f.Location,
		Language:    f.Language,
		SortBy:      sortBy,
		SortAsc:     sortAsc,
		Limit:       limit,
	}, nil
}

// SearchKeywords returns live cached keyword records matching the filter,
// capped at 500 rows.
func (s *Service) SearchKeywords(ctx context.Context, f SearchFilter) ([]model.KeywordRecord, error) {
	sf, err := f.toStoreFilter(searchLimitCap)
	if err != nil {
		return nil, err
	}
	records, err := s.store.SearchKeywords(ctx, sf)
	if err != nil {
		return nil, eris.Wrap(err, "cache: search keywords")
	}
	return records, nil
}
