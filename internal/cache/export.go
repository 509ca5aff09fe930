package cache

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/dataforseo-mcp/internal/model"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ExportKeywords returns matching live records encoded as JSON, a CSV table
// with a header row, or an xlsx workbook, capped at 1000 rows. CSV quoting
// handles embedded quote characters in free-text fields.
func (s *Service) ExportKeywords(ctx context.Context, f SearchFilter, format string) ([]byte, error) {
	sf, err := f.toStoreFilter(exportLimitCap)
	if err != nil {
		return nil, err
	}
	records, err := s.store.SearchKeywords(ctx, sf)
	if err != nil {
		return nil, eris.Wrap(err, "cache: export keywords")
	}

	switch format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(records, "", "  ")
		return data, eris.Wrap(err, "cache: encode export")
	case FormatCSV:
		return encodeCSV(records)
	case FormatXLSX:
		return encodeXLSX(records)
	default:
		return nil, eris.Errorf("cache: unsupported export format %q", format)
	}
}

var csvHeader = []string{
	"keyword", "location", "language", "search_volume", "cpc",
	"competition", "intent", "keyword_difficulty", "source",
	"fetched_at", "expires_at",
}

// exportRow flattens a record into the tabular column order of csvHeader.
func exportRow(r model.KeywordRecord) []string {
	return []string{
		r.Keyword,
		r.Location,
		r.Language,
		strconv.Itoa(r.SearchVolume),
		floatField(r.CPC),
		competitionField(r.Competition),
		intentField(r.Intent),
		intField(r.KeywordDifficulty),
		r.Source,
		r.FetchedAt.UTC().Format(time.RFC3339),
		r.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func encodeCSV(records []model.KeywordRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, eris.Wrap(err, "cache: write csv header")
	}
	for _, r := range records {
		if err := w.Write(exportRow(r)); err != nil {
			return nil, eris.Wrap(err, "cache: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, eris.Wrap(err, "cache: flush csv")
	}
	return buf.Bytes(), nil
}

func encodeXLSX(records []model.KeywordRecord) ([]byte, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("keywords")
	if err != nil {
		return nil, eris.Wrap(err, "cache: create xlsx sheet")
	}

	header := sheet.AddRow()
	for _, name := range csvHeader {
		header.AddCell().SetString(name)
	}
	for _, r := range records {
		row := sheet.AddRow()
		for _, field := range exportRow(r) {
			row.AddCell().SetString(field)
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, eris.Wrap(err, "cache: write xlsx")
	}
	return buf.Bytes(), nil
}

func floatField(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func intField(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func competitionField(v *model.Competition) string {
	if v == nil {
		return ""
	}
	return string(*v)
}

func intentField(v *model.Intent) string {
	if v == nil {
		return ""
	}
	return string(*v)
}
