package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dataforseo-mcp/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS keywords (
	keyword            TEXT NOT NULL,
	location           TEXT NOT NULL,
	language           TEXT NOT NULL,
	search_volume      INTEGER NOT NULL DEFAULT 0,
	cpc                REAL,
	competition        TEXT,
	intent             TEXT,
	keyword_difficulty INTEGER,
	monthly_searches   TEXT,
	source             TEXT NOT NULL DEFAULT '',
	fetched_at         DATETIME NOT NULL,
	expires_at         DATETIME NOT NULL,
	UNIQUE(keyword, location, language)
);

CREATE TABLE IF NOT EXISTS keyword_rankings (
	keyword    TEXT NOT NULL,
	domain     TEXT NOT NULL,
	position   INTEGER,
	url        TEXT,
	serp_type  TEXT NOT NULL DEFAULT 'organic',
	etv        REAL,
	location   TEXT NOT NULL,
	language   TEXT NOT NULL,
	fetched_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL,
	UNIQUE(keyword, domain, location, language)
);

CREATE TABLE IF NOT EXISTS domains (
	domain            TEXT NOT NULL,
	organic_keywords  INTEGER,
	organic_etv       REAL,
	paid_keywords     INTEGER,
	paid_etv          REAL,
	backlinks         INTEGER,
	referring_domains INTEGER,
	domain_rank       INTEGER,
	location          TEXT NOT NULL,
	language          TEXT NOT NULL,
	fetched_at        DATETIME NOT NULL,
	expires_at        DATETIME NOT NULL,
	UNIQUE(domain, location, language)
);

CREATE TABLE IF NOT EXISTS search_logs (
	id           TEXT PRIMARY KEY,
	tool_name    TEXT NOT NULL,
	query_params TEXT NOT NULL DEFAULT '',
	result_count INTEGER NOT NULL DEFAULT 0,
	cache_hit    INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_keywords_expires_at ON keywords(expires_at);
CREATE INDEX IF NOT EXISTS idx_keywords_volume ON keywords(search_volume);
CREATE INDEX IF NOT EXISTS idx_rankings_expires_at ON keyword_rankings(expires_at);
CREATE INDEX IF NOT EXISTS idx_rankings_domain ON keyword_rankings(domain);
CREATE INDEX IF NOT EXISTS idx_domains_expires_at ON domains(expires_at);
CREATE INDEX IF NOT EXISTS idx_search_logs_created_at ON search_logs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteUpsertKeyword = `
INSERT INTO keywords (keyword, location, language, search_volume, cpc, competition, intent, keyword_difficulty, monthly_searches, source, fetched_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(keyword, location, language) DO UPDATE SET
	search_volume      = excluded.search_volume,
	cpc                = excluded.cpc,
	competition        = excluded.competition,
	intent             = excluded.intent,
	keyword_difficulty = excluded.keyword_difficulty,
	monthly_searches   = excluded.monthly_searches,
	source             = excluded.source,
	fetched_at         = excluded.fetched_at,
	expires_at         = excluded.expires_at`

func (s *SQLiteStore) UpsertKeywords(ctx context.Context, records []model.KeywordRecord) error {
	for _, group := range chunk(records, upsertChunkSize) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return eris.Wrap(err, "sqlite: begin upsert chunk")
		}
		for _, r := range group {
			monthly, err := encodeMonthly(r.MonthlySearches)
			if err != nil {
				tx.Rollback()
				return err
			}
			_, err = tx.ExecContext(ctx, sqliteUpsertKeyword,
				r.Keyword, r.Location, r.Language, r.SearchVolume,
				r.CPC, r.Competition, r.Intent, r.KeywordDifficulty,
				monthly, r.Source, r.FetchedAt.UTC(), r.ExpiresAt.UTC(),
			)
			if err != nil {
				tx.Rollback()
				return eris.Wrapf(err, "sqlite: upsert keyword %q", r.Keyword)
			}
		}
		if err := tx.Commit(); err != nil {
			return eris.Wrap(err, "sqlite: commit upsert chunk")
		}
	}
	return nil
}

const sqliteKeywordColumns = `keyword, location, language, search_volume, cpc, competition, intent, keyword_difficulty, monthly_searches, source, fetched_at, expires_at`

func (s *SQLiteStore) GetKeywords(ctx context.Context, keywords []string, location, language string) (map[string]model.KeywordRecord, error) {
	result := make(map[string]model.KeywordRecord, len(keywords))
	if len(keywords) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keywords)), ", ")
	query := `SELECT ` + sqliteKeywordColumns + ` FROM keywords
		WHERE location = ? AND language = ? AND expires_at > ? AND keyword IN (` + placeholders + `)`

	args := []any{location, language, time.Now().UTC()}
	for _, kw := range keywords {
		args = append(args, kw)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get keywords")
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanKeyword(rows)
		if err != nil {
			return nil, err
		}
		result[r.Keyword] = *r
	}
	return result, eris.Wrap(rows.Err(), "sqlite: get keywords iterate")
}

func (s *SQLiteStore) SearchKeywords(ctx context.Context, f KeywordFilter) ([]model.KeywordRecord, error) {
	query := `SELECT ` + sqliteKeywordColumns + ` FROM keywords WHERE expires_at > ?`
	args := []any{time.Now().UTC()}

	if len(f.Keywords) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(f.Keywords)), ", ")
		query += ` AND keyword IN (` + placeholders + `)`
		for _, kw := range f.Keywords {
			args = append(args, kw)
		}
	}
	if f.Match != "" {
		query += ` AND keyword LIKE '%' || ? || '%'`
		args = append(args, f.Match)
	}
	if f.MinVolume != nil {
		query += ` AND search_volume >= ?`
		args = append(args, *f.MinVolume)
	}
	if f.MaxVolume != nil {
		query += ` AND search_volume <= ?`
		args = append(args, *f.MaxVolume)
	}
	if f.Competition != "" {
		query += ` AND competition = ?`
		args = append(args, string(f.Competition))
	}
	if f.Intent != "" {
		query += ` AND intent = ?`
		args = append(args, string(f.Intent))
	}
	if f.Location != "" {
		query += ` AND location = ?`
		args = append(args, f.Location)
	}
	if f.Language != "" {
		query += ` AND language = ?`
		args = append(args, f.Language)
	}

	sortCol, ok := SortColumns[f.SortBy]
	if !ok {
		sortCol = "search_volume"
	}
	dir := "DESC"
	if f.SortAsc {
		dir = "ASC"
	}
	query += ` ORDER BY ` + sortCol + ` ` + dir + ` LIMIT ?`
	args = append(args, capLimit(f.Limit, 100))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search keywords")
	}
	defer rows.Close()

	var records []model.KeywordRecord
	for rows.Next() {
		r, err := scanKeyword(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: search keywords iterate")
}

const sqliteUpsertRanking = `
INSERT INTO keyword_rankings (keyword, domain, position, url, serp_type, etv, location, language, fetched_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(keyword, domain, location, language) DO UPDATE SET
	position   = excluded.position,
	url        = excluded.url,
	serp_type  = excluded.serp_type,
	etv        = excluded.etv,
	fetched_at = excluded.fetched_at,
	expires_at = excluded.expires_at`

func (s *SQLiteStore) UpsertRankings(ctx context.Context, records []model.RankingRecord) error {
	for _, group := range chunk(records, upsertChunkSize) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return eris.Wrap(err, "sqlite: begin ranking chunk")
		}
		for _, r := range group {
			_, err := tx.ExecContext(ctx, sqliteUpsertRanking,
				r.Keyword, r.Domain, r.Position, r.URL, string(r.SerpType),
				r.ETV, r.Location, r.Language, r.FetchedAt.UTC(), r.ExpiresAt.UTC(),
			)
			if err != nil {
				tx.Rollback()
				return eris.Wrapf(err, "sqlite: upsert ranking %q/%q", r.Keyword, r.Domain)
			}
		}
		if err := tx.Commit(); err != nil {
			return eris.Wrap(err, "sqlite: commit ranking chunk")
		}
	}
	return nil
}

const sqliteUpsertDomain = `
INSERT INTO domains (domain, organic_keywords, organic_etv, paid_keywords, paid_etv, backlinks, referring_domains, domain_rank, location, language, fetched_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(domain, location, language) DO UPDATE SET
	organic_keywords  = excluded.organic_keywords,
	organic_etv       = excluded.organic_etv,
	paid_keywords     = excluded.paid_keywords,
	paid_etv          = excluded.paid_etv,
	backlinks         = excluded.backlinks,
	referring_domains = excluded.referring_domains,
	domain_rank       = excluded.domain_rank,
	fetched_at        = excluded.fetched_at,
	expires_at        = excluded.expires_at`

func (s *SQLiteStore) UpsertDomain(ctx context.Context, r model.DomainRecord) error {
	_, err := s.db.ExecContext(ctx, sqliteUpsertDomain,
		r.Domain, r.OrganicKeywords, r.OrganicETV, r.PaidKeywords, r.PaidETV,
		r.Backlinks, r.ReferringDomains, r.DomainRank,
		r.Location, r.Language, r.FetchedAt.UTC(), r.ExpiresAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert domain %q", r.Domain)
}

func (s *SQLiteStore) Purge(ctx context.Context, table string, f ClearFilter) (int, error) {
	if err := validPurge(table, f); err != nil {
		return 0, err
	}

	query := `DELETE FROM ` + table + ` WHERE 1=1`
	var args []any

	if f.Location != "" {
		query += ` AND location = ?`
		args = append(args, f.Location)
	}
	if f.Language != "" {
		query += ` AND language = ?`
		args = append(args, f.Language)
	}
	if f.Match != "" {
		query += ` AND keyword LIKE '%' || ? || '%'`
		args = append(args, f.Match)
	}
	if f.ExpiredOnly {
		query += ` AND expires_at <= ?`
		args = append(args, time.Now().UTC())
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: purge %s", table)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) AppendSearchLog(ctx context.Context, entry model.SearchLogEntry) error {
	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_logs (id, tool_name, query_params, result_count, cache_hit, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, entry.ToolName, entry.QueryParams, entry.ResultCount, entry.CacheHit, createdAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: append search log")
}

func (s *SQLiteStore) KeywordCounts(ctx context.Context) (*KeywordCounts, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN search_volume > 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0)
		FROM keywords`,
		time.Now().UTC(),
	)
	var c KeywordCounts
	if err := row.Scan(&c.Total, &c.WithVolume, &c.Expired); err != nil {
		return nil, eris.Wrap(err, "sqlite: keyword counts")
	}
	c.WithoutVolume = c.Total - c.WithVolume
	return &c, nil
}

func (s *SQLiteStore) DistinctLocales(ctx context.Context) ([]string, []string, error) {
	locations, err := s.distinctColumn(ctx, "location")
	if err != nil {
		return nil, nil, err
	}
	languages, err := s.distinctColumn(ctx, "language")
	if err != nil {
		return nil, nil, err
	}
	return locations, languages, nil
}

func (s *SQLiteStore) distinctColumn(ctx context.Context, column string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT `+column+` FROM keywords ORDER BY `+column)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: distinct %s", column)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", column)
		}
		values = append(values, v)
	}
	return values, eris.Wrapf(rows.Err(), "sqlite: distinct %s iterate", column)
}

func (s *SQLiteStore) FetchedRange(ctx context.Context) (*time.Time, *time.Time, error) {
	oldest, err := s.fetchedBound(ctx, "ASC")
	if err != nil {
		return nil, nil, err
	}
	newest, err := s.fetchedBound(ctx, "DESC")
	if err != nil {
		return nil, nil, err
	}
	return oldest, newest, nil
}

func (s *SQLiteStore) fetchedBound(ctx context.Context, dir string) (*time.Time, error) {
	row := s.db.QueryRowContext(ctx, `SELECT fetched_at FROM keywords ORDER BY fetched_at `+dir+` LIMIT 1`)
	var t time.Time
	err := row.Scan(&t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fetched range")
	}
	return &t, nil
}

func (s *SQLiteStore) CountRankings(ctx context.Context) (int, error) {
	return s.countTable(ctx, TableRankings)
}

func (s *SQLiteStore) CountDomains(ctx context.Context) (int, error) {
	return s.countTable(ctx, TableDomains)
}

func (s *SQLiteStore) countTable(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "sqlite: count %s", table)
	}
	return n, nil
}

// helpers

func encodeMonthly(m model.MonthlySearches) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal monthly searches")
	}
	return string(data), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanKeyword(row scannable) (*model.KeywordRecord, error) {
	var (
		r           model.KeywordRecord
		cpc         sql.NullFloat64
		competition sql.NullString
		intent      sql.NullString
		difficulty  sql.NullInt64
		monthly     sql.NullString
	)
	err := row.Scan(
		&r.Keyword, &r.Location, &r.Language, &r.SearchVolume,
		&cpc, &competition, &intent, &difficulty, &monthly,
		&r.Source, &r.FetchedAt, &r.ExpiresAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan keyword")
	}

	if cpc.Valid {
		r.CPC = &cpc.Float64
	}
	if competition.Valid {
		c := model.Competition(competition.String)
		r.Competition = &c
	}
	if intent.Valid {
		i := model.Intent(intent.String)
		r.Intent = &i
	}
	if difficulty.Valid {
		d := int(difficulty.Int64)
		r.KeywordDifficulty = &d
	}
	if monthly.Valid {
		// Malformed stored values decode to absent, never an error.
		r.MonthlySearches = model.DecodeMonthly([]byte(monthly.String))
	}
	return &r, nil
}
