package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dataforseo-mcp/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the store. pgxmock satisfies
// it for tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS keywords (
	keyword            TEXT NOT NULL,
	location           TEXT NOT NULL,
	language           TEXT NOT NULL,
	search_volume      INTEGER NOT NULL DEFAULT 0,
	cpc                DOUBLE PRECISION,
	competition        TEXT,
	intent             TEXT,
	keyword_difficulty INTEGER,
	monthly_searches   JSONB,
	source             TEXT NOT NULL DEFAULT '',
	fetched_at         TIMESTAMPTZ NOT NULL,
	expires_at         TIMESTAMPTZ NOT NULL,
	UNIQUE(keyword, location, language)
);

CREATE TABLE IF NOT EXISTS keyword_rankings (
	keyword    TEXT NOT NULL,
	domain     TEXT NOT NULL,
	position   INTEGER,
	url        TEXT,
	serp_type  TEXT NOT NULL DEFAULT 'organic',
	etv        DOUBLE PRECISION,
	location   TEXT NOT NULL,
	language   TEXT NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	UNIQUE(keyword, domain, location, language)
);

CREATE TABLE IF NOT EXISTS domains (
	domain            TEXT NOT NULL,
	organic_keywords  INTEGER,
	organic_etv       DOUBLE PRECISION,
	paid_keywords     INTEGER,
	paid_etv          DOUBLE PRECISION,
	backlinks         BIGINT,
	referring_domains INTEGER,
	domain_rank       INTEGER,
	location          TEXT NOT NULL,
	language          TEXT NOT NULL,
	fetched_at        TIMESTAMPTZ NOT NULL,
	expires_at        TIMESTAMPTZ NOT NULL,
	UNIQUE(domain, location, language)
);

CREATE TABLE IF NOT EXISTS search_logs (
	id           TEXT PRIMARY KEY,
	tool_name    TEXT NOT NULL,
	query_params TEXT NOT NULL DEFAULT '',
	result_count INTEGER NOT NULL DEFAULT 0,
	cache_hit    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_keywords_expires_at ON keywords(expires_at);
CREATE INDEX IF NOT EXISTS idx_keywords_volume ON keywords(search_volume);
CREATE INDEX IF NOT EXISTS idx_rankings_expires_at ON keyword_rankings(expires_at);
CREATE INDEX IF NOT EXISTS idx_rankings_domain ON keyword_rankings(domain);
CREATE INDEX IF NOT EXISTS idx_domains_expires_at ON domains(expires_at);
CREATE INDEX IF NOT EXISTS idx_search_logs_created_at ON search_logs(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const pgUpsertKeyword = `
INSERT INTO keywords (keyword, location, language, search_volume, cpc, competition, intent, keyword_difficulty, monthly_searches, source, fetched_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (keyword, location, language) DO UPDATE SET
	search_volume      = EXCLUDED.search_volume,
	cpc                = EXCLUDED.cpc,
	competition        = EXCLUDED.competition,
	intent             = EXCLUDED.intent,
	keyword_difficulty = EXCLUDED.keyword_difficulty,
	monthly_searches   = EXCLUDED.monthly_searches,
	source             = EXCLUDED.source,
	fetched_at         = EXCLUDED.fetched_at,
	expires_at         = EXCLUDED.expires_at`

func (s *PostgresStore) UpsertKeywords(ctx context.Context, records []model.KeywordRecord) error {
	for _, group := range chunk(records, upsertChunkSize) {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return eris.Wrap(err, "postgres: begin upsert chunk")
		}
		for _, r := range group {
			monthly, err := pgMonthly(r.MonthlySearches)
			if err != nil {
				tx.Rollback(ctx)
				return err
			}
			_, err = tx.Exec(ctx, pgUpsertKeyword,
				r.Keyword, r.Location, r.Language, r.SearchVolume,
				r.CPC, competitionValue(r.Competition), intentValue(r.Intent), r.KeywordDifficulty,
				monthly, r.Source, r.FetchedAt.UTC(), r.ExpiresAt.UTC(),
			)
			if err != nil {
				tx.Rollback(ctx)
				return eris.Wrapf(err, "postgres: upsert keyword %q", r.Keyword)
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return eris.Wrap(err, "postgres: commit upsert chunk")
		}
	}
	return nil
}

const pgKeywordColumns = `keyword, location, language, search_volume, cpc, competition, intent, keyword_difficulty, monthly_searches::text, source, fetched_at, expires_at`

func (s *PostgresStore) GetKeywords(ctx context.Context, keywords []string, location, language string) (map[string]model.KeywordRecord, error) {
	result := make(map[string]model.KeywordRecord, len(keywords))
	if len(keywords) == 0 {
		return result, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+pgKeywordColumns+` FROM keywords
		 WHERE location = $1 AND language = $2 AND expires_at > now() AND keyword = ANY($3)`,
		location, language, keywords,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get keywords")
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanPgKeyword(rows)
		if err != nil {
			return nil, err
		}
		result[r.Keyword] = *r
	}
	return result, eris.Wrap(rows.Err(), "postgres: get keywords iterate")
}

func (s *PostgresStore) SearchKeywords(ctx context.Context, f KeywordFilter) ([]model.KeywordRecord, error) {
	query := `SELECT ` + pgKeywordColumns + ` FROM keywords WHERE expires_at > now()`
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if len(f.Keywords) > 0 {
		query += ` AND keyword = ANY(` + next(f.Keywords) + `)`
	}
	if f.Match != "" {
		query += ` AND keyword LIKE '%' || ` + next(f.Match) + ` || '%'`
	}
	if f.MinVolume != nil {
		query += ` AND search_volume >= ` + next(*f.MinVolume)
	}
	if f.MaxVolume != nil {
		query += ` AND search_volume <= ` + next(*f.MaxVolume)
	}
	if f.Competition != "" {
		query += ` AND competition = ` + next(string(f.Competition))
	}
	if f.Intent != "" {
		query += ` AND intent = ` + next(string(f.Intent))
	}
	if f.Location != "" {
		query += ` AND location = ` + next(f.Location)
	}
	if f.Language != "" {
		query += ` AND language = ` + next(f.Language)
	}

	sortCol, ok := SortColumns[f.SortBy]
	if !ok {
		sortCol = "search_volume"
	}
	dir := "DESC"
	if f.SortAsc {
		dir = "ASC"
	}
	query += ` ORDER BY ` + sortCol + ` ` + dir + ` LIMIT ` + next(capLimit(f.Limit, 100))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search keywords")
	}
	defer rows.Close()

	var records []model.KeywordRecord
	for rows.Next() {
		r, err := scanPgKeyword(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: search keywords iterate")
}

const pgUpsertRanking = `
INSERT INTO keyword_rankings (keyword, domain, position, url, serp_type, etv, location, language, fetched_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (keyword, domain, location, language) DO UPDATE SET
	position   = EXCLUDED.position,
	url        = EXCLUDED.url,
	serp_type  = EXCLUDED.serp_type,
	etv        = EXCLUDED.etv,
	fetched_at = EXCLUDED.fetched_at,
	expires_at = EXCLUDED.expires_at`

func (s *PostgresStore) UpsertRankings(ctx context.Context, records []model.RankingRecord) error {
	for _, group := range chunk(records, upsertChunkSize) {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return eris.Wrap(err, "postgres: begin ranking chunk")
		}
		for _, r := range group {
			_, err := tx.Exec(ctx, pgUpsertRanking,
				r.Keyword, r.Domain, r.Position, r.URL, string(r.SerpType),
				r.ETV, r.Location, r.Language, r.FetchedAt.UTC(), r.ExpiresAt.UTC(),
			)
			if err != nil {
				tx.Rollback(ctx)
				return eris.Wrapf(err, "postgres: upsert ranking %q/%q", r.Keyword, r.Domain)
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return eris.Wrap(err, "postgres: commit ranking chunk")
		}
	}
	return nil
}

const pgUpsertDomain = `
INSERT INTO domains (domain, organic_keywords, organic_etv, paid_keywords, paid_etv, backlinks, referring_domains, domain_rank, location, language, fetched_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (domain, location, language) DO UPDATE SET
	organic_keywords  = EXCLUDED.organic_keywords,
	organic_etv       = EXCLUDED.organic_etv,
	paid_keywords     = EXCLUDED.paid_keywords,
	paid_etv          = EXCLUDED.paid_etv,
	backlinks         = EXCLUDED.backlinks,
	referring_domains = EXCLUDED.referring_domains,
	domain_rank       = EXCLUDED.domain_rank,
	fetched_at        = EXCLUDED.fetched_at,
	expires_at        = EXCLUDED.expires_at`

func (s *PostgresStore) UpsertDomain(ctx context.Context, r model.DomainRecord) error {
	_, err := s.pool.Exec(ctx, pgUpsertDomain,
		r.Domain, r.OrganicKeywords, r.OrganicETV, r.PaidKeywords, r.PaidETV,
		r.Backlinks, r.ReferringDomains, r.DomainRank,
		r.Location, r.Language, r.FetchedAt.UTC(), r.ExpiresAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert domain %q", r.Domain)
}

func (s *PostgresStore) Purge(ctx context.Context, table string, f ClearFilter) (int, error) {
	if err := validPurge(table, f); err != nil {
		return 0, err
	}

	query := `DELETE FROM ` + table + ` WHERE 1=1`
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Location != "" {
		query += ` AND location = ` + next(f.Location)
	}
	if f.Language != "" {
		query += ` AND language = ` + next(f.Language)
	}
	if f.Match != "" {
		query += ` AND keyword LIKE '%' || ` + next(f.Match) + ` || '%'`
	}
	if f.ExpiredOnly {
		query += ` AND expires_at <= now()`
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: purge %s", table)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) AppendSearchLog(ctx context.Context, entry model.SearchLogEntry) error {
	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO search_logs (id, tool_name, query_params, result_count, cache_hit, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, entry.ToolName, entry.QueryParams, entry.ResultCount, entry.CacheHit, createdAt.UTC(),
	)
	return eris.Wrap(err, "postgres: append search log")
}

func (s *PostgresStore) KeywordCounts(ctx context.Context) (*KeywordCounts, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN search_volume > 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN expires_at <= now() THEN 1 ELSE 0 END), 0)
		FROM keywords`)
	var c KeywordCounts
	if err := row.Scan(&c.Total, &c.WithVolume, &c.Expired); err != nil {
		return nil, eris.Wrap(err, "postgres: keyword counts")
	}
	c.WithoutVolume = c.Total - c.WithVolume
	return &c, nil
}

func (s *PostgresStore) DistinctLocales(ctx context.Context) ([]string, []string, error) {
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

func (s *PostgresStore) distinctColumn(ctx context.Context, column string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT `+column+` FROM keywords ORDER BY `+column)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: distinct %s", column)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", column)
		}
		values = append(values, v)
	}
	return values, eris.Wrapf(rows.Err(), "postgres: distinct %s iterate", column)
}

func (s *PostgresStore) FetchedRange(ctx context.Context) (*time.Time, *time.Time, error) {
	row := s.pool.QueryRow(ctx, `SELECT MIN(fetched_at), MAX(fetched_at) FROM keywords`)
	var oldest, newest *time.Time
	if err := row.Scan(&oldest, &newest); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, eris.Wrap(err, "postgres: fetched range")
	}
	return oldest, newest, nil
}

func (s *PostgresStore) CountRankings(ctx context.Context) (int, error) {
	return s.countTable(ctx, TableRankings)
}

func (s *PostgresStore) CountDomains(ctx context.Context) (int, error) {
	return s.countTable(ctx, TableDomains)
}

func (s *PostgresStore) countTable(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "postgres: count %s", table)
	}
	return n, nil
}

// helpers

func pgMonthly(m model.MonthlySearches) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal monthly searches")
	}
	return data, nil
}

func competitionValue(c *model.Competition) any {
	if c == nil {
		return nil
	}
	return string(*c)
}

func intentValue(i *model.Intent) any {
	if i == nil {
		return nil
	}
	return string(*i)
}

func scanPgKeyword(rows pgx.Rows) (*model.KeywordRecord, error) {
	var (
		r           model.KeywordRecord
		cpc         *float64
		competition *string
		intent      *string
		difficulty  *int
		monthly     *string
	)
	err := rows.Scan(
		&r.Keyword, &r.Location, &r.Language, &r.SearchVolume,
		&cpc, &competition, &intent, &difficulty, &monthly,
		&r.Source, &r.FetchedAt, &r.ExpiresAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan keyword")
	}

	r.CPC = cpc
	if competition != nil {
		c := model.Competition(*competition)
		r.Competition = &c
	}
	if intent != nil {
		i := model.Intent(*intent)
		r.Intent = &i
	}
	r.KeywordDifficulty = difficulty
	if monthly != nil {
		r.MonthlySearches = model.DecodeMonthly([]byte(*monthly))
	}
	return &r, nil
}

