package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dataforseo-mcp/internal/cache"
	"github.com/sells-group/dataforseo-mcp/internal/dispatch"
	"github.com/sells-group/dataforseo-mcp/internal/store"
	"github.com/sells-group/dataforseo-mcp/internal/tools"
	"github.com/sells-group/dataforseo-mcp/pkg/dataforseo"
)

// serverEnv holds the initialized store, cache, API client, and tool
// registry needed by the serve command.
type serverEnv struct {
	Store    store.Store
	Cache    *cache.Service
	Registry *tools.Registry
}

// Close releases resources held by the environment.
func (e *serverEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "dataforseo-cache.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: int32(cfg.Store.MaxConns),
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initCache builds the cache service over a migrated store, applying any
// configured TTL overrides.
func initCache(ctx context.Context) (store.Store, *cache.Service, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, nil, eris.Wrap(err, "migrate store")
	}

	defaults := cache.DefaultTTLPolicy()
	kw, rk, ov := cfg.Cache.TTL(defaults.KeywordData, defaults.Rankings, defaults.DomainOverview)
	svc := cache.New(st, cache.TTLPolicy{
		KeywordData:    kw,
		Rankings:       rk,
		DomainOverview: ov,
	})
	return st, svc, nil
}

// initEnv sets up the store, cache, DataForSEO client, and registers all
// tools. Callers should defer env.Close().
func initEnv(ctx context.Context) (*serverEnv, error) {
	if err := cfg.Validate("serve"); err != nil {
		return nil, err
	}

	st, svc, err := initCache(ctx)
	if err != nil {
		return nil, err
	}

	api := dataforseo.NewClient(cfg.DataForSEO.Login, cfg.DataForSEO.Password,
		dataforseo.WithBaseURL(cfg.DataForSEO.BaseURL),
		dataforseo.WithRateLimit(cfg.DataForSEO.RateLimit, 5),
	)
	d := dispatch.New(svc)

	reg := tools.NewRegistry()
	for _, h := range []tools.Handler{
		tools.NewSearchVolumeTool(d, api),
		tools.NewKeywordSuggestionsTool(d, api),
		tools.NewRankedKeywordsTool(d, api),
		tools.NewDomainOverviewTool(d, api),
		tools.NewCacheSearchTool(svc),
		tools.NewCacheStatsTool(svc),
		tools.NewCacheExportTool(svc),
		tools.NewCacheClearTool(svc),
	} {
		if err := reg.Register(h); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "register tools")
		}
	}

	return &serverEnv{Store: st, Cache: svc, Registry: reg}, nil
}
