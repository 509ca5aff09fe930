package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	DataForSEO DataForSEOConfig `yaml:"dataforseo" mapstructure:"dataforseo"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
}

// DataForSEOConfig holds upstream API credentials and limits.
type DataForSEOConfig struct {
	Login     string  `yaml:"login" mapstructure:"login"`
	Password  string  `yaml:"password" mapstructure:"password"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// CacheConfig overrides the per-table TTLs, in hours.
type CacheConfig struct {
	KeywordTTLHours  int `yaml:"keyword_ttl_hours" mapstructure:"keyword_ttl_hours"`
	RankingTTLHours  int `yaml:"ranking_ttl_hours" mapstructure:"ranking_ttl_hours"`
	OverviewTTLHours int `yaml:"overview_ttl_hours" mapstructure:"overview_ttl_hours"`
}

// ServerConfig configures the tool server.
type ServerConfig struct {
	Port         int    `yaml:"port" mapstructure:"port"`
	SharedSecret string `yaml:"shared_secret" mapstructure:"shared_secret"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the fields required for the given run mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.DataForSEO.Login == "" {
			problems = append(problems, "dataforseo.login is required")
		}
		if c.DataForSEO.Password == "" {
			problems = append(problems, "dataforseo.password is required")
		}
	case "migrate", "cache":
		// Store checks above are sufficient.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// TTL converts the configured cache TTL hours to durations, falling back to
// the given defaults for unset values.
func (c CacheConfig) TTL(keyword, ranking, overview time.Duration) (time.Duration, time.Duration, time.Duration) {
	if c.KeywordTTLHours > 0 {
		keyword = time.Duration(c.KeywordTTLHours) * time.Hour
	}
	if c.RankingTTLHours > 0 {
		ranking = time.Duration(c.RankingTTLHours) * time.Hour
	}
	if c.OverviewTTLHours > 0 {
		overview = time.Duration(c.OverviewTTLHours) * time.Hour
	}
	return keyword, ranking, overview
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DATAFORSEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "dataforseo-cache.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("dataforseo.base_url", "https://api.dataforseo.com")
	v.SetDefault("dataforseo.rate_limit", 5)
	v.SetDefault("cache.keyword_ttl_hours", 30*24)
	v.SetDefault("cache.ranking_ttl_hours", 7*24)
	v.SetDefault("cache.overview_ttl_hours", 7*24)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
