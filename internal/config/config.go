// Package config loads hawker configuration from a yaml file and
// HAWKER_-prefixed environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Sources SourcesConfig `mapstructure:"sources"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Ranking RankingConfig `mapstructure:"ranking"`
	AI      AIConfig      `mapstructure:"ai"`
	Storage StorageConfig `mapstructure:"storage"`
	Server  ServerConfig  `mapstructure:"server"`
}

// SiteConfig describes one directly scraped storefront: where to search and
// which CSS selectors extract the product cards.
type SiteConfig struct {
	Name      string            `mapstructure:"name"`
	SearchURL string            `mapstructure:"search_url"` // must contain {query}
	Store     string            `mapstructure:"store"`
	Selectors SelectorSet       `mapstructure:"selectors"`
	Headers   map[string]string `mapstructure:"headers"`
}

// SelectorSet holds the per-site CSS selectors. Item is the card selector;
// the rest are resolved relative to each card.
type SelectorSet struct {
	Item    string `mapstructure:"item"`
	Title   string `mapstructure:"title"`
	Price   string `mapstructure:"price"`
	Link    string `mapstructure:"link"`
	Image   string `mapstructure:"image"`
	Rating  string `mapstructure:"rating"`
	Reviews string `mapstructure:"reviews"`
}

// AggregatorConfig configures the third-party shopping-search API.
type AggregatorConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	RedirectHost string `mapstructure:"redirect_host"`
}

// SourcesConfig enables and describes the upstream sources.
type SourcesConfig struct {
	Sites      []SiteConfig     `mapstructure:"sites"`
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
}

// FetchConfig tunes the site-scraper HTTP layer.
type FetchConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRedirects      int           `mapstructure:"max_redirects"`
	Fingerprint       string        `mapstructure:"fingerprint"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Jitter            float64       `mapstructure:"jitter"`
	Proxies           []string      `mapstructure:"proxies"`
}

// RankingConfig carries the hand-tuned ranking constants. The defaults are
// preserved as given, not derived.
type RankingConfig struct {
	RelevanceWeight     float64 `mapstructure:"relevance_weight"`
	ValueWeight         float64 `mapstructure:"value_weight"`
	PenaltyWeight       float64 `mapstructure:"penalty_weight"`
	IrrelevancePenalty  float64 `mapstructure:"irrelevance_penalty"`
	TopN                int     `mapstructure:"top_n"`
	AccessoryPriceFloor float64 `mapstructure:"accessory_price_floor"`
	VerdictCandidates   int     `mapstructure:"verdict_candidates"`
}

// AIConfig configures the external scoring/text-generation provider. An
// empty key means AI stages run in fallback mode.
type AIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects the run-history backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // none, sqlite, postgres, json
	DSN     string `mapstructure:"dsn"`
	Path    string `mapstructure:"path"`
}

// ServerConfig holds serve-mode ports.
type ServerConfig struct {
	Port        int `mapstructure:"port"`
	MetricsPort int `mapstructure:"metrics_port"`
}

// Load reads configuration from an optional yaml file and the environment.
// Missing file is fine; env vars and defaults still apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("hawker")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/hawker")
	}

	v.SetEnvPrefix("HAWKER")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sources.aggregator.enabled", false)
	v.SetDefault("sources.aggregator.base_url", "https://serpapi.com")
	v.SetDefault("sources.aggregator.redirect_host", "serpapi.com")

	v.SetDefault("fetch.timeout", "6s")
	v.SetDefault("fetch.max_redirects", 5)
	v.SetDefault("fetch.fingerprint", "chrome")
	v.SetDefault("fetch.requests_per_second", 0.0)
	v.SetDefault("fetch.jitter", 0.0)

	v.SetDefault("ranking.relevance_weight", 3.0)
	v.SetDefault("ranking.value_weight", 1.0)
	v.SetDefault("ranking.penalty_weight", 5.0)
	v.SetDefault("ranking.irrelevance_penalty", 0.9)
	v.SetDefault("ranking.top_n", 20)
	v.SetDefault("ranking.accessory_price_floor", 1000.0)
	v.SetDefault("ranking.verdict_candidates", 5)

	v.SetDefault("ai.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("ai.model", "gemini-1.5-flash")
	v.SetDefault("ai.timeout", "20s")

	v.SetDefault("storage.backend", "none")
	v.SetDefault("storage.path", "hawker-runs.ndjson")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 9090)
}

func validate(cfg *Config) error {
	for i, site := range cfg.Sources.Sites {
		if site.Name == "" {
			return fmt.Errorf("sources.sites[%d]: name is required", i)
		}
		if site.SearchURL == "" {
			return fmt.Errorf("site %q: search_url is required", site.Name)
		}
		if site.Selectors.Item == "" || site.Selectors.Title == "" || site.Selectors.Price == "" {
			return fmt.Errorf("site %q: selectors item, title and price are required", site.Name)
		}
	}

	if cfg.Sources.Aggregator.Enabled && cfg.Sources.Aggregator.APIKey == "" {
		return fmt.Errorf("aggregator enabled but api_key is empty (set HAWKER_SOURCES_AGGREGATOR_API_KEY)")
	}

	r := cfg.Ranking
	if r.RelevanceWeight < 0 || r.ValueWeight < 0 || r.PenaltyWeight < 0 {
		return fmt.Errorf("ranking weights must be non-negative")
	}
	if r.IrrelevancePenalty < 0 || r.IrrelevancePenalty > 1 {
		return fmt.Errorf("ranking.irrelevance_penalty must be in [0,1], got %v", r.IrrelevancePenalty)
	}
	if r.TopN <= 0 {
		return fmt.Errorf("ranking.top_n must be positive, got %d", r.TopN)
	}

	switch cfg.Storage.Backend {
	case "none", "sqlite", "json":
	case "postgres":
		if cfg.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	return nil
}

// HasSources reports whether at least one upstream source is enabled.
func (c *Config) HasSources() bool {
	return len(c.Sources.Sites) > 0 || c.Sources.Aggregator.Enabled
}
