package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

type Config struct {
	Port string

	// Backend
	GraphQLURL string
	RESTURL    string

	// Auth
	JWTSecret   string
	BearerToken string // used by the CLI only

	// Feed paging
	PostPageSize    int
	CommentPageSize int

	// Downstream calls
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	QueryMaxRetries int

	// Rate limit
	RedisURL  string
	RLEnabled bool
	RLLimit   int
	RLWindow  time.Duration

	SessionCacheSize   int
	CORSAllowedOrigins []string

	// Tracing
	OTELEnabled  bool
	OTLPEndpoint string
}

// fileConfig is the optional TOML overlay. Environment variables win over it.
type fileConfig struct {
	Port    string `toml:"port"`
	Backend struct {
		GraphQLURL      string `toml:"graphql_url"`
		RESTURL         string `toml:"rest_url"`
		ReadTimeout     string `toml:"read_timeout"`
		WriteTimeout    string `toml:"write_timeout"`
		QueryMaxRetries *int   `toml:"query_max_retries"`
	} `toml:"backend"`
	Feed struct {
		PostPageSize    int `toml:"post_page_size"`
		CommentPageSize int `toml:"comment_page_size"`
	} `toml:"feed"`
	RateLimit struct {
		Enabled       *bool  `toml:"enabled"`
		RedisURL      string `toml:"redis_url"`
		Limit         int    `toml:"limit"`
		WindowSeconds int    `toml:"window_seconds"`
	} `toml:"rate_limit"`
	SessionCacheSize int      `toml:"session_cache_size"`
	CORSOrigins      []string `toml:"cors_allowed_origins"`
}

func defaults() *Config {
	return &Config{
		Port:             "8080",
		PostPageSize:     5,
		CommentPageSize:  10,
		ReadTimeout:      2 * time.Second,
		WriteTimeout:     5 * time.Second,
		QueryMaxRetries:  2,
		RLEnabled:        true,
		RLLimit:          60,
		RLWindow:         time.Minute,
		SessionCacheSize: 1024,
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := getEnv("FEED_CONFIG_FILE", ""); path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("HTTP_PORT", cfg.Port)
	cfg.GraphQLURL = getEnv("BACKEND_GRAPHQL_URL", cfg.GraphQLURL)
	cfg.RESTURL = strings.TrimSuffix(getEnv("BACKEND_REST_URL", cfg.RESTURL), "/")
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.BearerToken = getEnv("FEED_BEARER_TOKEN", cfg.BearerToken)

	cfg.PostPageSize = getInt("FEED_POST_PAGE_SIZE", cfg.PostPageSize)
	cfg.CommentPageSize = getInt("FEED_COMMENT_PAGE_SIZE", cfg.CommentPageSize)

	cfg.ReadTimeout = getDuration("DOWNSTREAM_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getDuration("DOWNSTREAM_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.QueryMaxRetries = getInt("QUERY_MAX_RETRIES", cfg.QueryMaxRetries)

	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.RLEnabled = getBool("RL_ENABLED", cfg.RLEnabled)
	cfg.RLLimit = getInt("RL_REQUESTS_LIMIT", cfg.RLLimit)
	cfg.RLWindow = time.Duration(getInt("RL_WINDOW_SECONDS", int(cfg.RLWindow.Seconds()))) * time.Second

	cfg.SessionCacheSize = getInt("SESSION_CACHE_SIZE", cfg.SessionCacheSize)
	cfg.CORSAllowedOrigins = getList("CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins)

	cfg.OTELEnabled = getBool("OTEL_ENABLED", false)
	cfg.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlay(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}

	c.Port = firstNonEmpty(fc.Port, c.Port)
	c.GraphQLURL = firstNonEmpty(fc.Backend.GraphQLURL, c.GraphQLURL)
	c.RESTURL = firstNonEmpty(fc.Backend.RESTURL, c.RESTURL)
	for _, t := range []struct {
		raw string
		dst *time.Duration
	}{
		{fc.Backend.ReadTimeout, &c.ReadTimeout},
		{fc.Backend.WriteTimeout, &c.WriteTimeout},
	} {
		if t.raw == "" {
			continue
		}
		d, err := time.ParseDuration(t.raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q in %s: %w", t.raw, path, err)
		}
		*t.dst = d
	}
	if fc.Backend.QueryMaxRetries != nil {
		c.QueryMaxRetries = *fc.Backend.QueryMaxRetries
	}

	if fc.Feed.PostPageSize != 0 {
		c.PostPageSize = fc.Feed.PostPageSize
	}
	if fc.Feed.CommentPageSize != 0 {
		c.CommentPageSize = fc.Feed.CommentPageSize
	}

	if fc.RateLimit.Enabled != nil {
		c.RLEnabled = *fc.RateLimit.Enabled
	}
	c.RedisURL = firstNonEmpty(fc.RateLimit.RedisURL, c.RedisURL)
	if fc.RateLimit.Limit > 0 {
		c.RLLimit = fc.RateLimit.Limit
	}
	if fc.RateLimit.WindowSeconds > 0 {
		c.RLWindow = time.Duration(fc.RateLimit.WindowSeconds) * time.Second
	}

	if fc.SessionCacheSize > 0 {
		c.SessionCacheSize = fc.SessionCacheSize
	}
	if len(fc.CORSOrigins) > 0 {
		c.CORSAllowedOrigins = fc.CORSOrigins
	}
	return nil
}

func (c *Config) validate() error {
	if c.GraphQLURL == "" {
		return fmt.Errorf("missing BACKEND_GRAPHQL_URL")
	}
	if c.RESTURL == "" {
		return fmt.Errorf("missing BACKEND_REST_URL")
	}
	if c.PostPageSize <= 0 || c.CommentPageSize <= 0 {
		return fmt.Errorf("page sizes must be positive (posts=%d, comments=%d)", c.PostPageSize, c.CommentPageSize)
	}
	if c.QueryMaxRetries < 0 {
		return fmt.Errorf("QUERY_MAX_RETRIES must not be negative")
	}
	if c.SessionCacheSize <= 0 {
		return fmt.Errorf("SESSION_CACHE_SIZE must be positive")
	}
	if c.RLEnabled && (c.RLLimit <= 0 || c.RLWindow <= 0) {
		return fmt.Errorf("rate limit needs a positive RL_REQUESTS_LIMIT and RL_WINDOW_SECONDS")
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		// prefer failing fast over silent misconfig
		panic(fmt.Errorf("invalid boolean env %s=%q", k, v))
	}
}

func getDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// getList splits a comma separated value, dropping blanks.
func getList(k string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return lo.Compact(lo.Map(strings.Split(v, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}
