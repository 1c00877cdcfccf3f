package config

import (
	"lyrifind-api/logcolors"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

var conf = mustLoad()

type Config struct {
	Port string `envconfig:"PORT" default:"8080"`

	Upstream struct {
		BaseURL     string `envconfig:"LRCLIB_BASE_URL" default:"https://lrclib.net/api"`
		UserAgent   string `envconfig:"LRCLIB_USER_AGENT" default:"LyriFind/1.0"`
		TimeoutSecs int    `envconfig:"UPSTREAM_TIMEOUT_SECS" default:"15"`
	}

	Configuration struct {
		RateLimitPerSecond                 int      `envconfig:"RATE_LIMIT_PER_SECOND" default:"2"`
		RateLimitBurstLimit                int      `envconfig:"RATE_LIMIT_BURST_LIMIT" default:"5"`
		RateLimitIdleSecs                  int      `envconfig:"RATE_LIMIT_IDLE_SECS" default:"600"` // Drop per-IP limiters idle this long
		CacheDBPath                        string   `envconfig:"CACHE_DB_PATH" default:"./data/lyrifind.db"`
		StatsDBPath                        string   `envconfig:"STATS_DB_PATH" default:"./data/stats.db"`
		StatsAutoSaveIntervalSecs          int      `envconfig:"STATS_AUTO_SAVE_INTERVAL_SECS" default:"300"`
		SearchCacheTTLInSeconds            int      `envconfig:"SEARCH_CACHE_TTL_IN_SECONDS" default:"3600"`
		LyricsCacheTTLInSeconds            int      `envconfig:"LYRICS_CACHE_TTL_IN_SECONDS" default:"86400"`
		NegativeCacheTTLInSeconds          int      `envconfig:"NEGATIVE_CACHE_TTL_IN_SECONDS" default:"21600"` // TTL for remembering "track not found"
		CacheInvalidationIntervalInSeconds int      `envconfig:"CACHE_INVALIDATION_INTERVAL_IN_SECONDS" default:"3600"`
		CircuitBreakerThreshold            int      `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`     // Consecutive failures before circuit opens
		CircuitBreakerCooldownSecs         int      `envconfig:"CIRCUIT_BREAKER_COOLDOWN_SECS" default:"60"` // Seconds to wait before retrying
		AllowedOrigins                     []string `envconfig:"ALLOWED_ORIGINS" default:"*"`
	}

	FeatureFlags struct {
		CacheCompression bool `envconfig:"FF_CACHE_COMPRESSION" default:"true"`
		UpstreamCache    bool `envconfig:"FF_UPSTREAM_CACHE" default:"true"`
	}
}

// UpstreamTimeout is the LRCLIB request timeout.
func (c Config) UpstreamTimeout() time.Duration {
	return seconds(c.Upstream.TimeoutSecs)
}

// SearchCacheTTL is how long a search response stays cached.
func (c Config) SearchCacheTTL() time.Duration {
	return seconds(c.Configuration.SearchCacheTTLInSeconds)
}

// LyricsCacheTTL is how long a track record stays cached.
func (c Config) LyricsCacheTTL() time.Duration {
	return seconds(c.Configuration.LyricsCacheTTLInSeconds)
}

// NegativeCacheTTL is how long a not-found lookup is remembered.
func (c Config) NegativeCacheTTL() time.Duration {
	return seconds(c.Configuration.NegativeCacheTTLInSeconds)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// load loads the configuration from the environment.
func load() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Debugf("%s No .env file loaded: %v", logcolors.LogConfig, err)
	}

	cfg := Config{}
	err = envconfig.Process("", &cfg)
	return cfg, err
}

func mustLoad() Config {
	c, err := load()
	if err != nil {
		log.WithError(err).Warnf("%s Unable to load configuration", logcolors.LogConfig)
	}

	return c
}

func Get() Config {
	return conf
}
