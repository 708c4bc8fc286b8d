// Package config loads service configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config carries every tunable of the service. All fields have working
// defaults so a bare `server` starts against local disk only.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	CacheDir   string `env:"CACHE_DIR" envDefault:"./image-cache"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	// Outbound fetch limits.
	FetchMaxBytes  int64   `env:"FETCH_MAX_BYTES" envDefault:"15728640"`
	FetchRate      float64 `env:"FETCH_RATE" envDefault:"10"`
	FetchBurst     int     `env:"FETCH_BURST" envDefault:"5"`
	FetchTimeoutMs int     `env:"FETCH_TIMEOUT_MS" envDefault:"30000"`

	// Hot in-memory cache of variant bytes.
	MemCacheMaxBytes int64 `env:"MEMCACHE_MAX_BYTES" envDefault:"104857600"`

	// Optional S3 mirror of materialized files.
	MirrorEnabled bool   `env:"MIRROR_ENABLED" envDefault:"false"`
	MirrorBucket  string `env:"MIRROR_BUCKET" envDefault:"image-cache"`
	S3Endpoint    string `env:"S3_ENDPOINT" envDefault:"localhost:9000"`
	S3AccessKey   string `env:"S3_ACCESS_KEY" envDefault:"minioadmin"`
	S3SecretKey   string `env:"S3_SECRET_KEY" envDefault:"minioadmin"`
	S3UseSSL      bool   `env:"S3_USE_SSL" envDefault:"false"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
