package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	// File paths
	FeedsCSVPath string
	DBPath       string
	BlobDir      string

	// Server settings
	ServerHost   string
	ServerPort   int
	APIKey       string
	PublicMaxAge int

	// Sync settings
	WorkerCount     int
	Interval        time.Duration
	StaleAfter      time.Duration
	FetchTimeout    time.Duration
	OriginUserAgent string
	AutoRefresh     bool

	// Derived cache settings
	CacheTTL time.Duration

	// Log settings
	LogLevel zerolog.Level
}

// LoadDotEnv reads .env and .env.local into the process environment.
// Missing files are ignored; variables already set are not overridden.
func LoadDotEnv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// DefaultConfig returns an initial configuration with hardcoded defaults,
// overridden by SYNDICATOR_* environment variables where present.
func DefaultConfig() *Config {
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		FeedsCSVPath:    DefaultFeedsCSVPath,
		DBPath:          DefaultDBPath,
		BlobDir:         DefaultBlobDir,
		ServerHost:      DefaultServerHost,
		ServerPort:      DefaultServerPort,
		APIKey:          GetEnvString("SYNDICATOR_API_KEY", ""),
		PublicMaxAge:    GetEnvInt("SYNDICATOR_PUBLIC_MAX_AGE", DefaultPublicMaxAge),
		WorkerCount:     DefaultWorkerCount,
		Interval:        time.Duration(DefaultInterval) * time.Minute,
		StaleAfter:      GetEnvDuration("SYNDICATOR_STALE_AFTER", mustDuration(DefaultStaleAfter)),
		FetchTimeout:    GetEnvDuration("SYNDICATOR_FETCH_TIMEOUT", mustDuration(DefaultFetchTimeout)),
		OriginUserAgent: GetEnvString("SYNDICATOR_USER_AGENT", DefaultOriginUserAgent),
		AutoRefresh:     GetEnvBool("SYNDICATOR_AUTO_REFRESH", DefaultAutoRefresh),
		CacheTTL:        GetEnvDuration("SYNDICATOR_CACHE_TTL", mustDuration(DefaultCacheTTL)),
		LogLevel:        GetEnvLogLevel("SYNDICATOR_LOG_LEVEL", logLevel),
	}
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// Validate rejects settings the sync pipeline cannot run with.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.BlobDir == "" {
		return fmt.Errorf("blob directory must not be empty")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s", c.FetchTimeout)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", c.CacheTTL)
	}
	if c.StaleAfter < 0 {
		return fmt.Errorf("stale-after window must not be negative, got %s", c.StaleAfter)
	}
	return nil
}

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("config: invalid default duration %q: %v", s, err))
	}
	return d
}
