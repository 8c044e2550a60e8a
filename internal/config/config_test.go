package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 6*time.Hour, cfg.StaleAfter)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, DefaultPublicMaxAge, cfg.PublicMaxAge)
	assert.True(t, cfg.AutoRefresh)
	assert.Equal(t, ":8080", cfg.ListenAddr())
	require.NoError(t, cfg.Validate())
}

func TestDefaultConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SYNDICATOR_STALE_AFTER", "90")
	t.Setenv("SYNDICATOR_CACHE_TTL", "15m")
	t.Setenv("SYNDICATOR_AUTO_REFRESH", "false")
	t.Setenv("SYNDICATOR_LOG_LEVEL", "warn")
	t.Setenv("SYNDICATOR_API_KEY", "secret")

	cfg := DefaultConfig()

	assert.Equal(t, 90*time.Minute, cfg.StaleAfter)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.False(t, cfg.AutoRefresh)
	assert.Equal(t, zerolog.WarnLevel, cfg.LogLevel)
	assert.Equal(t, "secret", cfg.APIKey)
}

func TestGetEnvHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("SYNDICATOR_TEST_INT", "abc")
	t.Setenv("SYNDICATOR_TEST_BOOL", "maybe")
	t.Setenv("SYNDICATOR_TEST_DURATION", "soon")

	assert.Equal(t, 7, GetEnvInt("SYNDICATOR_TEST_INT", 7))
	assert.True(t, GetEnvBool("SYNDICATOR_TEST_BOOL", true))
	assert.Equal(t, time.Second, GetEnvDuration("SYNDICATOR_TEST_DURATION", time.Second))
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FetchTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.CacheTTL = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.BlobDir = ""
	assert.Error(t, cfg.Validate())
}
