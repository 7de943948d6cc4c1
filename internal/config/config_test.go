package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return &cfg
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig(t)

	assert.InDelta(t, 0.6, cfg.Engine.EscalationThreshold, 1e-9)
	assert.Equal(t, 3, cfg.Engine.MaxCorrectionAttempts)
	assert.Equal(t, 3, cfg.Engine.MaxUploadAttempts)
	assert.Equal(t, time.Hour, cfg.Checkpoint.StalenessWindow)
	assert.Equal(t, "memory", cfg.Checkpoint.Backend)
	assert.Equal(t, 30*time.Second, cfg.Browser.UploadTimeout)
	assert.True(t, cfg.Humanoid.Enabled)
	assert.False(t, cfg.Assist.Enabled)
	assert.Equal(t, "-", cfg.Results.Path)

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	t.Run("threshold outside the unit interval", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Engine.EscalationThreshold = 1.2
		assert.Error(t, cfg.Validate())
	})

	t.Run("correction attempts must be positive", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Engine.MaxCorrectionAttempts = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown checkpoint backend", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Checkpoint.Backend = "redis"
		assert.Error(t, cfg.Validate())
	})

	t.Run("postgres backend requires a dsn", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Checkpoint.Backend = "postgres"
		assert.Error(t, cfg.Validate())

		cfg.Checkpoint.DSN = "postgres://merlin@localhost/merlin"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("enabled assistance requires an endpoint", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Assist.Enabled = true
		assert.Error(t, cfg.Validate())

		cfg.Assist.Endpoint = "https://assist.internal/answer"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("staleness window must be positive", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Checkpoint.StalenessWindow = 0
		assert.Error(t, cfg.Validate())
	})
}
