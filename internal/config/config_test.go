package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 14, cfg.Validity.MaxAgeDays)
	assert.Equal(t, 28, cfg.Validity.BlockAfterDays)
	assert.InDelta(t, 16.0, cfg.Costing.HourlyRate, 0.001)
	assert.Equal(t, "EUR", cfg.Costing.Currency)
	assert.Equal(t, "CAT", cfg.Sourcing.ServiceTag)
	assert.False(t, cfg.Sourcing.PolicyEngineEnabled)
	assert.False(t, cfg.Sourcing.StagedRolloutEnabled)
	assert.Empty(t, cfg.Sourcing.RolloutCategories)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 20.0, cfg.Server.RateLimitRPS, 0.001)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrentRecipes)
	assert.Equal(t, "runs", cfg.Runs.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
validity:
  max_age_days: 7
sourcing:
  policy_engine_enabled: true
  rollout_categories: [produce, dairy]
store:
  driver: postgres
  database_url: postgres://localhost/evochia
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Validity.MaxAgeDays)
	assert.True(t, cfg.Sourcing.PolicyEngineEnabled)
	assert.Equal(t, []string{"produce", "dairy"}, cfg.Sourcing.RolloutCategories)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 28, cfg.Validity.BlockAfterDays)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("EVOCHIA_STORE_DRIVER", "sqlite")
	t.Setenv("EVOCHIA_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("EVOCHIA_SERVER_PORT", "3000")
	t.Setenv("EVOCHIA_VALIDITY_BLOCK_AFTER_DAYS", "35")
	t.Setenv("EVOCHIA_COSTING_HOURLY_RATE", "18.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 35, cfg.Validity.BlockAfterDays)
	assert.InDelta(t, 18.5, cfg.Costing.HourlyRate, 0.001)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("validity: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Validity.MaxAgeDays = 14
	cfg.Validity.BlockAfterDays = 28
	cfg.Costing.HourlyRate = 16
	cfg.Store.Driver = "sqlite"
	cfg.Server.Port = 8080
	cfg.Server.RateLimitRPS = 20
	return cfg
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mode    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults optimize", mode: "optimize"},
		{name: "defaults serve", mode: "serve"},
		{name: "defaults store", mode: "store"},
		{name: "zero max age", mode: "optimize", mutate: func(c *Config) { c.Validity.MaxAgeDays = 0 }, wantErr: "max_age_days must be positive"},
		{name: "inverted thresholds", mode: "cost", mutate: func(c *Config) { c.Validity.BlockAfterDays = 7 }, wantErr: "block_after_days"},
		{name: "negative rate", mode: "cost", mutate: func(c *Config) { c.Costing.HourlyRate = -1 }, wantErr: "hourly_rate"},
		{name: "bad port", mode: "serve", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "postgres without url", mode: "store", mutate: func(c *Config) { c.Store.Driver = "postgres" }, wantErr: "store.database_url is required"},
		{name: "unknown driver", mode: "store", mutate: func(c *Config) { c.Store.Driver = "mysql" }, wantErr: "store.driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validDefaults()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyDefaultsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "defaults.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"phase1_price_validity": {"max_age_days": 15},
		"costing": {"hourly_rate": 18}
	}`), 0644))

	cfg := validDefaults()
	require.NoError(t, ApplyDefaultsFile(cfg, path))
	assert.Equal(t, 15, cfg.Validity.MaxAgeDays)
	assert.Equal(t, 28, cfg.Validity.BlockAfterDays, "absent keys keep their value")
	assert.InDelta(t, 18.0, cfg.Costing.HourlyRate, 0.001)
}

func TestApplyDefaultsFile_Errors(t *testing.T) {
	t.Parallel()

	cfg := validDefaults()
	assert.Error(t, ApplyDefaultsFile(cfg, filepath.Join(t.TempDir(), "missing.json")))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0644))
	assert.Error(t, ApplyDefaultsFile(cfg, bad))
}
