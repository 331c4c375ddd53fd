package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://www.coingecko.com", cfg.Scrape.BaseURL)
	assert.Equal(t, 150, cfg.Scrape.Count)
	assert.Equal(t, 100, cfg.Scrape.CoinsPerPage)
	assert.Equal(t, 10, cfg.Scrape.MaxPages)
	assert.Equal(t, 5, cfg.Scrape.BatchSize)
	assert.Equal(t, 20, cfg.Scrape.TableTimeoutSecs)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "https://api.coingecko.com/api/v3", cfg.Prices.BaseURL)
	assert.Equal(t, 10, cfg.Prices.IntervalMins)
	assert.Equal(t, 60, cfg.Prices.CooldownSecs)
	assert.Equal(t, "Data", cfg.Data.Dir)
	assert.Equal(t, "Data/Debug", cfg.Data.DebugDir)
	assert.Equal(t, "Data/Logo", cfg.Data.LogoDir)
	assert.Equal(t, "logos", cfg.Supabase.LogoBucket)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
scrape:
  count: 50
  batch_size: 3
browser:
  headless: false
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Scrape.Count)
	assert.Equal(t, 3, cfg.Scrape.BatchSize)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 100, cfg.Scrape.CoinsPerPage)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
scrape:
  count: 50
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("COINWATCH_SCRAPE_COUNT", "25")
	t.Setenv("COINWATCH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, 25, cfg.Scrape.Count)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadSocialCredentialsFromEnv(t *testing.T) {
	chTempDir(t)

	t.Setenv("COINWATCH_SOCIAL_USERNAME", "watcher")
	t.Setenv("COINWATCH_SOCIAL_PASSWORD", "hunter2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "watcher", cfg.Social.Username)
	assert.Equal(t, "hunter2", cfg.Social.Password)
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Data: DataConfig{
		Dir:      filepath.Join(dir, "Data"),
		DebugDir: filepath.Join(dir, "Data", "Debug"),
		LogoDir:  filepath.Join(dir, "Data", "Logo"),
	}}

	require.NoError(t, EnsureDirs(cfg))
	assert.DirExists(t, filepath.Join(dir, "Data", "Debug"))
	assert.DirExists(t, filepath.Join(dir, "Data", "Logo"))

	// Second call is a no-op.
	require.NoError(t, EnsureDirs(cfg))
}

func TestValidateScrape(t *testing.T) {
	cfg := &Config{}
	cfg.Scrape.BaseURL = "https://www.coingecko.com"
	cfg.Scrape.Count = 150
	cfg.Scrape.BatchSize = 5
	assert.NoError(t, cfg.Validate("scrape"))

	cfg.Scrape.BatchSize = 0
	err := cfg.Validate("scrape")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_size must be between 1 and 20")

	cfg.Scrape.BatchSize = 5
	cfg.Scrape.Count = 0
	err = cfg.Validate("scrape")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scrape.count must be > 0")
}

func TestValidateSync(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate("sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "supabase.database_url is required")
	assert.Contains(t, err.Error(), "supabase.service_key is required")

	cfg.Supabase.DatabaseURL = "postgres://localhost/coinwatch"
	cfg.Supabase.ProjectURL = "https://proj.supabase.co"
	cfg.Supabase.ServiceKey = "key"
	assert.NoError(t, cfg.Validate("sync"))
}

func TestValidateServe(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 8080
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
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
