package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inTempDir(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() { _ = os.Chdir(oldWd) })
	return tmpDir
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store.Kind)
	assert.Equal(t, "sqlite3", cfg.Store.SQLDriver)
	assert.Equal(t, "docmodel.db", cfg.Store.URL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "docmodel:", cfg.Redis.Prefix)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Development)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadWithConfigFile(t *testing.T) {
	inTempDir(t)

	configContent := `
store:
  kind: sql
  url: postgres://localhost/docs
  sql_driver: pgx
  table_prefix: dm_
redis:
  addr: cache:6380
  db: 2
log:
  level: debug
  development: true
metrics:
  enabled: true
`
	require.NoError(t, os.WriteFile("docmodel.yml", []byte(configContent), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, StoreSQL, cfg.Store.Kind)
	assert.Equal(t, "postgres://localhost/docs", cfg.Store.URL)
	assert.Equal(t, "pgx", cfg.Store.SQLDriver)
	assert.Equal(t, "dm_", cfg.Store.TablePrefix)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "docmodel:", cfg.Redis.Prefix, "unset keys keep their defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadExplicitPath(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  kind: redis\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.Store.Kind)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")
}

func TestEnvironmentOverrides(t *testing.T) {
	inTempDir(t)
	require.NoError(t, os.WriteFile("docmodel.yml", []byte("store:\n  kind: sql\n"), 0o644))

	t.Setenv("DOCMODEL_STORE_KIND", "redis")
	t.Setenv("DOCMODEL_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("DOCMODEL_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.Store.Kind)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		return Config{
			Store: StoreConfig{Kind: StoreSQL, URL: "x.db", SQLDriver: "sqlite3"},
			Log:   LogConfig{Level: "info"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown store", func(c *Config) { c.Store.Kind = "mongo" }, "store.kind"},
		{"unknown sql driver", func(c *Config) { c.Store.SQLDriver = "mysql" }, "store.sql_driver"},
		{"missing url", func(c *Config) { c.Store.URL = "" }, "store.url"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"negative db", func(c *Config) { c.Redis.DB = -1 }, "redis.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := validateConfig(&cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
