package connect

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/docmodel/internal/config"
	"github.com/conduit-lang/docmodel/internal/fixtures"
	"github.com/conduit-lang/docmodel/internal/odm/driver"
	"github.com/conduit-lang/docmodel/internal/odm/driver/memory"
	"github.com/conduit-lang/docmodel/internal/odm/driver/redisstore"
	"github.com/conduit-lang/docmodel/internal/odm/driver/sqlstore"
)

func baseConfig() *config.Config {
	return &config.Config{
		Store: config.StoreConfig{Kind: config.StoreMemory, SQLDriver: "sqlite3"},
		Redis: config.RedisConfig{Prefix: "test:"},
		Log:   config.LogConfig{Level: "info"},
	}
}

func TestNewDriver(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   driver.Driver
	}{
		{"memory", func(*config.Config) {}, &memory.Driver{}},
		{"redis", func(c *config.Config) { c.Store.Kind = config.StoreRedis }, &redisstore.Driver{}},
		{"sql", func(c *config.Config) { c.Store.Kind = config.StoreSQL; c.Store.URL = "x.db" }, &sqlstore.Driver{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)
			drv, err := NewDriver(cfg)
			require.NoError(t, err)
			assert.IsType(t, tt.want, drv)
		})
	}

	cfg := baseConfig()
	cfg.Store.Kind = "mongo"
	_, err := NewDriver(cfg)
	assert.Error(t, err)
}

// roundTrip creates and searches IndexWeights documents through the configured store
func roundTrip(t *testing.T, cfg *config.Config) {
	t.Helper()
	ctx := context.Background()
	reg := prometheus.NewRegistry()

	conn, err := Open(ctx, cfg, Options{Registry: fixtures.Registry(), Registerer: reg})
	require.NoError(t, err)
	defer conn.Close(ctx)

	m, err := conn.Model(ctx, fixtures.IndexWeights)
	require.NoError(t, err)
	for _, fields := range fixtures.Seed[fixtures.IndexWeights.Name()] {
		_, err := m.Create(ctx, fields)
		require.NoError(t, err)
	}

	found, err := m.Find(ctx, driver.Filter{"$text": driver.Filter{"$search": "mongoose -js"}})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "TypeScript Module for Mongoose", found[0].Get("about"))
	assert.Equal(t, []string{"typegoose", "ts", "nodejs", "mongoose"}, found[0].Get("keywords"))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Equal(t, cfg.Metrics.Enabled, len(families) > 0)
}

func TestOpenMemory(t *testing.T) {
	cfg := baseConfig()
	cfg.Metrics.Enabled = true
	roundTrip(t, cfg)
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.Store.Kind = config.StoreRedis
	cfg.Redis.Addr = mr.Addr()
	roundTrip(t, cfg)
}

func TestOpenSQLite(t *testing.T) {
	cfg := baseConfig()
	cfg.Store.Kind = config.StoreSQL
	cfg.Store.URL = filepath.Join(t.TempDir(), "docs.db")
	cfg.Store.TablePrefix = "dm_"
	roundTrip(t, cfg)
}

func TestOpenConnectFailure(t *testing.T) {
	cfg := baseConfig()
	cfg.Store.Kind = config.StoreRedis
	cfg.Redis.Addr = "127.0.0.1:1"
	_, err := Open(context.Background(), cfg, Options{})
	assert.Error(t, err)
}
