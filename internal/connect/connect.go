// Package connect turns configuration into a connected document store
package connect

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/conduit-lang/docmodel/internal/config"
	"github.com/conduit-lang/docmodel/internal/metrics"
	"github.com/conduit-lang/docmodel/internal/odm/driver"
	"github.com/conduit-lang/docmodel/internal/odm/driver/memory"
	"github.com/conduit-lang/docmodel/internal/odm/driver/redisstore"
	"github.com/conduit-lang/docmodel/internal/odm/driver/sqlstore"
	"github.com/conduit-lang/docmodel/internal/odm/model"
	"github.com/conduit-lang/docmodel/internal/odm/schema"
)

// NewDriver builds the driver selected by cfg.Store.Kind without connecting it
func NewDriver(cfg *config.Config) (driver.Driver, error) {
	switch cfg.Store.Kind {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreRedis:
		return redisstore.New(redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}), nil
	case config.StoreSQL:
		return sqlstore.New(sqlstore.Config{
			DriverName:  cfg.Store.SQLDriver,
			DSN:         cfg.Store.URL,
			TablePrefix: cfg.Store.TablePrefix,
		})
	default:
		return nil, fmt.Errorf("unsupported store kind: %s", cfg.Store.Kind)
	}
}

// Options carries the collaborators of a Connection
type Options struct {
	Logger   *zap.Logger
	Registry *schema.Registry
	// Registerer receives the operation metrics when cfg.Metrics.Enabled is set
	Registerer prometheus.Registerer
}

// Open builds and connects the configured driver and wraps it in a Connection
func Open(ctx context.Context, cfg *config.Config, opts Options) (*model.Connection, error) {
	drv, err := NewDriver(cfg)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	modelOpts := []model.Option{
		model.WithLogger(logger),
		model.WithRegistry(opts.Registry),
	}
	if cfg.Metrics.Enabled {
		modelOpts = append(modelOpts, model.WithMetrics(metrics.New(opts.Registerer)))
	}

	conn, err := model.Connect(ctx, drv, modelOpts...)
	if err != nil {
		return nil, err
	}
	logger.Debug("store connected", zap.String("kind", cfg.Store.Kind))
	return conn, nil
}
