// Package redisstore keeps collections in Redis. Each collection is a hash of
// JSON-encoded records, a sorted set holding insertion order, and a key with
// its index models. Writes run in WATCH transactions so unique checks and the
// write are atomic.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/conduit-lang/docmodel/internal/odm/driver"
	"github.com/conduit-lang/docmodel/internal/odm/driver/match"
)

// maxTxRetries bounds optimistic transaction retries
const maxTxRetries = 16

// ErrTxConflict is returned when a write keeps losing WATCH races
var ErrTxConflict = errors.New("redis transaction conflict")

// Config holds Redis connection settings
type Config struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Prefix is prepended to every key
	Prefix string
}

// DefaultConfig returns a default Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:   "localhost:6379",
		Prefix: "docmodel:",
	}
}

// Driver is a Redis-backed driver.Driver
type Driver struct {
	client *redis.Client
	prefix string

	mu        sync.RWMutex
	connected bool
}

// New creates a driver with its own client
func New(config Config) *Driver {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return NewWithClient(client, config.Prefix)
}

// NewWithClient creates a driver over an existing client
func NewWithClient(client *redis.Client, prefix string) *Driver {
	return &Driver{client: client, prefix: prefix}
}

// Connect pings the server
func (d *Driver) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := d.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	d.mu.Lock()
	d.connected = true
	d.mu.Unlock()
	return nil
}

// Disconnect closes the client
func (d *Driver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return nil
	}
	d.connected = false
	return d.client.Close()
}

func (d *Driver) isConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// Collection returns a handle for the named collection
func (d *Driver) Collection(name string) driver.Collection {
	base := d.prefix + name
	return &Collection{
		name:       name,
		driver:     d,
		docsKey:    base + ":docs",
		orderKey:   base + ":order",
		seqKey:     base + ":seq",
		indexesKey: base + ":indexes",
	}
}

// Collection is a Redis-backed driver.Collection
type Collection struct {
	name       string
	driver     *Driver
	docsKey    string
	orderKey   string
	seqKey     string
	indexesKey string
}

// Name returns the collection name
func (c *Collection) Name() string { return c.name }

func (c *Collection) client() (*redis.Client, error) {
	if !c.driver.isConnected() {
		return nil, driver.ErrNotConnected
	}
	return c.driver.client, nil
}

func (c *Collection) keys() []string {
	return []string{c.docsKey, c.orderKey, c.indexesKey}
}

// idField renders a record identifier as a hash field
func idField(id interface{}) string {
	if s, ok := id.(string); ok {
		return s
	}
	return fmt.Sprint(id)
}

// snapshot is the state of a collection read inside a transaction
type snapshot struct {
	ids     []string
	records []map[string]interface{}
	indexes []driver.IndexModel
}

// reader is the read surface shared by *redis.Client and *redis.Tx
type reader interface {
	ZRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	HMGet(ctx context.Context, key string, fields ...string) *redis.SliceCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// load reads records in insertion order plus index models
func (c *Collection) load(ctx context.Context, cmd reader) (*snapshot, error) {
	ids, err := cmd.ZRange(ctx, c.orderKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read order: %w", err)
	}
	snap := &snapshot{ids: ids}

	if len(ids) > 0 {
		raw, err := cmd.HMGet(ctx, c.docsKey, ids...).Result()
		if err != nil {
			return nil, fmt.Errorf("read records: %w", err)
		}
		snap.records = make([]map[string]interface{}, 0, len(raw))
		kept := ids[:0]
		for i, item := range raw {
			s, ok := item.(string)
			if !ok {
				continue
			}
			var record map[string]interface{}
			if err := json.Unmarshal([]byte(s), &record); err != nil {
				return nil, fmt.Errorf("decode record %s: %w", ids[i], err)
			}
			snap.records = append(snap.records, record)
			kept = append(kept, ids[i])
		}
		snap.ids = kept
	}

	data, err := cmd.Get(ctx, c.indexesKey).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, fmt.Errorf("read indexes: %w", err)
	default:
		if err := json.Unmarshal(data, &snap.indexes); err != nil {
			return nil, fmt.Errorf("decode indexes: %w", err)
		}
	}
	return snap, nil
}

// transact runs fn under WATCH, retrying when another client wins the race
func (c *Collection) transact(ctx context.Context, fn func(tx *redis.Tx) error) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = client.Watch(ctx, fn, c.keys()...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("%w: %s", ErrTxConflict, c.name)
}

func encode(record map[string]interface{}) (string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	return string(data), nil
}

// EnsureIndexes stores index models, replacing any with the same name
func (c *Collection) EnsureIndexes(ctx context.Context, models []driver.IndexModel) error {
	return c.transact(ctx, func(tx *redis.Tx) error {
		snap, err := c.load(ctx, tx)
		if err != nil {
			return err
		}
		merged := append([]driver.IndexModel(nil), snap.indexes...)
		for _, model := range models {
			replaced := false
			for i := range merged {
				if merged[i].Name == model.Name {
					merged[i] = model
					replaced = true
					break
				}
			}
			if !replaced {
				merged = append(merged, model)
			}
		}
		for i, record := range snap.records {
			keysOnly := match.Project(record, []string{driver.IDKey})
			if err := match.CheckUnique(keysOnly, snap.records[:i], merged); err != nil {
				return err
			}
		}
		data, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encode indexes: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.indexesKey, data, 0)
			return nil
		})
		return err
	})
}

// InsertOne stores a record
func (c *Collection) InsertOne(ctx context.Context, record driver.Record) error {
	id, ok := record[driver.IDKey]
	if !ok {
		return fmt.Errorf("%w: record has no %s", driver.ErrBadFilter, driver.IDKey)
	}
	encoded, err := encode(record)
	if err != nil {
		return err
	}
	field := idField(id)

	return c.transact(ctx, func(tx *redis.Tx) error {
		snap, err := c.load(ctx, tx)
		if err != nil {
			return err
		}
		if err := match.CheckUnique(record, snap.records, snap.indexes); err != nil {
			return err
		}
		seq, err := tx.Incr(ctx, c.seqKey).Result()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, c.docsKey, field, encoded)
			pipe.ZAdd(ctx, c.orderKey, redis.Z{Score: float64(seq), Member: field})
			return nil
		})
		return err
	})
}

// Find loads the collection and evaluates the query with the match engine
func (c *Collection) Find(ctx context.Context, filter driver.Filter, opts driver.FindOptions) ([]driver.Result, error) {
	client, err := c.client()
	if err != nil {
		return nil, err
	}
	snap, err := c.load(ctx, client)
	if err != nil {
		return nil, err
	}
	return match.Query(snap.records, filter, opts, snap.indexes)
}

// UpdateOne updates the first matching record in insertion order
func (c *Collection) UpdateOne(ctx context.Context, filter driver.Filter, update driver.Update) (int64, error) {
	var matched int64
	err := c.transact(ctx, func(tx *redis.Tx) error {
		matched = 0
		snap, err := c.load(ctx, tx)
		if err != nil {
			return err
		}
		positions, _, err := match.Select(snap.records, filter, snap.indexes)
		if err != nil || len(positions) == 0 {
			return err
		}
		i := positions[0]
		updated, err := match.ApplyUpdate(snap.records[i], update)
		if err != nil {
			return err
		}
		others := make([]map[string]interface{}, 0, len(snap.records)-1)
		others = append(others, snap.records[:i]...)
		others = append(others, snap.records[i+1:]...)
		if err := match.CheckUnique(updated, others, snap.indexes); err != nil {
			return err
		}
		encoded, err := encode(updated)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, c.docsKey, snap.ids[i], encoded)
			return nil
		})
		if err == nil {
			matched = 1
		}
		return err
	})
	return matched, err
}

// DeleteMany removes every matching record
func (c *Collection) DeleteMany(ctx context.Context, filter driver.Filter) (int64, error) {
	var deleted int64
	err := c.transact(ctx, func(tx *redis.Tx) error {
		deleted = 0
		snap, err := c.load(ctx, tx)
		if err != nil {
			return err
		}
		positions, _, err := match.Select(snap.records, filter, snap.indexes)
		if err != nil || len(positions) == 0 {
			return err
		}
		fields := make([]string, len(positions))
		members := make([]interface{}, len(positions))
		for i, pos := range positions {
			fields[i] = snap.ids[pos]
			members[i] = snap.ids[pos]
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, c.docsKey, fields...)
			pipe.ZRem(ctx, c.orderKey, members...)
			return nil
		})
		if err == nil {
			deleted = int64(len(positions))
		}
		return err
	})
	return deleted, err
}

// Count returns the number of matching records
func (c *Collection) Count(ctx context.Context, filter driver.Filter) (int64, error) {
	client, err := c.client()
	if err != nil {
		return 0, err
	}
	if len(filter) == 0 {
		return client.HLen(ctx, c.docsKey).Result()
	}
	snap, err := c.load(ctx, client)
	if err != nil {
		return 0, err
	}
	positions, _, err := match.Select(snap.records, filter, snap.indexes)
	if err != nil {
		return 0, err
	}
	return int64(len(positions)), nil
}

// Drop removes every key of the collection
func (c *Collection) Drop(ctx context.Context) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	return client.Del(ctx, c.docsKey, c.orderKey, c.seqKey, c.indexesKey).Err()
}
