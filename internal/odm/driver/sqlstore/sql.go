// Package sqlstore keeps collections in a relational database. Every collection
// is a table of JSON documents keyed by identifier, with insertion order kept
// in a sequence column. Index models live in a shared metadata table; unique
// indexes other than the identifier are enforced inside write transactions.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/conduit-lang/docmodel/internal/odm/driver"
	"github.com/conduit-lang/docmodel/internal/odm/driver/match"
)

// indexTable holds index models for every collection
const indexTable = "docmodel_indexes"

// Config holds SQL connection settings
type Config struct {
	// DriverName is the database/sql driver: sqlite3, pgx or postgres
	DriverName string
	// DSN is the data source name
	DSN string
	// TablePrefix is prepended to collection table names
	TablePrefix string
}

// Driver is a database/sql backed driver.Driver
type Driver struct {
	config  Config
	dialect dialect

	mu        sync.RWMutex
	db        *sql.DB
	ownsDB    bool
	connected bool
	tables    map[string]bool
}

// New creates a driver that opens its own database handle on Connect
func New(config Config) (*Driver, error) {
	d, err := dialectFor(config.DriverName)
	if err != nil {
		return nil, err
	}
	return &Driver{config: config, dialect: d, ownsDB: true, tables: make(map[string]bool)}, nil
}

// NewWithDB creates a driver over an existing handle
func NewWithDB(db *sql.DB, driverName, tablePrefix string) (*Driver, error) {
	d, err := dialectFor(driverName)
	if err != nil {
		return nil, err
	}
	return &Driver{
		config:  Config{DriverName: driverName, TablePrefix: tablePrefix},
		dialect: d,
		db:      db,
		tables:  make(map[string]bool),
	}, nil
}

// Connect opens the database if needed, pings it and creates the index table
func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		db, err := sql.Open(d.config.DriverName, d.config.DSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		d.db = db
	}
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	stmt := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (collection TEXT NOT NULL, name TEXT NOT NULL, spec TEXT NOT NULL, PRIMARY KEY (collection, name))`,
		indexTable)
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create index table: %w", err)
	}
	d.connected = true
	return nil
}

// Disconnect closes the handle when the driver opened it
func (d *Driver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return nil
	}
	d.connected = false
	d.tables = make(map[string]bool)
	if d.ownsDB && d.db != nil {
		err := d.db.Close()
		d.db = nil
		return err
	}
	return nil
}

func (d *Driver) handle() (*sql.DB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.connected {
		return nil, driver.ErrNotConnected
	}
	return d.db, nil
}

// Collection returns a handle for the named collection
func (d *Driver) Collection(name string) driver.Collection {
	table, err := quoteIdent(d.config.TablePrefix + name)
	return &Collection{name: name, driver: d, table: table, nameErr: err}
}

// Collection is a table-backed driver.Collection
type Collection struct {
	name    string
	driver  *Driver
	table   string
	nameErr error
}

// Name returns the collection name
func (c *Collection) Name() string { return c.name }

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (c *Collection) db() (*sql.DB, error) {
	if c.nameErr != nil {
		return nil, c.nameErr
	}
	return c.driver.handle()
}

// ensureTable creates the collection table once per connection
func (c *Collection) ensureTable(ctx context.Context, q querier) error {
	c.driver.mu.RLock()
	done := c.driver.tables[c.table]
	c.driver.mu.RUnlock()
	if done {
		return nil
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s, id TEXT NOT NULL UNIQUE, doc TEXT NOT NULL)`,
		c.table, c.driver.dialect.seqColumn)
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", c.table, err)
	}
	c.driver.mu.Lock()
	c.driver.tables[c.table] = true
	c.driver.mu.Unlock()
	return nil
}

// withTx runs fn in a transaction, locking the table where the dialect allows
func (c *Collection) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db, err := c.db()
	if err != nil {
		return err
	}
	if err := c.ensureTable(ctx, db); err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if c.driver.dialect.lockFmt != "" {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(c.driver.dialect.lockFmt, c.table)); err != nil {
			return fmt.Errorf("lock %s: %w", c.table, err)
		}
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return ConvertDBError(err)
	}
	return nil
}

func (c *Collection) loadIndexes(ctx context.Context, q querier) ([]driver.IndexModel, error) {
	rows, err := q.QueryContext(ctx,
		fmt.Sprintf(`SELECT spec FROM %s WHERE collection = %s ORDER BY name`, indexTable, c.driver.dialect.placeholder(1)),
		c.name)
	if err != nil {
		return nil, fmt.Errorf("load indexes: %w", err)
	}
	defer rows.Close()

	var models []driver.IndexModel
	for rows.Next() {
		var spec string
		if err := rows.Scan(&spec); err != nil {
			return nil, err
		}
		var model driver.IndexModel
		if err := json.Unmarshal([]byte(spec), &model); err != nil {
			return nil, fmt.Errorf("decode index: %w", err)
		}
		models = append(models, model)
	}
	return models, rows.Err()
}

// loadRecords reads documents in insertion order. When the filter pins a
// string identifier, only that row is read.
func (c *Collection) loadRecords(ctx context.Context, q querier, filter driver.Filter) ([]map[string]interface{}, error) {
	query := fmt.Sprintf(`SELECT id, doc FROM %s`, c.table)
	var args []interface{}
	if id, ok := filter[driver.IDKey].(string); ok {
		query += fmt.Sprintf(` WHERE id = %s`, c.driver.dialect.placeholder(1))
		args = append(args, id)
	}
	query += ` ORDER BY seq`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c.table, err)
	}
	defer rows.Close()

	var records []map[string]interface{}
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		var record map[string]interface{}
		if err := json.Unmarshal([]byte(doc), &record); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", id, err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func hasUnique(models []driver.IndexModel) bool {
	for _, m := range models {
		if m.Unique && !m.IsText() {
			return true
		}
	}
	return false
}

func idString(id interface{}) string {
	if s, ok := id.(string); ok {
		return s
	}
	return fmt.Sprint(id)
}

// EnsureIndexes stores index models, replacing any with the same name
func (c *Collection) EnsureIndexes(ctx context.Context, models []driver.IndexModel) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := c.loadIndexes(ctx, tx)
		if err != nil {
			return err
		}
		merged := append([]driver.IndexModel(nil), existing...)
		for _, model := range models {
			replaced := false
			for i := range merged {
				if merged[i].Name == model.Name {
					merged[i] = model
					replaced = true
				}
			}
			if !replaced {
				merged = append(merged, model)
			}
		}
		if hasUnique(models) {
			records, err := c.loadRecords(ctx, tx, nil)
			if err != nil {
				return err
			}
			for i, record := range records {
				if err := match.CheckUnique(match.Project(record, []string{driver.IDKey}), records[:i], merged); err != nil {
					return err
				}
			}
		}

		del := fmt.Sprintf(`DELETE FROM %s WHERE collection = %s AND name = %s`,
			indexTable, c.driver.dialect.placeholder(1), c.driver.dialect.placeholder(2))
		ins := fmt.Sprintf(`INSERT INTO %s (collection, name, spec) VALUES (%s)`,
			indexTable, c.driver.dialect.placeholders(1, 3))
		for _, model := range models {
			spec, err := json.Marshal(model)
			if err != nil {
				return fmt.Errorf("encode index %s: %w", model.Name, err)
			}
			if _, err := tx.ExecContext(ctx, del, c.name, model.Name); err != nil {
				return fmt.Errorf("replace index %s: %w", model.Name, err)
			}
			if _, err := tx.ExecContext(ctx, ins, c.name, model.Name, string(spec)); err != nil {
				return fmt.Errorf("store index %s: %w", model.Name, err)
			}
		}
		return nil
	})
}

// InsertOne stores a record
func (c *Collection) InsertOne(ctx context.Context, record driver.Record) error {
	id, ok := record[driver.IDKey]
	if !ok {
		return fmt.Errorf("%w: record has no %s", driver.ErrBadFilter, driver.IDKey)
	}
	doc, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	return c.withTx(ctx, func(tx *sql.Tx) error {
		indexes, err := c.loadIndexes(ctx, tx)
		if err != nil {
			return err
		}
		if hasUnique(indexes) {
			others, err := c.loadRecords(ctx, tx, nil)
			if err != nil {
				return err
			}
			if err := match.CheckUnique(record, others, indexes); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES (%s)`, c.table, c.driver.dialect.placeholders(1, 2)),
			idString(id), string(doc))
		return ConvertDBError(err)
	})
}

// Find reads the collection and evaluates the query with the match engine
func (c *Collection) Find(ctx context.Context, filter driver.Filter, opts driver.FindOptions) ([]driver.Result, error) {
	db, err := c.db()
	if err != nil {
		return nil, err
	}
	if err := c.ensureTable(ctx, db); err != nil {
		return nil, err
	}
	indexes, err := c.loadIndexes(ctx, db)
	if err != nil {
		return nil, err
	}
	records, err := c.loadRecords(ctx, db, filter)
	if err != nil {
		return nil, err
	}
	return match.Query(records, filter, opts, indexes)
}

// UpdateOne updates the first matching record in insertion order
func (c *Collection) UpdateOne(ctx context.Context, filter driver.Filter, update driver.Update) (int64, error) {
	var matched int64
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		indexes, err := c.loadIndexes(ctx, tx)
		if err != nil {
			return err
		}
		candidates, err := c.loadRecords(ctx, tx, filter)
		if err != nil {
			return err
		}
		positions, _, err := match.Select(candidates, filter, indexes)
		if err != nil || len(positions) == 0 {
			return err
		}
		current := candidates[positions[0]]
		updated, err := match.ApplyUpdate(current, update)
		if err != nil {
			return err
		}
		id := idString(current[driver.IDKey])

		if hasUnique(indexes) {
			all, err := c.loadRecords(ctx, tx, nil)
			if err != nil {
				return err
			}
			others := make([]map[string]interface{}, 0, len(all))
			for _, r := range all {
				if idString(r[driver.IDKey]) != id {
					others = append(others, r)
				}
			}
			if err := match.CheckUnique(updated, others, indexes); err != nil {
				return err
			}
		}

		doc, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET doc = %s WHERE id = %s`, c.table,
				c.driver.dialect.placeholder(1), c.driver.dialect.placeholder(2)),
			string(doc), id)
		if err != nil {
			return ConvertDBError(err)
		}
		matched, err = res.RowsAffected()
		return err
	})
	return matched, err
}

// DeleteMany removes every matching record
func (c *Collection) DeleteMany(ctx context.Context, filter driver.Filter) (int64, error) {
	var deleted int64
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		indexes, err := c.loadIndexes(ctx, tx)
		if err != nil {
			return err
		}
		candidates, err := c.loadRecords(ctx, tx, filter)
		if err != nil {
			return err
		}
		positions, _, err := match.Select(candidates, filter, indexes)
		if err != nil || len(positions) == 0 {
			return err
		}
		args := make([]interface{}, len(positions))
		for i, pos := range positions {
			args[i] = idString(candidates[pos][driver.IDKey])
		}
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE id IN (%s)`, c.table, c.driver.dialect.placeholders(1, len(args))),
			args...)
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return deleted, err
}

// Count returns the number of matching records
func (c *Collection) Count(ctx context.Context, filter driver.Filter) (int64, error) {
	db, err := c.db()
	if err != nil {
		return 0, err
	}
	if err := c.ensureTable(ctx, db); err != nil {
		return 0, err
	}
	if len(filter) == 0 {
		var n int64
		err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.table)).Scan(&n)
		return n, err
	}
	indexes, err := c.loadIndexes(ctx, db)
	if err != nil {
		return 0, err
	}
	records, err := c.loadRecords(ctx, db, filter)
	if err != nil {
		return 0, err
	}
	positions, _, err := match.Select(records, filter, indexes)
	if err != nil {
		return 0, err
	}
	return int64(len(positions)), nil
}

// Drop removes the table and its index models
func (c *Collection) Drop(ctx context.Context) error {
	db, err := c.db()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, c.table)); err != nil {
		return fmt.Errorf("drop %s: %w", c.table, err)
	}
	if _, err := db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE collection = %s`, indexTable, c.driver.dialect.placeholder(1)),
		c.name); err != nil {
		return fmt.Errorf("drop indexes of %s: %w", c.name, err)
	}
	c.driver.mu.Lock()
	delete(c.driver.tables, c.table)
	c.driver.mu.Unlock()
	return nil
}
