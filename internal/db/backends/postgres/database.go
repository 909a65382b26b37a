package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/inkwell/inkwell-backend/internal/db/interfaces"
)

// Database implements interfaces.Database on a pgx connection pool.
type Database struct {
	mu      sync.RWMutex
	dsn     string
	pool    *pgxpool.Pool
	schemas map[string]*interfaces.Schema
}

// NewDatabase creates a postgres database for the given DSN. The pool is
// opened by Connect.
func NewDatabase(dsn string) *Database {
	return &Database{
		dsn:     dsn,
		schemas: make(map[string]*interfaces.Schema),
	}
}

func (db *Database) Connect(ctx context.Context) error {
	cfg, err := pgxpool.ParseConfig(db.dsn)
	if err != nil {
		return &interfaces.DatabaseError{Op: "connect", Err: err}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return &interfaces.DatabaseError{Op: "connect", Err: err}
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return &interfaces.DatabaseError{Op: "connect", Err: err}
	}

	db.mu.Lock()
	db.pool = pool
	db.mu.Unlock()
	return nil
}

func (db *Database) Disconnect(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.pool != nil {
		db.pool.Close()
		db.pool = nil
	}
	return nil
}

func (db *Database) IsHealthy(ctx context.Context) bool {
	db.mu.RLock()
	pool := db.pool
	db.mu.RUnlock()

	if pool == nil {
		return false
	}
	return pool.Ping(ctx) == nil
}

func (db *Database) Transaction(ctx context.Context, fn func(ctx context.Context, tx interfaces.Transaction) error) error {
	pool := db.getPool()
	if pool == nil {
		return interfaces.ErrDatabaseNotConnected
	}

	pgxTx, err := pool.Begin(ctx)
	if err != nil {
		return &interfaces.DatabaseError{Op: "begin", Err: err}
	}

	tx := &Transaction{tx: pgxTx}

	defer func() {
		if !tx.IsCompleted() {
			tx.Rollback(ctx)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

func (db *Database) Repository(schema *interfaces.Schema) interfaces.Repository {
	db.mu.Lock()
	db.schemas[schema.TableName] = schema
	db.mu.Unlock()

	return NewRepository(db, schema)
}

// Migrate creates missing tables and indexes from the schemas. Production
// deployments drive schema changes through goose (cmd/migrate); this keeps
// dev databases usable without a migration step.
func (db *Database) Migrate(ctx context.Context, schemas []*interfaces.Schema) error {
	pool := db.getPool()
	if pool == nil {
		return interfaces.ErrDatabaseNotConnected
	}

	for _, schema := range schemas {
		db.mu.Lock()
		db.schemas[schema.TableName] = schema
		db.mu.Unlock()

		ddl := buildCreateTable(schema)
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return &interfaces.DatabaseError{Op: "migrate " + schema.TableName, Err: err}
		}

		for _, index := range schema.Indexes {
			if _, err := pool.Exec(ctx, buildCreateIndex(schema.TableName, index)); err != nil {
				return &interfaces.DatabaseError{Op: "migrate index " + index.Name, Err: err}
			}
		}
	}

	return nil
}

func (db *Database) Seed(ctx context.Context, schema *interfaces.Schema, data []map[string]interface{}) error {
	repo := db.Repository(schema)
	for i, record := range data {
		if _, err := repo.Create(ctx, record); err != nil {
			return fmt.Errorf("seed record %d into %s: %w", i, schema.TableName, err)
		}
	}
	return nil
}

func (db *Database) getPool() *pgxpool.Pool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.pool
}

func buildCreateTable(schema *interfaces.Schema) string {
	names := make([]string, 0, len(schema.Fields))
	for name := range schema.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	cols := make([]string, 0, len(names))
	for _, name := range names {
		cols = append(cols, columnDef(name, schema.Fields[name]))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", schema.TableName, strings.Join(cols, ", "))
}

func columnDef(name string, field interfaces.FieldSchema) string {
	parts := []string{name, sqlType(field.Type)}

	if field.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	} else if !field.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if field.Unique && !field.PrimaryKey {
		parts = append(parts, "UNIQUE")
	}
	if fk := field.ForeignKey; fk != nil {
		ref := fmt.Sprintf("REFERENCES %s(%s)", fk.Table, fk.Column)
		if fk.OnDelete != "" {
			ref += " ON DELETE " + strings.ReplaceAll(fk.OnDelete, "_", " ")
		}
		parts = append(parts, ref)
	}

	return strings.Join(parts, " ")
}

func sqlType(fieldType string) string {
	switch fieldType {
	case "string":
		return "TEXT"
	case "strings":
		return "TEXT[]"
	case "int":
		return "INTEGER"
	case "int64":
		return "BIGINT"
	case "float64":
		return "DOUBLE PRECISION"
	case "bool":
		return "BOOLEAN"
	case "time":
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

func buildCreateIndex(table string, index interfaces.Index) string {
	unique := ""
	if index.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		unique, index.Name, table, strings.Join(index.Columns, ", "))
}
