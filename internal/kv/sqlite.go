package kv

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/pet-health-tracker/internal/repository"
)

const (
	kvTable   = "kv_entries"
	colKey    = "cache_key"
	colValue  = "payload"
	colUpdate = "updated_at"

	opTimeout = 5 * time.Second
)

// SQLiteStore persists entries in a single SQLite table so the cache
// survives restarts.
type SQLiteStore struct {
	drv    *entsql.Driver
	logger *slog.Logger
}

// OpenSQLite opens (or creates) the cache database at path.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	drv, err := repository.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{drv: drv, logger: logger}
	if err := s.migrate(); err != nil {
		_ = drv.Close()
		return nil, err
	}
	logger.Info("kv store opened", "path", path)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	ddl := `CREATE TABLE IF NOT EXISTS ` + kvTable + ` (
	` + colKey + `    TEXT PRIMARY KEY,
	` + colValue + `  TEXT NOT NULL,
	` + colUpdate + ` INTEGER NOT NULL
)`
	if err := s.drv.Exec(ctx, ddl, []any{}, nil); err != nil {
		return fmt.Errorf("kv migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	q, args := entsql.Dialect(dialect.SQLite).
		Select(colValue).
		From(entsql.Table(kvTable)).
		Where(entsql.EQ(colKey, key)).
		Query()
	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, q, args, rows); err != nil {
		return "", false, fmt.Errorf("kv get %q: %w", key, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return "", false, rows.Err()
	}
	var v string
	if err := rows.Scan(&v); err != nil {
		return "", false, fmt.Errorf("kv scan %q: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLiteStore) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	q, args := entsql.Dialect(dialect.SQLite).
		Insert(kvTable).
		Columns(colKey, colValue, colUpdate).
		Values(key, value, time.Now().UnixMilli()).
		OnConflict(entsql.ConflictColumns(colKey), entsql.ResolveWithNewValues()).
		Query()
	if err := s.drv.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	q, args := entsql.Dialect(dialect.SQLite).
		Delete(kvTable).
		Where(entsql.EQ(colKey, key)).
		Query()
	if err := s.drv.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("kv remove %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Keys() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	q, args := entsql.Dialect(dialect.SQLite).
		Select(colKey).
		From(entsql.Table(kvTable)).
		OrderBy(colKey).
		Query()
	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, q, args, rows); err != nil {
		return nil, fmt.Errorf("kv keys: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.drv.Close()
}
