package ledger

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the SQL DDL for the published_ids table. Execute it via
// [PostgresStore.Migrate] or apply it during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS published_ids (
    namespace    TEXT NOT NULL,
    key          TEXT NOT NULL,
    id           BIGINT NOT NULL,
    published_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (namespace, key),
    UNIQUE (namespace, id)
);
`

// DB is the database interface used by [PostgresStore]. Both
// *pgxpool.Pool and *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore returns a store using db. Call [PostgresStore.Migrate]
// before the first query.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Connect opens a connection pool to dsn, checks it answers and migrates
// the schema. The returned close function releases the pool.
func Connect(ctx context.Context, dsn string) (*PostgresStore, func(), error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("ledger: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("ledger: create pool: %w", err)
	}
	s := NewPostgresStore(pool)
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

// Migrate creates the published_ids table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ledger: migrate: %w", err)
	}
	return nil
}

// Ping checks that the database answers.
func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("ledger: ping: %w", err)
	}
	return nil
}

// Published implements [Store.Published].
func (s *PostgresStore) Published(ctx context.Context, namespace string) (map[string]int64, error) {
	const query = `SELECT key, id FROM published_ids WHERE namespace = $1`
	rows, err := s.db.Query(ctx, query, namespace)
	if err != nil {
		return nil, fmt.Errorf("ledger: query %s: %w", namespace, err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			key string
			id  int64
		)
		if err := rows.Scan(&key, &id); err != nil {
			return nil, fmt.Errorf("ledger: scan %s: %w", namespace, err)
		}
		out[key] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: rows %s: %w", namespace, err)
	}
	return out, nil
}

// Publish implements [Store.Publish]. Conflicts are checked against the
// current table before anything is inserted. The unique constraints catch a
// concurrent publisher, in which case rows inserted before the violation
// remain.
func (s *PostgresStore) Publish(ctx context.Context, namespace string, ids map[string]int64) error {
	published, err := s.Published(ctx, namespace)
	if err != nil {
		return err
	}
	owner := make(map[int64]string, len(published))
	for k, id := range published {
		owner[id] = k
	}

	const insert = `
		INSERT INTO published_ids (namespace, key, id)
		VALUES ($1, $2, $3)`

	keys := slices.Sorted(maps.Keys(ids))
	for _, key := range keys {
		id := ids[key]
		if old, ok := published[key]; ok {
			if old != id {
				return fmt.Errorf("%w: %s key %q is %d, not %d", ErrReassigned, namespace, key, old, id)
			}
			continue
		}
		if k, ok := owner[id]; ok && k != key {
			return fmt.Errorf("%w: %s id %d belongs to %q, not %q", ErrReassigned, namespace, id, k, key)
		}
	}
	for _, key := range keys {
		if _, ok := published[key]; ok {
			continue
		}
		if _, err := s.db.Exec(ctx, insert, namespace, key, ids[key]); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s key %q: %v", ErrReassigned, namespace, key, err)
			}
			return fmt.Errorf("ledger: publish %s key %q: %w", namespace, key, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
