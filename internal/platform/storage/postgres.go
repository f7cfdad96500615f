package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the Store backend for multi-instance deployments where the
// ledger must be shared. Writers are still not coordinated (last write
// wins), matching the single-tab contract of the other backends.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to databaseURL and ensures the key-value schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, &PersistenceError{Op: "open", Key: databaseURL, Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &PersistenceError{Op: "open", Key: databaseURL, Err: err}
	}
	if _, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS dosecalc_kv (
  k TEXT PRIMARY KEY,
  v TEXT NOT NULL
)
	`); err != nil {
		pool.Close()
		return nil, &PersistenceError{Op: "migrate", Key: "dosecalc_kv", Err: err}
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
}

func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := p.pool.QueryRow(ctx, "SELECT v FROM dosecalc_kv WHERE k = $1", key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &PersistenceError{Op: "get", Key: key, Err: err}
	}
	return v, true, nil
}

func (p *Postgres) Set(ctx context.Context, key, value string) error {
	_, err := p.pool.Exec(ctx,
		"INSERT INTO dosecalc_kv (k, v) VALUES ($1, $2) ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v",
		key, value)
	if err != nil {
		return &PersistenceError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (p *Postgres) Remove(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx, "DELETE FROM dosecalc_kv WHERE k = $1", key); err != nil {
		return &PersistenceError{Op: "remove", Key: key, Err: err}
	}
	return nil
}
