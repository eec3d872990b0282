// Package pgdb wraps pgxpool.Pool the way the teacher's common/db does:
// one connection pool, a health check, and a logged Close.
package pgdb

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relayhq/relay/internal/logging"
)

type DB struct {
	*pgxpool.Pool
	log *logging.Logger
}

func New(ctx context.Context, url string, log *logging.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("pgdb: parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("pgdb: create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgdb: ping: %w", err)
	}

	log.Info("postgres connected")
	return &DB{Pool: pool, log: log}, nil
}

func (db *DB) Close() {
	db.log.Info("closing postgres connection pool")
	db.Pool.Close()
}

func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return db.Pool.Ping(ctx)
}
