// Package postgres implements the repositories and the snapshot store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS weekly_attendance (
    week_start DATE NOT NULL,
    weekday    TEXT NOT NULL,
    breakfast  INTEGER NOT NULL DEFAULT 0,
    lunch      INTEGER NOT NULL DEFAULT 0,
    dinner     INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (week_start, weekday)
);

CREATE TABLE IF NOT EXISTS menus (
    id        SERIAL PRIMARY KEY,
    day       TEXT NOT NULL,
    breakfast TEXT NOT NULL DEFAULT '',
    lunch     TEXT NOT NULL DEFAULT '',
    dinner    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS ingredients (
    name       TEXT PRIMARY KEY,
    unit       TEXT NOT NULL,
    per_person DOUBLE PRECISION,
    dishes     TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS ingredient_forecasts (
    id         TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL,
    forecast   JSONB NOT NULL
);
`

// Connect opens a pool and verifies the connection.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("error creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}
	return pool, nil
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("error creating schema: %w", err)
	}
	return nil
}
