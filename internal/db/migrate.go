package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id           UUID PRIMARY KEY,
		email        TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		role         TEXT NOT NULL DEFAULT 'player',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS games (
		id              UUID PRIMARY KEY,
		name            TEXT NOT NULL,
		join_code       TEXT NOT NULL UNIQUE,
		variant         TEXT NOT NULL,
		status          TEXT NOT NULL DEFAULT 'open',
		initial_capital NUMERIC(14,2) NOT NULL,
		deadline        TIMESTAMPTZ,
		round_deadlines JSONB,
		max_players     INT,
		created_by      UUID NOT NULL REFERENCES users(id),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS game_players (
		game_id      UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		user_id      UUID NOT NULL REFERENCES users(id),
		current_year INT NOT NULL,
		status       TEXT NOT NULL DEFAULT 'playing',
		hidden       BOOLEAN NOT NULL DEFAULT false,
		joined_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at TIMESTAMPTZ,
		PRIMARY KEY (game_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS allocations (
		id           UUID PRIMARY KEY,
		game_id      UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		user_id      UUID NOT NULL REFERENCES users(id),
		year         INT NOT NULL,
		weights      JSONB NOT NULL,
		submitted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (game_id, user_id, year)
	)`,
	`CREATE TABLE IF NOT EXISTS portfolio_snapshots (
		id          UUID PRIMARY KEY,
		game_id     UUID NOT NULL REFERENCES games(id) ON DELETE CASCADE,
		user_id     UUID NOT NULL REFERENCES users(id),
		year        INT NOT NULL,
		value_start NUMERIC(14,2) NOT NULL,
		value_end   NUMERIC(14,2) NOT NULL,
		return_pct  NUMERIC(8,2) NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (game_id, user_id, year)
	)`,
	`CREATE TABLE IF NOT EXISTS fund_benchmarks (
		fund_id          INT NOT NULL,
		fund_name        TEXT NOT NULL,
		fund_type        TEXT NOT NULL,
		year             INT NOT NULL,
		return_pct       NUMERIC(8,4) NOT NULL,
		sharpe_ratio     NUMERIC(8,4) NOT NULL,
		cash_pct         NUMERIC(6,2) NOT NULL,
		fixed_income_pct NUMERIC(6,2) NOT NULL,
		equity_pct       NUMERIC(6,2) NOT NULL,
		PRIMARY KEY (fund_id, year)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_game_user ON portfolio_snapshots (game_id, user_id, year)`,
	`CREATE INDEX IF NOT EXISTS idx_allocations_game_user ON allocations (game_id, user_id)`,
}

// Migrate applies the schema. Statements are idempotent so running at every
// boot is safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
