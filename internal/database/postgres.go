package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Config struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

func NewPostgres(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL UNIQUE,
		category     TEXT NOT NULL DEFAULT '',
		type         TEXT NOT NULL DEFAULT '',
		is_emergency BOOLEAN NOT NULL DEFAULT FALSE,
		created_by   TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS lots (
		id              TEXT PRIMARY KEY,
		lot_id          TEXT NOT NULL UNIQUE,
		product         TEXT NOT NULL,
		provider        TEXT NOT NULL DEFAULT '',
		grade           TEXT NOT NULL DEFAULT '',
		brand           TEXT NOT NULL DEFAULT '',
		origin          TEXT NOT NULL DEFAULT '',
		condition       TEXT NOT NULL DEFAULT '',
		production_date DATE,
		expiration_date DATE,
		unit_price      NUMERIC(14,4) NOT NULL DEFAULT 0,
		qty_received    NUMERIC(14,4) NOT NULL CHECK (qty_received > 0),
		current_stock   NUMERIC(14,4) NOT NULL CHECK (current_stock >= 0),
		total_sold      NUMERIC(14,4) NOT NULL DEFAULT 0,
		status          TEXT NOT NULL,
		notes           TEXT NOT NULL DEFAULT '',
		voice_note_url  TEXT NOT NULL DEFAULT '',
		invoice_url     TEXT NOT NULL DEFAULT '',
		arrival_date    TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_by      TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_lots_status ON lots (status)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id             TEXT PRIMARY KEY,
		sale_id        TEXT NOT NULL UNIQUE,
		lot_record_id  TEXT NOT NULL REFERENCES lots (id),
		lot_id         TEXT NOT NULL,
		weight_out     NUMERIC(14,4) NOT NULL CHECK (weight_out > 0),
		pieces         INTEGER NOT NULL DEFAULT 0,
		client         TEXT NOT NULL DEFAULT '',
		proposed_price NUMERIC(14,4) NOT NULL DEFAULT 0,
		notes          TEXT NOT NULL DEFAULT '',
		voice_note_url TEXT NOT NULL DEFAULT '',
		processed_by   TEXT NOT NULL DEFAULT '',
		sale_date      TIMESTAMPTZ NOT NULL DEFAULT now(),
		metadata       JSONB NOT NULL DEFAULT '{}'::jsonb
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_lot_id ON sales (lot_id)`,
	`CREATE TABLE IF NOT EXISTS users (
		id                 TEXT PRIMARY KEY,
		email              TEXT NOT NULL UNIQUE,
		name               TEXT NOT NULL DEFAULT '',
		password_hash      TEXT NOT NULL,
		role               TEXT NOT NULL,
		phone              TEXT NOT NULL DEFAULT '',
		whatsapp_opt_in    BOOLEAN NOT NULL DEFAULT FALSE,
		qb_access_token    TEXT NOT NULL DEFAULT '',
		qb_refresh_token   TEXT NOT NULL DEFAULT '',
		qb_realm_id        TEXT NOT NULL DEFAULT '',
		qb_expiry          TIMESTAMPTZ,
		qb_connected       BOOLEAN NOT NULL DEFAULT FALSE
	)`,
}

// Migrate creates the schema when missing. It is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return tx.Commit()
}
