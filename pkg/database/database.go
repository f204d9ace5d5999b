// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package database persists creative ads, ad events and the confirmation
// queue in sqlite. Callers serialize through the single connection pool;
// every statement runs in its own transaction unless stated otherwise.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/luxfi/ads/pkg/log"
)

// Memory opens a private in memory database.
const Memory = ":memory:"

var migrations = []string{
	`CREATE TABLE creative_ads (
		creative_instance_id TEXT NOT NULL PRIMARY KEY,
		creative_set_id TEXT NOT NULL,
		campaign_id TEXT NOT NULL,
		advertiser_id TEXT NOT NULL,
		type TEXT NOT NULL,
		segment TEXT NOT NULL,
		dimensions TEXT NOT NULL DEFAULT '',
		start_at INTEGER NOT NULL DEFAULT 0,
		end_at INTEGER NOT NULL DEFAULT 0,
		payload TEXT NOT NULL
	);
	CREATE INDEX creative_ads_type_segment ON creative_ads (type, segment);
	CREATE INDEX creative_ads_campaign ON creative_ads (campaign_id);`,

	`CREATE TABLE ad_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		placement_id TEXT NOT NULL,
		type TEXT NOT NULL,
		confirmation_type TEXT NOT NULL,
		creative_instance_id TEXT NOT NULL,
		creative_set_id TEXT NOT NULL,
		campaign_id TEXT NOT NULL,
		advertiser_id TEXT NOT NULL,
		segment TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX ad_events_placement ON ad_events (placement_id);
	CREATE INDEX ad_events_created_at ON ad_events (created_at);`,

	`CREATE TABLE confirmation_queue (
		transaction_id TEXT NOT NULL PRIMARY KEY,
		created_at INTEGER NOT NULL,
		process_at INTEGER NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		payload TEXT NOT NULL
	);
	CREATE INDEX confirmation_queue_process_at ON confirmation_queue (process_at);`,
}

// DB is the ads database.
type DB struct {
	db  *sql.DB
	log log.Logger
}

// Open opens or creates the database at path and migrates it.
func Open(path string, logger log.Logger) (*DB, error) {
	if logger == nil {
		logger = log.NoLog
	}

	dsn := path
	if path != Memory {
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection keeps an in memory database alive and serializes
	// writers on disk.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", path, err)
	}

	d := &DB{db: db, log: logger}
	if err := d.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) migrate(ctx context.Context) error {
	var version int
	if err := d.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		err := d.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1))
			return err
		})
		if err != nil {
			return fmt.Errorf("migrate to version %d: %w", i+1, err)
		}
		d.log.Info("migrated ads database", log.Int("version", i+1))
	}
	return nil
}

func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

func toMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func fromMicros(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
