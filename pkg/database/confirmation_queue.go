// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ConfirmationQueueItem is one pending confirmation. Payload is opaque to
// the database.
type ConfirmationQueueItem struct {
	TransactionID string
	CreatedAt     time.Time
	ProcessAt     time.Time
	RetryCount    int
	Payload       []byte
}

// SaveConfirmationQueueItem inserts or replaces item.
func (d *DB) SaveConfirmationQueueItem(ctx context.Context, item ConfirmationQueueItem) error {
	_, err := d.db.ExecContext(ctx, `INSERT OR REPLACE INTO confirmation_queue
		(transaction_id, created_at, process_at, retry_count, payload)
		VALUES (?, ?, ?, ?, ?)`,
		item.TransactionID,
		toMicros(item.CreatedAt),
		toMicros(item.ProcessAt),
		item.RetryCount,
		string(item.Payload),
	)
	if err != nil {
		return fmt.Errorf("save confirmation %s: %w", item.TransactionID, err)
	}
	return nil
}

// NextConfirmationQueueItem returns the item due first.
func (d *DB) NextConfirmationQueueItem(ctx context.Context) (ConfirmationQueueItem, bool, error) {
	row := d.db.QueryRowContext(ctx, `SELECT transaction_id, created_at, process_at, retry_count, payload
		FROM confirmation_queue ORDER BY process_at, created_at LIMIT 1`)

	var (
		item      ConfirmationQueueItem
		createdAt int64
		processAt int64
		payload   string
	)
	err := row.Scan(&item.TransactionID, &createdAt, &processAt, &item.RetryCount, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return ConfirmationQueueItem{}, false, nil
	}
	if err != nil {
		return ConfirmationQueueItem{}, false, fmt.Errorf("next confirmation: %w", err)
	}
	item.CreatedAt = fromMicros(createdAt)
	item.ProcessAt = fromMicros(processAt)
	item.Payload = []byte(payload)
	return item, true, nil
}

// DeleteConfirmationQueueItem removes the item for transactionID.
func (d *DB) DeleteConfirmationQueueItem(ctx context.Context, transactionID string) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM confirmation_queue WHERE transaction_id = ?", transactionID); err != nil {
		return fmt.Errorf("delete confirmation %s: %w", transactionID, err)
	}
	return nil
}

// ConfirmationQueueLen returns the number of queued items.
func (d *DB) ConfirmationQueueLen(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM confirmation_queue").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
