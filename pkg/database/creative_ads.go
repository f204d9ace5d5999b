// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/luxfi/ads/pkg/core"
)

// ReplaceCreativeAds atomically swaps the stored creatives for ads.
func (d *DB) ReplaceCreativeAds(ctx context.Context, ads []core.Creative) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM creative_ads"); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO creative_ads
			(creative_instance_id, creative_set_id, campaign_id, advertiser_id,
			 type, segment, dimensions, start_at, end_at, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, ad := range ads {
			info := ad.Creative()
			payload, err := json.Marshal(ad)
			if err != nil {
				return fmt.Errorf("encode creative %s: %w", info.CreativeInstanceID, err)
			}
			_, err = stmt.ExecContext(ctx,
				info.CreativeInstanceID,
				info.CreativeSetID,
				info.CampaignID,
				info.AdvertiserID,
				string(info.Type),
				info.Segment,
				dimensionsOf(ad),
				toMicros(info.StartAt),
				toMicros(info.EndAt),
				string(payload),
			)
			if err != nil {
				return fmt.Errorf("insert creative %s: %w", info.CreativeInstanceID, err)
			}
		}
		return nil
	})
}

func dimensionsOf(ad core.Creative) string {
	if inline, ok := ad.(core.CreativeInlineContentAdInfo); ok {
		return inline.Dimensions
	}
	return ""
}

// CreativeAds reads the creatives of one ad format.
type CreativeAds[T core.Creative] struct {
	db     *DB
	adType core.AdType
}

// NewCreativeAds returns a typed view on the creatives of adType.
func NewCreativeAds[T core.Creative](db *DB, adType core.AdType) *CreativeAds[T] {
	return &CreativeAds[T]{db: db, adType: adType}
}

// GetAll returns every creative of the format.
func (c *CreativeAds[T]) GetAll(ctx context.Context) ([]T, error) {
	return c.query(ctx, "SELECT payload FROM creative_ads WHERE type = ? ORDER BY rowid", string(c.adType))
}

// GetForSegments returns creatives targeting any of segments.
func (c *CreativeAds[T]) GetForSegments(ctx context.Context, segments []string) ([]T, error) {
	if len(segments) == 0 {
		return nil, nil
	}
	args := []any{string(c.adType)}
	for _, s := range segments {
		args = append(args, s)
	}
	return c.query(ctx,
		"SELECT payload FROM creative_ads WHERE type = ? AND segment IN ("+placeholders(len(segments))+") ORDER BY rowid",
		args...)
}

// GetForSegmentsAndDimensions narrows GetForSegments to one size.
func (c *CreativeAds[T]) GetForSegmentsAndDimensions(ctx context.Context, segments []string, dimensions string) ([]T, error) {
	if len(segments) == 0 {
		return nil, nil
	}
	args := []any{string(c.adType), dimensions}
	for _, s := range segments {
		args = append(args, s)
	}
	return c.query(ctx,
		"SELECT payload FROM creative_ads WHERE type = ? AND dimensions = ? AND segment IN ("+placeholders(len(segments))+") ORDER BY rowid",
		args...)
}

// GetForCreativeInstanceID returns one creative, if present.
func (c *CreativeAds[T]) GetForCreativeInstanceID(ctx context.Context, id string) (T, bool, error) {
	var zero T
	ads, err := c.query(ctx, "SELECT payload FROM creative_ads WHERE type = ? AND creative_instance_id = ?", string(c.adType), id)
	if err != nil || len(ads) == 0 {
		return zero, false, err
	}
	return ads[0], true, nil
}

func (c *CreativeAds[T]) query(ctx context.Context, query string, args ...any) ([]T, error) {
	rows, err := c.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s creatives: %w", c.adType, err)
	}
	defer rows.Close()

	var ads []T
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ad T
		if err := json.Unmarshal([]byte(payload), &ad); err != nil {
			return nil, fmt.Errorf("decode %s creative: %w", c.adType, err)
		}
		ads = append(ads, ad)
	}
	return ads, rows.Err()
}

// CampaignIDs returns the distinct campaigns currently stored.
func (d *DB) CampaignIDs(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT DISTINCT campaign_id FROM creative_ads ORDER BY campaign_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
