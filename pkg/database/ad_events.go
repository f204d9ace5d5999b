// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/luxfi/ads/pkg/core"
)

// AdEventFilter narrows GetAdEvents. Zero fields match everything.
type AdEventFilter struct {
	Type             core.AdType
	ConfirmationType core.ConfirmationType
	PlacementID      string
	Since            time.Time
}

// RecordAdEvent appends ev to the log.
func (d *DB) RecordAdEvent(ctx context.Context, ev core.AdEventInfo) error {
	_, err := d.db.ExecContext(ctx, `INSERT INTO ad_events
		(placement_id, type, confirmation_type, creative_instance_id,
		 creative_set_id, campaign_id, advertiser_id, segment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.PlacementID,
		string(ev.Type),
		string(ev.ConfirmationType),
		ev.CreativeInstanceID,
		ev.CreativeSetID,
		ev.CampaignID,
		ev.AdvertiserID,
		ev.Segment,
		toMicros(ev.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("record %s event for %s: %w", ev.ConfirmationType, ev.PlacementID, err)
	}
	return nil
}

// GetAdEvents returns matching events, oldest first.
func (d *DB) GetAdEvents(ctx context.Context, filter AdEventFilter) (core.AdEventList, error) {
	var (
		where []string
		args  []any
	)
	if filter.Type != core.UndefinedAdType {
		where = append(where, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.ConfirmationType != core.UndefinedConfirmationType {
		where = append(where, "confirmation_type = ?")
		args = append(args, string(filter.ConfirmationType))
	}
	if filter.PlacementID != "" {
		where = append(where, "placement_id = ?")
		args = append(args, filter.PlacementID)
	}
	if !filter.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, toMicros(filter.Since))
	}

	query := `SELECT placement_id, type, confirmation_type, creative_instance_id,
		creative_set_id, campaign_id, advertiser_id, segment, created_at
		FROM ad_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ad events: %w", err)
	}
	defer rows.Close()

	var events core.AdEventList
	for rows.Next() {
		var (
			ev               core.AdEventInfo
			adType           string
			confirmationType string
			createdAt        int64
		)
		err := rows.Scan(
			&ev.PlacementID,
			&adType,
			&confirmationType,
			&ev.CreativeInstanceID,
			&ev.CreativeSetID,
			&ev.CampaignID,
			&ev.AdvertiserID,
			&ev.Segment,
			&createdAt,
		)
		if err != nil {
			return nil, err
		}
		ev.Type = core.AdType(adType)
		ev.ConfirmationType = core.ConfirmationType(confirmationType)
		ev.CreatedAt = fromMicros(createdAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// PurgeExpired deletes events created before cutoff and returns how many.
func (d *DB) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.db.ExecContext(ctx, "DELETE FROM ad_events WHERE created_at < ?", toMicros(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge expired ad events: %w", err)
	}
	return res.RowsAffected()
}

// PurgeOrphaned deletes the events of placements of adType that were served
// but never viewed. UndefinedAdType purges across every format.
func (d *DB) PurgeOrphaned(ctx context.Context, adType core.AdType) (int64, error) {
	query := `DELETE FROM ad_events WHERE placement_id IN (
		SELECT placement_id FROM ad_events
		WHERE confirmation_type = ?%[1]s
		AND placement_id NOT IN (
			SELECT placement_id FROM ad_events WHERE confirmation_type = ?
		)
	)`
	args := []any{string(core.ServedConfirmation)}
	filter := ""
	if adType != core.UndefinedAdType {
		filter = " AND type = ?"
		args = append(args, string(adType))
	}
	args = append(args, string(core.ViewedConfirmation))

	res, err := d.db.ExecContext(ctx, fmt.Sprintf(query, filter), args...)
	if err != nil {
		return 0, fmt.Errorf("purge orphaned ad events: %w", err)
	}
	return res.RowsAffected()
}

// PurgeOrphanedPlacements deletes the served only events of the given
// placements.
func (d *DB) PurgeOrphanedPlacements(ctx context.Context, placementIDs []string) (int64, error) {
	if len(placementIDs) == 0 {
		return 0, nil
	}
	args := []any{string(core.ServedConfirmation)}
	for _, id := range placementIDs {
		args = append(args, id)
	}
	args = append(args, string(core.ViewedConfirmation))

	res, err := d.db.ExecContext(ctx, `DELETE FROM ad_events
		WHERE confirmation_type = ? AND placement_id IN (`+placeholders(len(placementIDs))+`)
		AND placement_id NOT IN (
			SELECT placement_id FROM ad_events WHERE confirmation_type = ?
		)`, args...)
	if err != nil {
		return 0, fmt.Errorf("purge orphaned placements: %w", err)
	}
	return res.RowsAffected()
}
