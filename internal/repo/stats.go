// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kujilab/go-lottery-backend/internal/domain"
)

// CampaignResultsStats returns aggregate metadata for a campaign's results:
// the total number of rows and the maximum CreatedAt timestamp among them.
// Because results are append-only this pair fully identifies the result set,
// which makes it a cheap ETag source. When the campaign has no results, the
// returned count is 0 and maxCreatedAt is nil.
func CampaignResultsStats(ctx context.Context, db *gorm.DB, campaignID string) (count int64, maxCreatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.LotteryResult{}).Where("campaign_id = ?", campaignID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}

// UserResultsStats returns aggregate metadata for a user's results across all
// campaigns: row count and maximum CreatedAt. Same ETag use as
// CampaignResultsStats.
func UserResultsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxCreatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.LotteryResult{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
