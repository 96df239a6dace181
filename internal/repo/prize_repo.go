// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Prize
// model.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/kujilab/go-lottery-backend/internal/domain"
)

// PrizeForRank fetches the configured prize for one layer rank of a campaign.
// It returns (nil, nil) when no prize row is configured for that rank, so the
// caller can fall back to a synthetic prize derived from the layer price.
// On DB error, it returns the error.
func PrizeForRank(ctx context.Context, db *gorm.DB, campaignID string, rank int) (*domain.Prize, error) {
	var p domain.Prize
	err := db.WithContext(ctx).
		Where("campaign_id = ? AND rank = ?", campaignID, rank).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
