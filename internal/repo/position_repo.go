// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides read-only queries over the Position
// model used by the draw engine. The draw never mutates positions; it only
// reads sold ones to build per-layer candidate pools.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/kujilab/go-lottery-backend/internal/domain"
)

// SoldPositionsInLayer returns the sold positions of one layer of a campaign,
// ordered by (row, col) so the candidate pool has a stable, deterministic
// order regardless of insertion order. An empty slice means the layer
// undersold. On DB error, it returns the error.
func SoldPositionsInLayer(ctx context.Context, db *gorm.DB, campaignID string, layer int) ([]domain.Position, error) {
	var out []domain.Position
	err := db.WithContext(ctx).
		Where("campaign_id = ? AND layer = ? AND status = ?", campaignID, layer, domain.PositionSold).
		Order("row asc, col asc").
		Find(&out).Error
	return out, err
}

// CountSoldPositions returns the number of sold positions in a campaign.
// Used to sanity-check the campaign's SoldPositions counter when deciding
// sold-out eligibility. On DB error, it returns the error.
func CountSoldPositions(ctx context.Context, db *gorm.DB, campaignID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Position{}).
		Where("campaign_id = ? AND status = ?", campaignID, domain.PositionSold).
		Count(&total).Error
	return total, err
}
