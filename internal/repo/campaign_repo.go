// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Campaign
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a campaign is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kujilab/go-lottery-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetCampaign fetches a single campaign by its ID. If the record does not
// exist, it returns ErrNotFound. On other DB errors, the raw error is
// returned.
func GetCampaign(ctx context.Context, db *gorm.DB, id string) (*domain.Campaign, error) {
	var c domain.Campaign
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// MarkCampaignDrawn transitions a campaign from a drawable status (closed or
// published) to the terminal drawn status and stamps DrawnAt. It returns
// ErrNotFound if no row was transitioned, which also guards against a
// concurrent transition having slipped in between read and update.
func MarkCampaignDrawn(ctx context.Context, db *gorm.DB, id string, drawnAt time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Campaign{}).
		Where("id = ? AND status IN ?", id, []domain.CampaignStatus{domain.CampaignClosed, domain.CampaignPublished}).
		Updates(map[string]any{
			"status":   domain.CampaignDrawn,
			"drawn_at": drawnAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
