// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model
// and its derived prizes_won aggregate.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/kujilab/go-lottery-backend/internal/domain"
)

// GetUser fetches a user by ID, or ErrNotFound if missing.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// IncrementPrizesWon bumps the user's prizes_won counter by one. The counter
// is a materialized cache of CountResultsForUser and is only ever updated in
// the same transaction that inserts the corresponding result row. Returns
// ErrNotFound when the user row does not exist, forcing the draw transaction
// to roll back rather than record a result for an unknown user.
func IncrementPrizesWon(ctx context.Context, db *gorm.DB, userID string) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		UpdateColumn("prizes_won", gorm.Expr("prizes_won + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
