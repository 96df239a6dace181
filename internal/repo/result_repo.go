// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// LotteryResult model and the Winner read model.
//
// Error semantics:
//   - When a result is not found, functions return gorm.ErrRecordNotFound
//     (exported here as ErrNotFound).
//   - On DB errors the raw gorm error is propagated.
//
// Functions:
//
//   - CreateResult(ctx, db, result) -> error
//     Inserts one append-only result row; ErrDuplicate when the layer rank
//     was already drawn for that campaign.
//
//   - CountResultsForCampaign(ctx, db, campaignID) -> (int64, error)
//     Existence check backing the "already drawn" precondition.
//
//   - ResultsForCampaign(ctx, db, campaignID) -> []domain.Winner
//     Winner projection ordered by prize rank ascending, then draw time.
//
//   - ResultsForUser(ctx, db, userID, offset, limit) -> []domain.LotteryResult
//     A user's results ordered by draw time descending, paginated.
//
//   - WinnerForUserInCampaign(ctx, db, userID, campaignID) -> *domain.Winner
//     Answers "did I win" without exposing other users' results.
//
// This repository is designed to be wrapped by higher-level services
// (see services.DrawService and services.ResultService) which enforce the
// draw's transactional rules.
package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/kujilab/go-lottery-backend/internal/domain"
)

// ErrDuplicate indicates that a unique constraint rejected an insert, e.g.
// a second result row for the same (campaign, rank).
var ErrDuplicate = errors.New("duplicate")

// winnerSelect joins results with users and positions into the Winner
// projection. Kept as a single constant so every winner query returns the
// same column set.
const winnerSelect = `lottery_results.id AS result_id,
lottery_results.campaign_id AS campaign_id,
lottery_results.rank AS rank,
lottery_results.prize_name AS prize_name,
lottery_results.prize_value AS prize_value,
lottery_results.position_id AS position_id,
positions.row AS row,
positions.col AS col,
lottery_results.user_id AS user_id,
users.name AS user_name,
lottery_results.drawn_at AS drawn_at`

// CreateResult inserts one LotteryResult row. The (campaign_id, rank) unique
// index makes a second result for the same layer impossible; such inserts
// return ErrDuplicate.
func CreateResult(ctx context.Context, db *gorm.DB, r *domain.LotteryResult) error {
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint") ||
			strings.Contains(low, "duplicate key") {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// CountResultsForCampaign returns the number of result rows recorded for a
// campaign. A non-zero count means the campaign has already been drawn.
func CountResultsForCampaign(ctx context.Context, db *gorm.DB, campaignID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.LotteryResult{}).
		Where("campaign_id = ?", campaignID).
		Count(&total).Error
	return total, err
}

// ResultsForCampaign returns the full winner list of a campaign, ordered by
// prize rank ascending then draw time ascending. It returns an empty slice
// when the campaign has not been drawn.
func ResultsForCampaign(ctx context.Context, db *gorm.DB, campaignID string) ([]domain.Winner, error) {
	var out []domain.Winner
	err := db.WithContext(ctx).
		Model(&domain.LotteryResult{}).
		Select(winnerSelect).
		Joins("JOIN users ON users.id = lottery_results.user_id").
		Joins("JOIN positions ON positions.id = lottery_results.position_id").
		Where("lottery_results.campaign_id = ?", campaignID).
		Order("lottery_results.rank asc, lottery_results.drawn_at asc").
		Scan(&out).Error
	return out, err
}

// CountResultsForUser returns the total number of result rows won by userID
// across all campaigns. The users.prizes_won counter must always equal this
// count.
func CountResultsForUser(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.LotteryResult{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ResultsForUser returns a page of the user's results across all campaigns,
// ordered by draw time descending. Use CountResultsForUser for pagination
// metadata.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ResultsForUser(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.LotteryResult, error) {
	var out []domain.LotteryResult
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("drawn_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// WinnerForUserInCampaign returns the user's winning entry in a campaign, or
// ErrNotFound when the user did not win (or the campaign has not been drawn).
// A user can win at most one layer per campaign per draw order, but holding
// positions in several layers may yield several wins; the lowest rank is
// returned.
func WinnerForUserInCampaign(ctx context.Context, db *gorm.DB, userID, campaignID string) (*domain.Winner, error) {
	var w domain.Winner
	err := db.WithContext(ctx).
		Model(&domain.LotteryResult{}).
		Select(winnerSelect).
		Joins("JOIN users ON users.id = lottery_results.user_id").
		Joins("JOIN positions ON positions.id = lottery_results.position_id").
		Where("lottery_results.user_id = ? AND lottery_results.campaign_id = ?", userID, campaignID).
		Order("lottery_results.rank asc").
		Limit(1).
		Scan(&w).Error
	if err != nil {
		return nil, err
	}
	if w.ResultID == "" {
		return nil, ErrNotFound
	}
	return &w, nil
}
