// Package services – ResultService
//
// This file implements the ResultService, the read-only query surface over
// committed draw results. It never sees partial draws: results only become
// visible once the draw transaction has committed, so these queries need no
// locking beyond normal transactional read consistency.
package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/kujilab/go-lottery-backend/internal/domain"
	"github.com/kujilab/go-lottery-backend/internal/repo"
)

// ResultService answers queries about committed draws.
type ResultService struct {
	// DB is the GORM handle used for all result queries.
	DB *gorm.DB
}

// ResultsForCampaign returns the campaign's winner list ordered by prize rank
// ascending then draw time. It returns ErrCampaignNotFound when the campaign
// does not exist; a drawn-but-empty winner list is valid (every layer
// undersold).
func (s *ResultService) ResultsForCampaign(ctx context.Context, campaignID string) ([]domain.Winner, error) {
	tr := otel.Tracer("services/ResultService")
	ctx, span := tr.Start(ctx, "ResultsForCampaign",
		trace.WithAttributes(attribute.String("campaign.id", campaignID)),
	)
	defer span.End()

	if _, err := repo.GetCampaign(ctx, s.DB, campaignID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return repo.ResultsForCampaign(ctx, s.DB, campaignID)
}

// ResultsForUser returns a page of the user's results across all campaigns,
// ordered by draw time descending, plus the total count. It applies defaults
// for invalid page/pageSize.
func (s *ResultService) ResultsForUser(ctx context.Context, userID string, page, pageSize int) ([]domain.LotteryResult, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountResultsForUser(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.LotteryResult{}, 0, nil
	}

	items, err := repo.ResultsForUser(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// WinnerForUserInCampaign answers "did I win" for one user in one campaign
// without leaking other users' results. It returns ErrWinnerNotFound when the
// user has no winning entry (including when the campaign is not drawn yet).
func (s *ResultService) WinnerForUserInCampaign(ctx context.Context, userID, campaignID string) (*domain.Winner, error) {
	w, err := repo.WinnerForUserInCampaign(ctx, s.DB, userID, campaignID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrWinnerNotFound
		}
		return nil, err
	}
	return w, nil
}
