// Package services – DrawService
//
// This file implements the DrawService, the one component allowed to produce
// lottery results. A draw is a single atomic operation per campaign: it takes
// a non-blocking per-campaign lock, validates that the campaign is eligible
// and has never been drawn, selects one winning sold position per prized
// layer, persists the results and the winners' aggregate counters, and
// transitions the campaign to its terminal drawn status. Everything up to the
// commit happens inside one transaction; winner notifications are dispatched
// only after the commit and never affect the outcome.
//
// Service-level errors (ErrCampaignNotFound, ErrCampaignNotDrawable,
// ErrAlreadyDrawn, ErrDrawInProgress) are returned for predictable cases so
// handlers can map them to HTTP results consistently.
//
// Observability: DrawLottery is OpenTelemetry-instrumented and draw outcomes
// are counted in Prometheus.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/kujilab/go-lottery-backend/internal/domain"
	"github.com/kujilab/go-lottery-backend/internal/repo"
)

var (
	// drawsTotal counts draw attempts by outcome. Outcomes mirror the error
	// taxonomy surfaced to callers plus "success".
	drawsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lottery_draws_total",
			Help: "Total number of draw attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// drawWinners counts winners produced by committed draws.
	drawWinners = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lottery_draw_winners_total",
			Help: "Total number of winners produced by committed draws.",
		},
	)
)

func init() {
	prometheus.MustRegister(drawsTotal, drawWinners)
}

// prizeLocales enumerates the locales the synthetic prize label supports.
// The first entry is the fallback.
var prizeLocales = language.NewMatcher([]language.Tag{
	language.Japanese,
	language.English,
})

// DrawSummary is the structured result of a committed draw.
//
// WinnersCount may be smaller than TotalPrizes when some prized layers had no
// sold positions; those layers are skipped, not failed. Winners are ordered
// by prize rank ascending.
type DrawSummary struct {
	CampaignID     string          `json:"campaign_id"`
	CampaignName   string          `json:"campaign_name"`
	TotalPositions int             `json:"total_positions"`
	SoldPositions  int             `json:"sold_positions"`
	TotalPrizes    int             `json:"total_prizes"`
	WinnersCount   int             `json:"winners_count"`
	DrawnAt        time.Time       `json:"drawn_at"`
	Winners        []domain.Winner `json:"winners"`
}

// DrawService executes draws. It enforces at-most-once semantics per
// campaign: the per-campaign try-lock serializes concurrent attempts and the
// results table records which campaigns are already done.
type DrawService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Locker provides the per-campaign non-blocking mutual exclusion.
	Locker repo.DrawLocker
	// Notifier receives post-commit winner events. Optional; nil disables
	// dispatch.
	Notifier Notifier

	// PrizeLocale selects the language of synthetic prize labels for layers
	// without a configured Prize row.
	PrizeLocale language.Tag

	// IntN returns a uniform random int in [0,n). Defaults to the process
	// PRNG; tests inject a deterministic source. Fairness, not
	// unpredictability, is the requirement here.
	IntN func(n int) int
}

// NewDrawService constructs a DrawService with the default PRNG, locker, and
// notifier.
func NewDrawService(db *gorm.DB) *DrawService {
	return &DrawService{
		DB:          db,
		Locker:      repo.NewProcessLocker(),
		Notifier:    LogNotifier{},
		PrizeLocale: language.Japanese,
	}
}

// DrawLottery runs the complete draw for campaignID and returns its summary.
//
// Preconditions, checked inside the transaction in this order:
//  1. the campaign exists (else ErrCampaignNotFound);
//  2. it has never been drawn: no result rows and not in drawn status
//     (else ErrAlreadyDrawn);
//  3. it is eligible: closed, or published and sold out / past its end date
//     (else ErrCampaignNotDrawable).
//
// Concurrency: the campaign's lock key is try-locked first; a second
// concurrent caller fails fast with ErrDrawInProgress instead of queueing.
// The transaction runs at serializable isolation where the driver supports
// selecting one, so readers never observe a partially-drawn campaign.
//
// On any failure the whole transaction rolls back: no partial results, no
// partial status transition, lock released.
func (s *DrawService) DrawLottery(ctx context.Context, campaignID string) (*DrawSummary, error) {
	tr := otel.Tracer("services/DrawService")
	ctx, span := tr.Start(ctx, "DrawLottery",
		trace.WithAttributes(attribute.String("campaign.id", campaignID)),
	)
	defer span.End()

	key := repo.DrawLockKey(campaignID)

	var (
		summary *DrawSummary
		release func()
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rel, locked, err := s.Locker.TryLock(ctx, tx, key)
		if err != nil {
			return err
		}
		if !locked {
			return ErrDrawInProgress
		}
		release = rel

		out, err := s.drawTx(ctx, tx, campaignID)
		if err != nil {
			return err
		}
		summary = out
		return nil
	}, drawTxOptions(s.DB)...)
	if release != nil {
		release()
	}
	if err != nil {
		drawsTotal.WithLabelValues(drawOutcome(err)).Inc()
		return nil, err
	}

	drawsTotal.WithLabelValues("success").Inc()
	drawWinners.Add(float64(summary.WinnersCount))
	span.SetAttributes(attribute.Int("draw.winners", summary.WinnersCount))

	// Post-commit, fire-and-forget. Detached from the request context so an
	// impatient caller cannot cancel deliveries of a committed draw.
	go s.notifyWinners(context.WithoutCancel(ctx), summary)

	return summary, nil
}

// drawTx performs the locked portion of the draw inside tx.
func (s *DrawService) drawTx(ctx context.Context, tx *gorm.DB, campaignID string) (*DrawSummary, error) {
	campaign, err := repo.GetCampaign(ctx, tx, campaignID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}

	// Already drawn? Checked before eligibility so a finished campaign keeps
	// answering with the same conflict, not an eligibility complaint.
	if campaign.Status == domain.CampaignDrawn {
		return nil, ErrAlreadyDrawn
	}
	if n, err := repo.CountResultsForCampaign(ctx, tx, campaignID); err != nil {
		return nil, err
	} else if n > 0 {
		return nil, ErrAlreadyDrawn
	}

	soldCount, err := repo.CountSoldPositions(ctx, tx, campaignID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if !drawable(campaign, soldCount, now) {
		return nil, fmt.Errorf("%w: status is %q", ErrCampaignNotDrawable, campaign.Status)
	}

	summary := &DrawSummary{
		CampaignID:     campaign.ID,
		CampaignName:   campaign.Name,
		TotalPositions: campaign.TotalPositions,
		SoldPositions:  int(soldCount),
		DrawnAt:        now,
	}

	for layer := 1; layer <= campaign.BaseLength; layer++ {
		price, ok := campaign.LayerPrices[layer]
		if !ok || price <= 0 {
			continue
		}
		summary.TotalPrizes++

		pool, err := repo.SoldPositionsInLayer(ctx, tx, campaignID, layer)
		if err != nil {
			return nil, err
		}
		if len(pool) == 0 {
			// Expected when a layer undersells: the layer is skipped, not failed.
			log.Warn().
				Str("campaign_id", campaignID).
				Int("layer", layer).
				Msg("layer has no sold positions, skipping")
			continue
		}

		winner, err := s.drawLayer(ctx, tx, campaign, layer, price, pool, now)
		if err != nil {
			return nil, err
		}
		summary.Winners = append(summary.Winners, *winner)
		summary.WinnersCount++
	}

	if err := repo.MarkCampaignDrawn(ctx, tx, campaignID, now); err != nil {
		return nil, err
	}
	return summary, nil
}

// drawLayer selects one winner uniformly from the layer's sold positions and
// records the result. A user holding several positions in the layer wins with
// probability proportional to their holdings.
func (s *DrawService) drawLayer(ctx context.Context, tx *gorm.DB, campaign *domain.Campaign, layer int, price int64, pool []domain.Position, drawnAt time.Time) (*domain.Winner, error) {
	pos := pool[s.intn(len(pool))]

	prizeName, prizeValue, err := s.resolvePrize(ctx, tx, campaign.ID, layer, price)
	if err != nil {
		return nil, err
	}

	user, err := repo.GetUser(ctx, tx, pos.UserID)
	if err != nil {
		return nil, fmt.Errorf("winner user %s: %w", pos.UserID, err)
	}

	result := &domain.LotteryResult{
		ID:         uuid.NewString(),
		CampaignID: campaign.ID,
		Rank:       layer,
		PositionID: pos.ID,
		UserID:     pos.UserID,
		PrizeName:  prizeName,
		PrizeValue: prizeValue,
		DrawnAt:    drawnAt,
	}
	if err := repo.CreateResult(ctx, tx, result); err != nil {
		return nil, err
	}
	if err := repo.IncrementPrizesWon(ctx, tx, pos.UserID); err != nil {
		return nil, err
	}

	return &domain.Winner{
		ResultID:   result.ID,
		CampaignID: campaign.ID,
		Rank:       layer,
		PrizeName:  prizeName,
		PrizeValue: prizeValue,
		PositionID: pos.ID,
		Row:        pos.Row,
		Col:        pos.Col,
		UserID:     pos.UserID,
		UserName:   user.Name,
		DrawnAt:    drawnAt,
	}, nil
}

// resolvePrize prefers a configured Prize row for the layer; a layer without
// one gets a synthetic label from its price value. A failing lookup aborts the
// draw: results are append-only, so committing a guessed prize would record
// the wrong name/value forever.
func (s *DrawService) resolvePrize(ctx context.Context, tx *gorm.DB, campaignID string, layer int, price int64) (string, int64, error) {
	p, err := repo.PrizeForRank(ctx, tx, campaignID, layer)
	if err != nil {
		return "", 0, fmt.Errorf("prize lookup for rank %d: %w", layer, err)
	}
	if p != nil {
		return p.Name, p.Value, nil
	}
	return s.prizeLabel(layer), price, nil
}

// prizeLabel renders the synthetic prize name for a layer rank in the
// configured locale.
func (s *DrawService) prizeLabel(rank int) string {
	// Match by index: the matcher may decorate the returned tag.
	_, idx, _ := prizeLocales.Match(s.PrizeLocale)
	if idx == 0 {
		return fmt.Sprintf("%d等賞", rank)
	}
	return fmt.Sprintf("Prize #%d", rank)
}

// notifyWinners dispatches one event per winner. Failures are logged and
// never escalate; the draw is defined by what was committed.
func (s *DrawService) notifyWinners(ctx context.Context, sum *DrawSummary) {
	if s.Notifier == nil {
		return
	}
	for _, w := range sum.Winners {
		ev := WinEvent{
			CampaignID:   sum.CampaignID,
			CampaignName: sum.CampaignName,
			Rank:         w.Rank,
			PrizeName:    w.PrizeName,
			PrizeValue:   w.PrizeValue,
		}
		if err := s.Notifier.NotifyUser(ctx, w.UserID, EventLotteryWin, ev); err != nil {
			log.Warn().
				Str("campaign_id", sum.CampaignID).
				Str("user_id", w.UserID).
				Int("rank", w.Rank).
				Err(err).
				Msg("winner notification failed")
		}
	}
}

// intn returns a uniform index in [0,n), using the injected source when set.
func (s *DrawService) intn(n int) int {
	if s.IntN != nil {
		return s.IntN(n)
	}
	return rand.IntN(n)
}

// drawable reports whether the campaign may be drawn right now. A closed
// campaign always may; a published one only when every position is sold or
// the sales window has ended.
func drawable(c *domain.Campaign, soldCount int64, now time.Time) bool {
	switch c.Status {
	case domain.CampaignClosed:
		return true
	case domain.CampaignPublished:
		if c.TotalPositions > 0 && soldCount >= int64(c.TotalPositions) {
			return true
		}
		return c.EndsAt != nil && c.EndsAt.Before(now)
	default:
		return false
	}
}

// drawTxOptions selects the transaction isolation for the draw. Postgres gets
// an explicit serializable level; SQLite transactions are serializable by
// default and its driver rejects explicit levels.
func drawTxOptions(db *gorm.DB) []*sql.TxOptions {
	if db.Dialector.Name() == "postgres" {
		return []*sql.TxOptions{{Isolation: sql.LevelSerializable}}
	}
	return nil
}

// drawOutcome maps a draw error to its metrics label.
func drawOutcome(err error) string {
	switch {
	case errors.Is(err, ErrCampaignNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyDrawn):
		return "already_drawn"
	case errors.Is(err, ErrDrawInProgress):
		return "in_progress"
	case errors.Is(err, ErrCampaignNotDrawable):
		return "invalid_state"
	default:
		return "error"
	}
}
