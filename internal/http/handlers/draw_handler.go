// Draw HTTP handlers.
//
// This file exposes the endpoint that executes a campaign draw:
//   - POST /campaigns/{id}/draw
//
// Handlers are transport-thin: they validate input, call the draw service,
// and translate service errors into the HTTP error taxonomy (404 missing,
// 409 already drawn / in progress, 422 not eligible yet).
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// draw request exists for (user, campaign, key), the handler rebuilds the
// committed draw summary and sets `Idempotency-Replayed: true` instead of
// attempting (and failing) a second draw. A replay that cannot be served
// answers 503, never a fresh draw: the client holds proof of a committed
// request and must not be told it conflicts with itself.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kujilab/go-lottery-backend/internal/domain"
	"github.com/kujilab/go-lottery-backend/internal/http/middleware"
	"github.com/kujilab/go-lottery-backend/internal/repo"
	"github.com/kujilab/go-lottery-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// DrawService defines the draw operation consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type DrawService interface {
	// DrawLottery executes the one-time atomic draw for a campaign.
	DrawLottery(ctx context.Context, campaignID string) (*services.DrawSummary, error)
}

// ResultService defines the result query surface consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ResultService interface {
	// ResultsForCampaign returns the winner list of a drawn campaign.
	ResultsForCampaign(ctx context.Context, campaignID string) ([]domain.Winner, error)
	// ResultsForUser returns a page of a user's results and the total count.
	ResultsForUser(ctx context.Context, userID string, page, pageSize int) ([]domain.LotteryResult, int64, error)
	// WinnerForUserInCampaign answers "did I win" for one user and campaign.
	WinnerForUserInCampaign(ctx context.Context, userID, campaignID string) (*domain.Winner, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for draws and result queries. It depends on
// abstract service interfaces to keep transport concerns separate from
// business logic.
type Handlers struct {
	drawSvc   DrawService
	resultSvc ResultService

	// IdempotencyTTL bounds how long a recorded draw request can be replayed.
	IdempotencyTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
func New(drawSvc DrawService, resultSvc ResultService, idemTTL time.Duration) *Handlers {
	return &Handlers{drawSvc: drawSvc, resultSvc: resultSvc, IdempotencyTTL: idemTTL}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

// db extracts the GORM handle from the concrete result service, when
// available, for idempotency bookkeeping and ETag stats.
func (h *Handlers) db() *gorm.DB {
	if svc, ok := h.resultSvc.(*services.ResultService); ok {
		return svc.DB
	}
	return nil
}

//
// Handlers
//

// DrawCampaign godoc
// @ID          drawCampaign
// @Summary     Execute the draw for a campaign
// @Description Runs the one-time atomic draw: one winner per prized layer with sold positions.
// @Description Supports idempotency via the Idempotency-Key header (same key → committed results, no second draw).
// @Tags        Draws
// @Produce     json
//
// @Param       X-User-ID        header  string  false "Operator user ID"  example(admin-1)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"
// @Param       id               path    string  true  "Campaign ID (UUID)"  format(uuid)
//
// @Success     200  {object}  services.DrawSummary          "Draw summary with winners"
// @Failure     400  {object}  handlers.ErrorResponse        "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse        "Campaign not found"
// @Failure     409  {object}  handlers.ErrorResponse        "Already drawn or draw in progress"
// @Failure     422  {object}  handlers.ErrorResponse        "Campaign not eligible for drawing"
// @Failure     500  {object}  handlers.ErrorResponse        "Internal error"
// @Router      /campaigns/{id}/draw [post]
func (h *Handlers) DrawCampaign(c *gin.Context) {
	ctx := c.Request.Context()
	campaignID := c.Param("id")

	if _, err := uuid.Parse(campaignID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "campaign id must be a UUID")
		return
	}

	// Serve replays without re-attempting the draw.
	if middleware.IsReplay(c) {
		h.serveReplay(c, campaignID)
		return
	}

	summary, err := h.drawSvc.DrawLottery(ctx, campaignID)
	if err != nil {
		h.failDraw(c, err)
		return
	}

	h.recordIdempotency(c, campaignID, http.StatusOK)
	ok(c, http.StatusOK, summary)
}

// serveReplay answers a replayed draw request with the committed outcome,
// shaped exactly like a fresh draw's DrawSummary. Lookup failures answer 503:
// the idempotency record proves the draw committed, so re-running it would
// wrongly report a conflict to the original caller.
func (h *Handlers) serveReplay(c *gin.Context, campaignID string) {
	ctx := c.Request.Context()

	db := h.db()
	if db == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "replay unavailable")
		return
	}
	campaign, err := repo.GetCampaign(ctx, db, campaignID)
	if err != nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "replay lookup failed")
		return
	}
	winners, err := h.resultSvc.ResultsForCampaign(ctx, campaignID)
	if err != nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "replay lookup failed")
		return
	}

	summary := services.DrawSummary{
		CampaignID:     campaign.ID,
		CampaignName:   campaign.Name,
		TotalPositions: campaign.TotalPositions,
		SoldPositions:  campaign.SoldPositions,
		WinnersCount:   len(winners),
		Winners:        winners,
	}
	for layer := 1; layer <= campaign.BaseLength; layer++ {
		if campaign.LayerPrices[layer] > 0 {
			summary.TotalPrizes++
		}
	}
	if campaign.DrawnAt != nil {
		summary.DrawnAt = *campaign.DrawnAt
	} else if len(winners) > 0 {
		summary.DrawnAt = winners[0].DrawnAt
	}

	c.Header("Idempotency-Replayed", "true")
	ok(c, http.StatusOK, summary)
}

// failDraw maps draw service errors onto the HTTP error taxonomy.
func (h *Handlers) failDraw(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrCampaignNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, services.ErrCampaignNotFound.Error())
	case services.IsConflict(err):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrCampaignNotDrawable):
		fail(c, http.StatusUnprocessableEntity, ErrCodeInvalidState, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeDrawFailed, err.Error())
	}
}

// recordIdempotency persists the idempotency record for a completed draw
// request, when the client supplied a key. Best effort: a failed insert only
// forfeits replay detection for retries of this key.
func (h *Handlers) recordIdempotency(c *gin.Context, campaignID string, status int) {
	key, present := middleware.GetIdempotencyKey(c)
	if !present {
		return
	}
	db := h.db()
	if db == nil {
		return
	}
	ttl := h.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	_, _ = repo.CreateIdempotency(c.Request.Context(), db, userID(c), campaignID, key, status, ttl)
}
