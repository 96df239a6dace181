// Result HTTP handlers.
//
// This file exposes REST endpoints for committed draw results:
//   - GET /campaigns/{id}/results     (public winner list, ETag support)
//   - GET /campaigns/{id}/results/me  ("did I win" for the caller)
//   - GET /me/results                 (caller's results, paginated, ETag support)
//
// Results are append-only once a draw commits, so (count, max created_at) is
// a complete change indicator and backs the weak ETags emitted here.
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kujilab/go-lottery-backend/internal/domain"
	"github.com/kujilab/go-lottery-backend/internal/repo"
	"github.com/kujilab/go-lottery-backend/internal/services"
	"github.com/kujilab/go-lottery-backend/internal/utils"
)

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// CampaignResultsResponse wraps a campaign's winner list.
type CampaignResultsResponse struct {
	CampaignID string          `json:"campaign_id"`
	Winners    []domain.Winner `json:"winners"`
}

// UserResultsResponse wraps a page of the caller's results and pagination
// information.
type UserResultsResponse struct {
	Results    []domain.LotteryResult `json:"results"`
	Pagination Pagination             `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// CampaignResults godoc
// @ID          campaignResults
// @Summary     List a campaign's winners
// @Description Returns the committed winner list, ordered by prize rank. Supports weak ETag via If-None-Match.
// @Tags        Results
// @Produce     json
//
// @Param       id             path    string  true  "Campaign ID (UUID)"          format(uuid)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.CampaignResultsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Campaign not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /campaigns/{id}/results [get]
func (h *Handlers) CampaignResults(c *gin.Context) {
	ctx := c.Request.Context()
	campaignID := c.Param("id")
	if _, err := uuid.Parse(campaignID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "campaign id must be a UUID")
		return
	}

	// ETag pre-check (best effort).
	if db := h.db(); db != nil {
		count, maxTS, err := repo.CampaignResultsStats(ctx, db, campaignID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"results:%s:%d:%d"`, campaignID, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	winners, err := h.resultSvc.ResultsForCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, services.ErrCampaignNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "campaign not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if winners == nil {
		winners = []domain.Winner{}
	}
	ok(c, http.StatusOK, CampaignResultsResponse{CampaignID: campaignID, Winners: winners})
}

// MyCampaignResult godoc
// @ID          myCampaignResult
// @Summary     Did I win this campaign?
// @Description Returns the caller's winning entry in the campaign, or 404 when the caller did not win.
// @Tags        Results
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Campaign ID (UUID)"     format(uuid)
//
// @Success     200  {object} domain.Winner
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "No winning entry"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /campaigns/{id}/results/me [get]
func (h *Handlers) MyCampaignResult(c *gin.Context) {
	campaignID := c.Param("id")
	if _, err := uuid.Parse(campaignID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "campaign id must be a UUID")
		return
	}

	w, err := h.resultSvc.WinnerForUserInCampaign(c.Request.Context(), userID(c), campaignID)
	if err != nil {
		if errors.Is(err, services.ErrWinnerNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "no winning entry")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, w)
}

// MyResults godoc
// @ID          myResults
// @Summary     List my results (paginated)
// @Description Returns a page of the caller's results across all campaigns, newest first. Supports weak ETag.
// @Tags        Results
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.UserResultsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /me/results [get]
func (h *Handlers) MyResults(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if db := h.db(); db != nil {
		count, maxTS, err := repo.UserResultsStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"user-results:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.resultSvc.ResultsForUser(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := UserResultsResponse{
		Results: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}
