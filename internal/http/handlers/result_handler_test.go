package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kujilab/go-lottery-backend/internal/domain"
)

// drawCampaignOrFail runs the draw endpoint and fails the test unless it
// commits, so result tests start from a drawn campaign.
func drawCampaignOrFail(t *testing.T, r *gin.Engine, campaignID string) {
	t.Helper()
	if w := doReq(t, r, http.MethodPost, "/campaigns/"+campaignID+"/draw", nil); w.Code != http.StatusOK {
		t.Fatalf("setup draw failed: %d %s", w.Code, w.Body.String())
	}
}

// ---------- CampaignResults ----------

func TestCampaignResults_OK(t *testing.T) {
	db := newLotteryDB(t)
	c := seedDrawableCampaign(t, db, domain.CampaignClosed)
	r := newHandlerRig(t, db)
	drawCampaignOrFail(t, r, c.ID)

	w := doReq(t, r, http.MethodGet, "/campaigns/"+c.ID+"/results", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if w.Header().Get("ETag") == "" {
		t.Fatalf("missing ETag header")
	}

	body := decodeBody(t, w)
	if body["campaign_id"] != c.ID {
		t.Fatalf("campaign_id = %v", body["campaign_id"])
	}
	winners, _ := body["winners"].([]any)
	if len(winners) != 2 {
		t.Fatalf("winners length = %d", len(winners))
	}
	first, _ := winners[0].(map[string]any)
	second, _ := winners[1].(map[string]any)
	if first["rank"] != float64(1) || second["rank"] != float64(2) {
		t.Fatalf("winners not ordered by rank: %v / %v", first["rank"], second["rank"])
	}
	if first["user_id"] != "winner1" {
		t.Fatalf("rank 1 user = %v", first["user_id"])
	}
}

func TestCampaignResults_ETagNotModified(t *testing.T) {
	db := newLotteryDB(t)
	c := seedDrawableCampaign(t, db, domain.CampaignClosed)
	r := newHandlerRig(t, db)
	drawCampaignOrFail(t, r, c.ID)

	w := doReq(t, r, http.MethodGet, "/campaigns/"+c.ID+"/results", nil)
	etag := w.Header().Get("ETag")
	if w.Code != http.StatusOK || etag == "" {
		t.Fatalf("prime request: status=%d etag=%q", w.Code, etag)
	}

	w = doReq(t, r, http.MethodGet, "/campaigns/"+c.ID+"/results", map[string]string{
		"If-None-Match": etag,
	})
	if w.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("304 must have empty body, got %q", w.Body.String())
	}

	// A stale tag still gets the full list.
	w = doReq(t, r, http.MethodGet, "/campaigns/"+c.ID+"/results", map[string]string{
		"If-None-Match": `W/"results:stale:0:0"`,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("stale etag status = %d", w.Code)
	}
}

func TestCampaignResults_InvalidUUID(t *testing.T) {
	db := newLotteryDB(t)
	r := newHandlerRig(t, db)

	w := doReq(t, r, http.MethodGet, "/campaigns/nope/results", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCampaignResults_NotFound(t *testing.T) {
	db := newLotteryDB(t)
	r := newHandlerRig(t, db)

	w := doReq(t, r, http.MethodGet, "/campaigns/"+uuid.NewString()+"/results", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["code"] != ErrCodeNotFound {
		t.Fatalf("code = %v", body["code"])
	}
}

// ---------- MyCampaignResult ----------

func TestMyCampaignResult_WinnerAndNonWinner(t *testing.T) {
	db := newLotteryDB(t)
	c := seedDrawableCampaign(t, db, domain.CampaignClosed)
	r := newHandlerRig(t, db)
	drawCampaignOrFail(t, r, c.ID)

	w := doReq(t, r, http.MethodGet, "/campaigns/"+c.ID+"/results/me", map[string]string{
		"X-User-ID": "winner1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("winner status = %d body=%s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["rank"] != float64(1) || body["user_id"] != "winner1" {
		t.Fatalf("unexpected winning entry: %v", body)
	}

	w = doReq(t, r, http.MethodGet, "/campaigns/"+c.ID+"/results/me", map[string]string{
		"X-User-ID": "bystander",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("non-winner status = %d", w.Code)
	}
}

func TestMyCampaignResult_InvalidUUID(t *testing.T) {
	db := newLotteryDB(t)
	r := newHandlerRig(t, db)

	w := doReq(t, r, http.MethodGet, "/campaigns/xyz/results/me", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

// ---------- MyResults ----------

func TestMyResults_PaginationEnvelope(t *testing.T) {
	db := newLotteryDB(t)
	c := seedDrawableCampaign(t, db, domain.CampaignClosed)
	r := newHandlerRig(t, db)
	drawCampaignOrFail(t, r, c.ID)

	// winner2 owns both layer-2 cells and took rank 2.
	w := doReq(t, r, http.MethodGet, "/me/results", map[string]string{
		"X-User-ID": "winner2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	results, _ := body["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("results length = %d", len(results))
	}
	pg, _ := body["pagination"].(map[string]any)
	if pg["page"] != float64(1) || pg["page_size"] != float64(20) ||
		pg["total"] != float64(1) || pg["total_pages"] != float64(1) || pg["has_next"] != false {
		t.Fatalf("unexpected pagination: %v", pg)
	}

	// Out-of-range page keeps the total but returns no items.
	w = doReq(t, r, http.MethodGet, "/me/results?page=5&page_size=1", map[string]string{
		"X-User-ID": "winner2",
	})
	body = decodeBody(t, w)
	results, _ = body["results"].([]any)
	pg, _ = body["pagination"].(map[string]any)
	if len(results) != 0 || pg["total"] != float64(1) {
		t.Fatalf("out-of-range page: results=%d pagination=%v", len(results), pg)
	}
}

func TestMyResults_ETagNotModified(t *testing.T) {
	db := newLotteryDB(t)
	c := seedDrawableCampaign(t, db, domain.CampaignClosed)
	r := newHandlerRig(t, db)
	drawCampaignOrFail(t, r, c.ID)

	headers := map[string]string{"X-User-ID": "winner1"}
	w := doReq(t, r, http.MethodGet, "/me/results", headers)
	etag := w.Header().Get("ETag")
	if w.Code != http.StatusOK || etag == "" {
		t.Fatalf("prime request: status=%d etag=%q", w.Code, etag)
	}

	headers["If-None-Match"] = etag
	if w = doReq(t, r, http.MethodGet, "/me/results", headers); w.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", w.Code)
	}
}

func TestMyResults_EmptyForUnknownUser(t *testing.T) {
	db := newLotteryDB(t)
	r := newHandlerRig(t, db)

	w := doReq(t, r, http.MethodGet, "/me/results", map[string]string{"X-User-ID": "nobody"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decodeBody(t, w)
	results, ok := body["results"].([]any)
	if !ok || len(results) != 0 {
		t.Fatalf("expected empty results array, got %v", body["results"])
	}
	pg, _ := body["pagination"].(map[string]any)
	if pg["total"] != float64(0) {
		t.Fatalf("total = %v", pg["total"])
	}
}
