package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kujilab/go-lottery-backend/internal/domain"
	"github.com/kujilab/go-lottery-backend/internal/http/middleware"
	"github.com/kujilab/go-lottery-backend/internal/repo"
	"github.com/kujilab/go-lottery-backend/internal/services"
)

// ---------- test DB + seeding ----------

func newLotteryDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:lottery_handlers_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Enforce FKs and migrate schemas
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Campaign{},
		&domain.Position{},
		&domain.Prize{},
		&domain.LotteryResult{},
		&domain.Idempotency{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// seedDrawableCampaign creates a closed base-2 campaign with all three cells
// sold: (1,1) to winner1, (2,1) and (2,2) to winner2.
func seedDrawableCampaign(t *testing.T, db *gorm.DB, status domain.CampaignStatus) *domain.Campaign {
	t.Helper()

	c := &domain.Campaign{
		ID:             uuid.NewString(),
		Name:           "Handler Campaign",
		BaseLength:     2,
		LayerPrices:    domain.LayerPrices{1: 500, 2: 250},
		TotalPositions: 3,
		SoldPositions:  3,
		Status:         status,
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("seed campaign: %v", err)
	}
	for _, u := range []string{"winner1", "winner2"} {
		if err := db.Create(&domain.User{ID: u, Name: u, Email: u + "@example.com"}).Error; err != nil {
			t.Fatalf("seed user %s: %v", u, err)
		}
	}
	cells := []struct {
		row, col, layer int
		owner           string
	}{
		{1, 1, 1, "winner1"},
		{2, 1, 2, "winner2"},
		{2, 2, 2, "winner2"},
	}
	for _, cell := range cells {
		p := &domain.Position{
			ID:         uuid.NewString(),
			CampaignID: c.ID,
			Row:        cell.row,
			Col:        cell.col,
			Layer:      cell.layer,
			Status:     domain.PositionSold,
			UserID:     cell.owner,
		}
		if err := db.Create(p).Error; err != nil {
			t.Fatalf("seed position: %v", err)
		}
	}
	return c
}

// newHandlerRig wires a real draw + result service over db into a Gin engine,
// with the idempotency validator installed exactly as the router does.
func newHandlerRig(t *testing.T, db *gorm.DB) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	drawSvc := services.NewDrawService(db)
	drawSvc.IntN = func(int) int { return 0 }
	resultSvc := &services.ResultService{DB: db}
	h := New(drawSvc, resultSvc, time.Hour)

	r := gin.New()
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{},
		func(ctx context.Context, userID, campaignID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, campaignID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))
	r.POST("/campaigns/:id/draw", h.DrawCampaign)
	r.GET("/campaigns/:id/results", h.CampaignResults)
	r.GET("/campaigns/:id/results/me", h.MyCampaignResult)
	r.GET("/me/results", h.MyResults)
	return r
}

func doReq(t *testing.T, r *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json %q: %v", w.Body.String(), err)
	}
	return body
}

// ---------- DrawCampaign ----------

func TestDrawCampaign_Success(t *testing.T) {
	db := newLotteryDB(t)
	c := seedDrawableCampaign(t, db, domain.CampaignClosed)
	r := newHandlerRig(t, db)

	w := doReq(t, r, http.MethodPost, "/campaigns/"+c.ID+"/draw", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["campaign_id"] != c.ID {
		t.Fatalf("campaign_id mismatch: %v", body["campaign_id"])
	}
	if body["winners_count"] != float64(2) || body["total_prizes"] != float64(2) {
		t.Fatalf("unexpected summary: %v", body)
	}
	winners, _ := body["winners"].([]any)
	if len(winners) != 2 {
		t.Fatalf("winners length = %d", len(winners))
	}
}

func TestDrawCampaign_InvalidUUID(t *testing.T) {
	db := newLotteryDB(t)
	r := newHandlerRig(t, db)

	w := doReq(t, r, http.MethodPost, "/campaigns/not-a-uuid/draw", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decodeBody(t, w); body["code"] != ErrCodeBadRequest {
		t.Fatalf("code = %v", body["code"])
	}
}

func TestDrawCampaign_NotFound(t *testing.T) {
	db := newLotteryDB(t)
	r := newHandlerRig(t, db)

	w := doReq(t, r, http.MethodPost, "/campaigns/"+uuid.NewString()+"/draw", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["code"] != ErrCodeNotFound {
		t.Fatalf("code = %v", body["code"])
	}
}

func TestDrawCampaign_AlreadyDrawnConflict(t *testing.T) {
	db := newLotteryDB(t)
	c := seedDrawableCampaign(t, db, domain.CampaignClosed)
	r := newHandlerRig(t, db)

	if w := doReq(t, r, http.MethodPost, "/campaigns/"+c.ID+"/draw", nil); w.Code != http.StatusOK {
		t.Fatalf("first draw: %d", w.Code)
	}
	w := doReq(t, r, http.MethodPost, "/campaigns/"+c.ID+"/draw", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("second draw status = %d body=%s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["code"] != ErrCodeConflict {
		t.Fatalf("code = %v", body["code"])
	}
}

func TestDrawCampaign_NotDrawable(t *testing.T) {
	db := newLotteryDB(t)
	c := seedDrawableCampaign(t, db, domain.CampaignDraft)
	r := newHandlerRig(t, db)

	w := doReq(t, r, http.MethodPost, "/campaigns/"+c.ID+"/draw", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["code"] != ErrCodeInvalidState {
		t.Fatalf("code = %v", body["code"])
	}
}

func TestDrawCampaign_IdempotentReplay(t *testing.T) {
	db := newLotteryDB(t)
	c := seedDrawableCampaign(t, db, domain.CampaignClosed)
	r := newHandlerRig(t, db)

	headers := map[string]string{
		"X-User-ID":       "operator-1",
		"Idempotency-Key": "retry-key-1",
	}

	w := doReq(t, r, http.MethodPost, "/campaigns/"+c.ID+"/draw", headers)
	if w.Code != http.StatusOK {
		t.Fatalf("first draw: %d body=%s", w.Code, w.Body.String())
	}
	if w.Header().Get("Idempotency-Replayed") != "" {
		t.Fatalf("first response must not be marked replayed")
	}

	// Same key + user + campaign: the committed summary is served back
	// instead of a 409, in the same shape as the original response.
	w = doReq(t, r, http.MethodPost, "/campaigns/"+c.ID+"/draw", headers)
	if w.Code != http.StatusOK {
		t.Fatalf("replay: %d body=%s", w.Code, w.Body.String())
	}
	if w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("replay response missing Idempotency-Replayed header")
	}
	body := decodeBody(t, w)
	if body["campaign_id"] != c.ID {
		t.Fatalf("replay campaign_id = %v", body["campaign_id"])
	}
	if body["winners_count"] != float64(2) || body["total_prizes"] != float64(2) {
		t.Fatalf("replay summary mismatch: %v", body)
	}
	if body["drawn_at"] == nil {
		t.Fatalf("replay summary missing drawn_at")
	}
	winners, _ := body["winners"].([]any)
	if len(winners) != 2 {
		t.Fatalf("replay winners length = %d", len(winners))
	}

	// Still only one committed result set.
	n, err := repo.CountResultsForCampaign(context.Background(), db, c.ID)
	if err != nil || n != 2 {
		t.Fatalf("results after replay: n=%d err=%v", n, err)
	}

	// A different key retries for real and hits the conflict.
	headers["Idempotency-Key"] = "retry-key-2"
	if w := doReq(t, r, http.MethodPost, "/campaigns/"+c.ID+"/draw", headers); w.Code != http.StatusConflict {
		t.Fatalf("fresh key should conflict, got %d", w.Code)
	}
}

func TestDrawCampaign_ReplayLookupFailure(t *testing.T) {
	db := newLotteryDB(t)
	r := newHandlerRig(t, db)

	// An idempotency record whose campaign cannot be loaded: the replay must
	// answer 503, never fall through to a fresh draw attempt.
	ghostCampaign := uuid.NewString()
	if _, err := repo.CreateIdempotency(context.Background(), db, "operator-1", ghostCampaign, "retry-key-9", http.StatusOK, time.Hour); err != nil {
		t.Fatalf("seed idempotency: %v", err)
	}

	w := doReq(t, r, http.MethodPost, "/campaigns/"+ghostCampaign+"/draw", map[string]string{
		"X-User-ID":       "operator-1",
		"Idempotency-Key": "retry-key-9",
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d body=%s, want 503", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["code"] != ErrCodeInternal {
		t.Fatalf("code = %v", body["code"])
	}
}
