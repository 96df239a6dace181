package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kujilab/go-lottery-backend/internal/domain"
)

func newResultRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("result_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Campaign{},
		&domain.Position{},
		&domain.LotteryResult{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id, name string) *domain.User {
	t.Helper()
	u := &domain.User{ID: id, Name: name, Email: id + "@example.com"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return u
}

func seedResult(t *testing.T, db *gorm.DB, campaignID string, rank int, positionID, userID string, drawnAt time.Time) *domain.LotteryResult {
	t.Helper()
	r := &domain.LotteryResult{
		ID:         uuid.NewString(),
		CampaignID: campaignID,
		Rank:       rank,
		PositionID: positionID,
		UserID:     userID,
		PrizeName:  fmt.Sprintf("Prize #%d", rank),
		PrizeValue: int64(1000 * rank),
		DrawnAt:    drawnAt,
	}
	if err := CreateResult(context.Background(), db, r); err != nil {
		t.Fatalf("seed result rank %d: %v", rank, err)
	}
	return r
}

func TestCreateResult_Success(t *testing.T) {
	db := newResultRepoDB(t)
	c := seedCampaign(t, db, domain.CampaignClosed)
	seedUser(t, db, "u1", "Alice")
	pos := seedPosition(t, db, c.ID, 1, 1, 1, domain.PositionSold, "u1")

	r := &domain.LotteryResult{
		ID:         uuid.NewString(),
		CampaignID: c.ID,
		Rank:       1,
		PositionID: pos.ID,
		UserID:     "u1",
		PrizeName:  "1等賞",
		PrizeValue: 10000,
		DrawnAt:    time.Now().UTC(),
	}
	if err := CreateResult(context.Background(), db, r); err != nil {
		t.Fatalf("CreateResult: %v", err)
	}

	var got domain.LotteryResult
	if err := db.First(&got, "id = ?", r.ID).Error; err != nil {
		t.Fatalf("load result: %v", err)
	}
	if got.PrizeName != "1等賞" || got.PrizeValue != 10000 || got.Rank != 1 {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestCreateResult_DuplicateRankRejected(t *testing.T) {
	db := newResultRepoDB(t)
	c := seedCampaign(t, db, domain.CampaignClosed)
	seedUser(t, db, "u1", "Alice")
	seedUser(t, db, "u2", "Bob")
	p1 := seedPosition(t, db, c.ID, 1, 1, 1, domain.PositionSold, "u1")
	p2 := seedPosition(t, db, c.ID, 2, 1, 2, domain.PositionSold, "u2")

	seedResult(t, db, c.ID, 1, p1.ID, "u1", time.Now().UTC())

	// Second winner for the same (campaign, rank) violates ux_campaign_result_rank.
	dup := &domain.LotteryResult{
		ID:         uuid.NewString(),
		CampaignID: c.ID,
		Rank:       1,
		PositionID: p2.ID,
		UserID:     "u2",
		PrizeName:  "dup",
		DrawnAt:    time.Now().UTC(),
	}
	if err := CreateResult(context.Background(), db, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestCountResultsForCampaign(t *testing.T) {
	db := newResultRepoDB(t)
	c := seedCampaign(t, db, domain.CampaignClosed)
	seedUser(t, db, "u1", "Alice")
	p1 := seedPosition(t, db, c.ID, 1, 1, 1, domain.PositionSold, "u1")

	n, err := CountResultsForCampaign(context.Background(), db, c.ID)
	if err != nil || n != 0 {
		t.Fatalf("empty campaign: n=%d err=%v", n, err)
	}

	seedResult(t, db, c.ID, 1, p1.ID, "u1", time.Now().UTC())
	n, err = CountResultsForCampaign(context.Background(), db, c.ID)
	if err != nil || n != 1 {
		t.Fatalf("after seed: n=%d err=%v", n, err)
	}
}

func TestResultsForCampaign_JoinsAndOrder(t *testing.T) {
	db := newResultRepoDB(t)
	c := seedCampaign(t, db, domain.CampaignClosed)
	seedUser(t, db, "u1", "Alice")
	seedUser(t, db, "u2", "Bob")
	p1 := seedPosition(t, db, c.ID, 1, 1, 1, domain.PositionSold, "u1")
	p2 := seedPosition(t, db, c.ID, 2, 2, 2, domain.PositionSold, "u2")

	drawn := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	// Insert higher rank first; query must still return rank 1 first.
	seedResult(t, db, c.ID, 2, p2.ID, "u2", drawn)
	seedResult(t, db, c.ID, 1, p1.ID, "u1", drawn)

	winners, err := ResultsForCampaign(context.Background(), db, c.ID)
	if err != nil {
		t.Fatalf("ResultsForCampaign: %v", err)
	}
	if len(winners) != 2 {
		t.Fatalf("expected 2 winners, got %d", len(winners))
	}
	first, second := winners[0], winners[1]
	if first.Rank != 1 || second.Rank != 2 {
		t.Fatalf("order mismatch: ranks %d,%d", first.Rank, second.Rank)
	}
	if first.UserName != "Alice" || second.UserName != "Bob" {
		t.Fatalf("user join mismatch: %q %q", first.UserName, second.UserName)
	}
	if first.Row != 1 || first.Col != 1 || second.Row != 2 || second.Col != 2 {
		t.Fatalf("position join mismatch: %+v / %+v", first, second)
	}
	if first.PrizeName != "Prize #1" || second.PrizeValue != 2000 {
		t.Fatalf("prize snapshot mismatch: %+v / %+v", first, second)
	}
}

func TestResultsForCampaign_EmptyWhenNotDrawn(t *testing.T) {
	db := newResultRepoDB(t)
	c := seedCampaign(t, db, domain.CampaignClosed)

	winners, err := ResultsForCampaign(context.Background(), db, c.ID)
	if err != nil {
		t.Fatalf("ResultsForCampaign: %v", err)
	}
	if len(winners) != 0 {
		t.Fatalf("expected no winners, got %d", len(winners))
	}
}

func TestResultsForUser_PaginationAndOrder(t *testing.T) {
	db := newResultRepoDB(t)
	seedUser(t, db, "u1", "Alice")

	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	// Three wins across three campaigns at increasing times.
	for i := 1; i <= 3; i++ {
		c := seedCampaign(t, db, domain.CampaignDrawn)
		p := seedPosition(t, db, c.ID, 1, 1, 1, domain.PositionSold, "u1")
		seedResult(t, db, c.ID, 1, p.ID, "u1", base.Add(time.Duration(i)*time.Hour))
	}

	total, err := CountResultsForUser(context.Background(), db, "u1")
	if err != nil || total != 3 {
		t.Fatalf("CountResultsForUser: total=%d err=%v", total, err)
	}

	// First page of two: newest first.
	page, err := ResultsForUser(context.Background(), db, "u1", 0, 2)
	if err != nil {
		t.Fatalf("ResultsForUser page 1: %v", err)
	}
	if len(page) != 2 || !page[0].DrawnAt.After(page[1].DrawnAt) {
		t.Fatalf("page 1 order/size unexpected: %+v", page)
	}

	// Second page holds the oldest entry.
	page, err = ResultsForUser(context.Background(), db, "u1", 2, 2)
	if err != nil {
		t.Fatalf("ResultsForUser page 2: %v", err)
	}
	if len(page) != 1 || !page[0].DrawnAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("page 2 unexpected: %+v", page)
	}
}

func TestWinnerForUserInCampaign(t *testing.T) {
	db := newResultRepoDB(t)
	c := seedCampaign(t, db, domain.CampaignDrawn)
	seedUser(t, db, "u1", "Alice")
	seedUser(t, db, "u2", "Bob")
	p1 := seedPosition(t, db, c.ID, 2, 1, 2, domain.PositionSold, "u1")
	p2 := seedPosition(t, db, c.ID, 3, 1, 3, domain.PositionSold, "u1")
	seedResult(t, db, c.ID, 3, p2.ID, "u1", time.Now().UTC())
	seedResult(t, db, c.ID, 2, p1.ID, "u1", time.Now().UTC())

	// Winner with several entries gets the lowest rank.
	w, err := WinnerForUserInCampaign(context.Background(), db, "u1", c.ID)
	if err != nil {
		t.Fatalf("WinnerForUserInCampaign: %v", err)
	}
	if w.Rank != 2 || w.UserName != "Alice" || w.PositionID != p1.ID {
		t.Fatalf("unexpected winner: %+v", w)
	}

	// Non-winner gets ErrNotFound, not an empty struct.
	if _, err := WinnerForUserInCampaign(context.Background(), db, "u2", c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-winner, got %v", err)
	}
}
