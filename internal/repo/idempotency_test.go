package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kujilab/go-lottery-backend/internal/domain"
)

func newIdemRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("idem_repo_test_%d.db", time.Now().UnixNano()))
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
	if err := db.AutoMigrate(&domain.Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestIdempotency_CreateAndGet(t *testing.T) {
	db := newIdemRepoDB(t)
	ctx := context.Background()

	rec, err := CreateIdempotency(ctx, db, "u1", "c1", "key-1", 200, time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if rec.ID == "" || rec.Status != 200 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "u1", "c1", "key-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if got.ID != rec.ID {
		t.Fatalf("record mismatch: %q vs %q", got.ID, rec.ID)
	}
}

func TestIdempotency_ScopedPerUserAndCampaign(t *testing.T) {
	db := newIdemRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := CreateIdempotency(ctx, db, "u1", "c1", "k", 200, time.Hour); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Same key in a different scope is a different record, not a hit.
	if _, err := GetIdempotency(ctx, db, "u2", "c1", "k", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other user: expected ErrNotFound, got %v", err)
	}
	if _, err := GetIdempotency(ctx, db, "u1", "c2", "k", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other campaign: expected ErrNotFound, got %v", err)
	}
	// And creating them succeeds despite the shared key value.
	if _, err := CreateIdempotency(ctx, db, "u2", "c1", "k", 200, time.Hour); err != nil {
		t.Fatalf("create for other user: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "u1", "c2", "k", 200, time.Hour); err != nil {
		t.Fatalf("create for other campaign: %v", err)
	}
}

func TestIdempotency_DuplicateTuple(t *testing.T) {
	db := newIdemRepoDB(t)
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "u1", "c1", "k", 200, time.Hour); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "u1", "c1", "k", 200, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestIdempotency_Expiry(t *testing.T) {
	db := newIdemRepoDB(t)
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "u1", "c1", "k", 200, time.Millisecond); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Query "now" past the TTL: the record is invisible.
	later := time.Now().UTC().Add(time.Second)
	if _, err := GetIdempotency(ctx, db, "u1", "c1", "k", later); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired record to be ErrNotFound, got %v", err)
	}
}

func TestIdempotency_EmptyCampaignIDShortCircuits(t *testing.T) {
	db := newIdemRepoDB(t)

	if _, err := GetIdempotency(context.Background(), db, "u1", "  ", "k", time.Now().UTC()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for blank campaign id, got %v", err)
	}
}
