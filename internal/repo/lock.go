// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the per-campaign draw lock: a bounded
// integer key derived from the campaign identifier plus two non-blocking
// try-lock implementations with transaction-end release semantics.
package repo

import (
	"context"
	"hash/fnv"
	"sync"

	"gorm.io/gorm"
)

// lockKeyPrefixLen is the fixed number of leading identifier bytes hashed
// into the lock key. Hashing a fixed-length prefix keeps the key stable for
// a given campaign regardless of identifier length.
const lockKeyPrefixLen = 16

// DrawLockKey converts a campaign identifier into a bounded positive integer
// suitable for keyed advisory locking. It applies FNV-1a to the first
// lockKeyPrefixLen bytes of the identifier and masks the result positive.
// The same campaign always maps to the same key.
func DrawLockKey(campaignID string) int64 {
	s := campaignID
	if len(s) > lockKeyPrefixLen {
		s = s[:lockKeyPrefixLen]
	}
	h := fnv.New32a()
	// fnv's Write never fails.
	_, _ = h.Write([]byte(s))
	return int64(h.Sum32() & 0x7fffffff)
}

// DrawLocker is the mutual-exclusion contract the draw engine relies on.
// TryLock must be non-blocking: it either acquires the lock for key inside
// the given transaction handle and returns ok=true, or returns ok=false
// immediately when another holder has it. It never waits.
//
// The returned release func must be invoked after the surrounding
// transaction has committed or rolled back; implementations whose locks are
// released by the database at transaction end return a no-op.
type DrawLocker interface {
	TryLock(ctx context.Context, tx *gorm.DB, key int64) (release func(), ok bool, err error)
}

// AdvisoryLocker acquires Postgres transaction-scoped advisory locks. The
// database releases the lock automatically at commit or rollback, so the
// release func is a no-op. Use this implementation when the service runs in
// multiple processes against a shared Postgres.
type AdvisoryLocker struct{}

// TryLock issues pg_try_advisory_xact_lock(key) on the transaction's
// connection. ok=false means another transaction holds the lock.
func (AdvisoryLocker) TryLock(ctx context.Context, tx *gorm.DB, key int64) (func(), bool, error) {
	var got bool
	if err := tx.WithContext(ctx).Raw("SELECT pg_try_advisory_xact_lock(?)", key).Scan(&got).Error; err != nil {
		return nil, false, err
	}
	return func() {}, got, nil
}

// ProcessLocker is an in-process keyed try-lock for single-process
// deployments (the SQLite setup, and all tests). The caller must invoke the
// returned release func once the draw transaction has ended.
type ProcessLocker struct {
	mu   sync.Mutex
	held map[int64]struct{}
}

// NewProcessLocker returns an empty in-process locker.
func NewProcessLocker() *ProcessLocker {
	return &ProcessLocker{held: make(map[int64]struct{})}
}

// TryLock acquires key if it is free and returns a release func that frees
// it again. ok=false when the key is already held; release is nil in that
// case and must not be called.
func (l *ProcessLocker) TryLock(_ context.Context, _ *gorm.DB, key int64) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[key]; taken {
		return nil, false, nil
	}
	l.held[key] = struct{}{}
	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}
	return release, true, nil
}
