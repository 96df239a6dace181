package repo

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestDrawLockKey_StableAndPositive(t *testing.T) {
	id := uuid.NewString()

	k1 := DrawLockKey(id)
	k2 := DrawLockKey(id)
	if k1 != k2 {
		t.Fatalf("key not stable: %d vs %d", k1, k2)
	}
	if k1 < 0 || k1 > 0x7fffffff {
		t.Fatalf("key out of int31 range: %d", k1)
	}
}

func TestDrawLockKey_PrefixOnly(t *testing.T) {
	// Only the first 16 bytes participate, so identifiers sharing that
	// prefix share a key.
	a := "0123456789abcdef-one"
	b := "0123456789abcdef-two"
	if DrawLockKey(a) != DrawLockKey(b) {
		t.Fatalf("shared prefix should map to the same key")
	}
	// Short identifiers hash whole.
	if DrawLockKey("x") == DrawLockKey("y") {
		t.Fatalf("distinct short ids should (here) map to distinct keys")
	}
}

func TestProcessLocker_Exclusion(t *testing.T) {
	l := NewProcessLocker()
	ctx := context.Background()

	rel1, ok, err := l.TryLock(ctx, nil, 42)
	if err != nil || !ok || rel1 == nil {
		t.Fatalf("first TryLock: ok=%v err=%v", ok, err)
	}

	// Second holder is refused immediately.
	rel2, ok, err := l.TryLock(ctx, nil, 42)
	if err != nil || ok || rel2 != nil {
		t.Fatalf("second TryLock should fail fast: ok=%v rel=%p err=%v", ok, rel2, err)
	}

	// Different key is independent.
	rel3, ok, err := l.TryLock(ctx, nil, 43)
	if err != nil || !ok {
		t.Fatalf("independent key TryLock: ok=%v err=%v", ok, err)
	}
	rel3()

	rel1()
	// Released: acquirable again.
	rel4, ok, err := l.TryLock(ctx, nil, 42)
	if err != nil || !ok {
		t.Fatalf("TryLock after release: ok=%v err=%v", ok, err)
	}
	rel4()
}

func TestProcessLocker_ReleaseIdempotent(t *testing.T) {
	l := NewProcessLocker()
	ctx := context.Background()

	rel, ok, _ := l.TryLock(ctx, nil, 7)
	if !ok {
		t.Fatalf("TryLock failed")
	}
	rel()
	rel() // double release must not free someone else's lock

	rel2, ok, _ := l.TryLock(ctx, nil, 7)
	if !ok {
		t.Fatalf("re-acquire after double release failed")
	}
	rel() // stale release from the first holder
	// The lock must still be held by holder 2.
	if _, ok, _ := l.TryLock(ctx, nil, 7); ok {
		t.Fatalf("stale release freed an active lock")
	}
	rel2()
}

func TestProcessLocker_ConcurrentSingleWinner(t *testing.T) {
	l := NewProcessLocker()
	ctx := context.Background()

	const attempts = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		rels []func()
	)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			rel, ok, err := l.TryLock(ctx, nil, 99)
			if err != nil {
				t.Errorf("TryLock: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				rels = append(rels, rel)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	rels[0]()
}
