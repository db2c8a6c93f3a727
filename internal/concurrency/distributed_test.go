package concurrency

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestDistributedSemaphore(t *testing.T, capacity int, lease time.Duration) (*DistributedSemaphore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	sem, err := NewDistributedSemaphore(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()), "test:sem", capacity, lease)
	if err != nil {
		mr.Close()
		t.Fatalf("failed to create distributed semaphore: %v", err)
	}

	return sem, mr
}

func TestDistributedSemaphore_AcquireUpToCapacity(t *testing.T) {
	sem, mr := newTestDistributedSemaphore(t, 2, time.Minute)
	defer mr.Close()
	defer sem.Close()

	ctx := context.Background()

	ok1, err := sem.TryAcquire(ctx, "holder-1")
	if err != nil || !ok1 {
		t.Fatalf("expected holder-1 to acquire: ok=%v err=%v", ok1, err)
	}

	ok2, err := sem.TryAcquire(ctx, "holder-2")
	if err != nil || !ok2 {
		t.Fatalf("expected holder-2 to acquire: ok=%v err=%v", ok2, err)
	}

	ok3, err := sem.TryAcquire(ctx, "holder-3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok3 {
		t.Fatal("expected holder-3 to be rejected: semaphore at capacity")
	}
}

func TestDistributedSemaphore_ReleaseFreesSlot(t *testing.T) {
	sem, mr := newTestDistributedSemaphore(t, 1, time.Minute)
	defer mr.Close()
	defer sem.Close()

	ctx := context.Background()

	ok, err := sem.TryAcquire(ctx, "holder-1")
	if err != nil || !ok {
		t.Fatalf("expected acquire to succeed: ok=%v err=%v", ok, err)
	}

	if err := sem.Release(ctx, "holder-1"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	ok, err = sem.TryAcquire(ctx, "holder-2")
	if err != nil || !ok {
		t.Fatalf("expected holder-2 to acquire after release: ok=%v err=%v", ok, err)
	}
}

func TestDistributedSemaphore_ExpiredLeaseIsEvicted(t *testing.T) {
	sem, mr := newTestDistributedSemaphore(t, 1, 10*time.Millisecond)
	defer mr.Close()
	defer sem.Close()

	ctx := context.Background()

	ok, err := sem.TryAcquire(ctx, "holder-1")
	if err != nil || !ok {
		t.Fatalf("expected acquire to succeed: ok=%v err=%v", ok, err)
	}

	// The lease expiry is a sorted-set score compared against the
	// process clock, so let real time pass the 10ms lease.
	time.Sleep(50 * time.Millisecond)

	ok, err = sem.TryAcquire(ctx, "holder-2")
	if err != nil || !ok {
		t.Fatalf("expected holder-2 to acquire after holder-1's lease expired: ok=%v err=%v", ok, err)
	}
}

func TestDistributedSemaphore_Available(t *testing.T) {
	sem, mr := newTestDistributedSemaphore(t, 3, time.Minute)
	defer mr.Close()
	defer sem.Close()

	ctx := context.Background()

	if _, err := sem.TryAcquire(ctx, "holder-1"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	avail, err := sem.Available(ctx)
	if err != nil {
		t.Fatalf("available failed: %v", err)
	}
	if avail != 2 {
		t.Errorf("available = %d, want 2", avail)
	}
}
