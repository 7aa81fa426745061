package fetch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestHostSemaphore_AcquireRelease_Basic(t *testing.T) {
	pool := NewHostSemaphorePool(2, testLogger())

	if err := pool.Acquire(context.Background(), "host-a"); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if err := pool.Acquire(context.Background(), "host-a"); err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := pool.Acquire(ctx, "host-a"); err == nil {
		t.Fatal("expected third acquire to fail, but it succeeded")
	}

	pool.Release("host-a")
	if err := pool.Acquire(context.Background(), "host-a"); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	pool.Release("host-a")
	pool.Release("host-a")
}

func TestHostSemaphore_MultipleHosts(t *testing.T) {
	pool := NewHostSemaphorePool(1, testLogger())

	if err := pool.Acquire(context.Background(), "host-a"); err != nil {
		t.Fatalf("host-a acquire failed: %v", err)
	}
	if err := pool.Acquire(context.Background(), "host-b"); err != nil {
		t.Fatalf("host-b acquire failed: %v", err)
	}
	if pool.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", pool.Len())
	}
	pool.Release("host-a")
	pool.Release("host-b")
}

func TestHostSemaphore_BoundsConcurrency(t *testing.T) {
	pool := NewHostSemaphorePool(3, testLogger())
	var active, peak atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pool.Acquire(context.Background(), "host"); err != nil {
				t.Error(err)
				return
			}
			defer pool.Release("host")
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
		}()
	}
	wg.Wait()

	if peak.Load() > 3 {
		t.Errorf("peak concurrency %d exceeds limit 3", peak.Load())
	}
}

func TestHostSemaphore_ReleaseUnknownHost(t *testing.T) {
	pool := NewHostSemaphorePool(1, testLogger())
	pool.Release("never-acquired") // logs, must not panic
	if pool.Len() != 0 {
		t.Errorf("expected 0 entries, got %d", pool.Len())
	}
}
