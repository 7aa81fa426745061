package fetch

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// HostSemaphorePool bounds concurrent requests per host. One pool is shared by the
// listing crawl and detail extraction so the limit holds across both.
type HostSemaphorePool struct {
	entries map[string]*semaphore.Weighted
	mu      sync.Mutex
	limit   int64
	log     *logrus.Entry
}

// NewHostSemaphorePool creates a new pool with the given per-host concurrency limit.
func NewHostSemaphorePool(maxPerHost int, log *logrus.Entry) *HostSemaphorePool {
	limit := int64(maxPerHost)
	if limit <= 0 {
		limit = 2
		log.Warnf("max_requests_per_host invalid or zero, defaulting to %d", limit)
	}
	return &HostSemaphorePool{
		entries: make(map[string]*semaphore.Weighted),
		limit:   limit,
		log:     log,
	}
}

// Acquire blocks until a permit for host is available or ctx is cancelled.
func (p *HostSemaphorePool) Acquire(ctx context.Context, host string) error {
	p.mu.Lock()
	sem, exists := p.entries[host]
	if !exists {
		sem = semaphore.NewWeighted(p.limit)
		p.entries[host] = sem
		p.log.WithFields(logrus.Fields{"host": host, "limit": p.limit}).Debug("Created new host semaphore")
	}
	p.mu.Unlock()
	return sem.Acquire(ctx, 1)
}

// Release returns one permit for host.
func (p *HostSemaphorePool) Release(host string) {
	p.mu.Lock()
	sem, exists := p.entries[host]
	p.mu.Unlock()
	if !exists {
		p.log.Errorf("hostsemaphore: Release called for unknown host: %s", host)
		return
	}
	sem.Release(1)
}

// Len returns the current number of tracked hosts.
func (p *HostSemaphorePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
