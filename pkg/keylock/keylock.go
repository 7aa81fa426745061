// Package keylock collapses concurrent work on the same key into one call.
package keylock

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// call is one in-flight execution of fn for a key
type call[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Group runs at most one call per key at a time. Callers arriving while a call
// for their key is in flight wait for it and share its result.
type Group[T any] struct {
	mu          sync.Mutex
	calls       map[string]*call[T]
	waitTimeout time.Duration
	log         *logrus.Entry
}

// New creates a Group. A waiter that joined another caller's call and stays
// blocked longer than waitTimeout clears the entry and starts its own call;
// zero waits indefinitely. The caller that started a call is never timed out.
func New[T any](waitTimeout time.Duration, log *logrus.Entry) *Group[T] {
	return &Group[T]{calls: make(map[string]*call[T]), waitTimeout: waitTimeout, log: log}
}

// Do executes fn for key, or joins the call already in flight for key.
// The entry is released when fn returns, whether it succeeded or not.
// fn keeps running when ctx ends; only this caller's wait is abandoned.
func (g *Group[T]) Do(ctx context.Context, key string, fn func() (T, error)) (T, error) {
	for {
		g.mu.Lock()
		c, joined := g.calls[key]
		if !joined {
			c = &call[T]{done: make(chan struct{})}
			g.calls[key] = c
			g.mu.Unlock()
			go g.run(key, c, fn)
			return wait(ctx, c, nil)
		}
		g.mu.Unlock()

		if g.waitTimeout <= 0 {
			return wait(ctx, c, nil)
		}
		timer := time.NewTimer(g.waitTimeout)
		v, err, stale := waitOrStale(ctx, c, timer.C)
		timer.Stop()
		if !stale {
			return v, err
		}

		g.log.WithField("key", key).Warnf("In-flight call exceeded %v, clearing stale entry", g.waitTimeout)
		g.release(key, c)
	}
}

func (g *Group[T]) run(key string, c *call[T], fn func() (T, error)) {
	defer func() {
		g.release(key, c)
		close(c.done)
	}()
	c.val, c.err = fn()
}

// release removes c for key unless a newer call has replaced it
func (g *Group[T]) release(key string, c *call[T]) {
	g.mu.Lock()
	if g.calls[key] == c {
		delete(g.calls, key)
	}
	g.mu.Unlock()
}

// Forget drops key so the next Do starts a new call.
func (g *Group[T]) Forget(key string) {
	g.mu.Lock()
	delete(g.calls, key)
	g.mu.Unlock()
}

func wait[T any](ctx context.Context, c *call[T], timeout <-chan time.Time) (T, error) {
	v, err, _ := waitOrStale(ctx, c, timeout)
	return v, err
}

// waitOrStale blocks until c finishes, ctx ends, or timeout fires (stale = true).
func waitOrStale[T any](ctx context.Context, c *call[T], timeout <-chan time.Time) (v T, err error, stale bool) {
	select {
	case <-c.done:
		return c.val, c.err, false
	case <-ctx.Done():
		return v, ctx.Err(), false
	case <-timeout:
		return v, nil, true
	}
}
