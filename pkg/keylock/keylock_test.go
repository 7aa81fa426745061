package keylock

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestDo_ConcurrentCallsShareOneExecution(t *testing.T) {
	g := New[string](time.Minute, testLogger())
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	fn := func() (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "article", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = g.Do(context.Background(), "Bloodborne", fn)
	}()
	<-started
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = g.Do(context.Background(), "Bloodborne", fn)
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{"article", "article"}, results)
}

func TestDo_DifferentKeysRunConcurrently(t *testing.T) {
	g := New[int](time.Minute, testLogger())
	started := make(chan struct{}, 2)
	both := make(chan struct{})

	fn := func(n int) func() (int, error) {
		return func() (int, error) {
			started <- struct{}{}
			<-both
			return n, nil
		}
	}

	var wg sync.WaitGroup
	for i, key := range []string{"a", "b"} {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			v, err := g.Do(context.Background(), key, fn(i))
			assert.NoError(t, err)
			assert.Equal(t, i, v)
		}(i, key)
	}

	for range 2 {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("calls for different keys did not run concurrently")
		}
	}
	close(both)
	wg.Wait()
}

func TestDo_ReleasedAfterError(t *testing.T) {
	g := New[string](time.Minute, testLogger())
	boom := errors.New("fetch failed")

	_, err := g.Do(context.Background(), "k", func() (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)

	v, err := g.Do(context.Background(), "k", func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestDo_StaleEntryClearedAfterWaitTimeout(t *testing.T) {
	g := New[string](30*time.Millisecond, testLogger())
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	go func() {
		_, _ = g.Do(context.Background(), "k", func() (string, error) {
			close(started)
			<-release
			return "stale", nil
		})
	}()
	<-started

	v, err := g.Do(context.Background(), "k", func() (string, error) { return "fresh", nil })
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
}

func TestDo_WaiterHonoursContext(t *testing.T) {
	g := New[string](0, testLogger())
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	go func() {
		_, _ = g.Do(context.Background(), "k", func() (string, error) {
			close(started)
			<-release
			return "", nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := g.Do(ctx, "k", func() (string, error) { return "never", nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_NilPointerResult(t *testing.T) {
	g := New[*int](time.Minute, testLogger())
	v, err := g.Do(context.Background(), "k", func() (*int, error) { return nil, nil })
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDo_SlowSingleCallerRunsOnce(t *testing.T) {
	g := New[int](20*time.Millisecond, testLogger())
	var calls atomic.Int32

	v, err := g.Do(context.Background(), "k", func() (int, error) {
		calls.Add(1)
		time.Sleep(80 * time.Millisecond)
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_InitiatorCancelStillServesWaiter(t *testing.T) {
	g := New[string](time.Minute, testLogger())
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	fn := func() (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "article", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	initiatorErr := make(chan error, 1)
	go func() {
		_, err := g.Do(ctx, "k", fn)
		initiatorErr <- err
	}()
	<-started

	waiter := make(chan string, 1)
	go func() {
		v, err := g.Do(context.Background(), "k", fn)
		assert.NoError(t, err)
		waiter <- v
	}()

	cancel()
	assert.ErrorIs(t, <-initiatorErr, context.Canceled)
	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case v := <-waiter:
		assert.Equal(t, "article", v)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never received the shared result")
	}
	assert.Equal(t, int32(1), calls.Load())
}
