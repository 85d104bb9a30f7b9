package flight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroup_SharesComputation(t *testing.T) {
	var g Group
	var calls atomic.Int32
	release := make(chan struct{})

	fn := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "done", nil
	}

	var wg sync.WaitGroup
	results := make([]any, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := g.Do(context.Background(), "k", fn)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	require.Eventually(t, func() bool { return g.Waiters("k") == 3 }, time.Second, time.Millisecond)
	// 等待者计数先于加入 singleflight，留出加入的时间
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, "done", v)
	}
	assert.Zero(t, g.Waiters("k"))
	assert.Zero(t, g.Running())
}

// 最后一个等待者离开时共享计算被取消
func TestGroup_LastWaiterCancels(t *testing.T) {
	var g Group
	started := make(chan struct{})
	aborted := make(chan error, 1)

	fn := func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		aborted <- ctx.Err()
		return nil, ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := g.Do(ctx, "k", fn)
		errc <- err
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	select {
	case err := <-aborted:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("共享计算没有被取消")
	}
	require.Eventually(t, func() bool { return g.Running() == 0 }, time.Second, time.Millisecond)
}

// 仍有等待者时，一个调用方离开不影响计算
func TestGroup_RemainingWaiterKeepsComputation(t *testing.T) {
	var g Group
	release := make(chan struct{})

	fn := func(ctx context.Context) (any, error) {
		select {
		case <-release:
			return 42, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := g.Do(ctx, "k", fn)
		errc <- err
	}()
	valc := make(chan any, 1)
	go func() {
		v, err := g.Do(context.Background(), "k", fn)
		assert.NoError(t, err)
		valc <- v
	}()

	require.Eventually(t, func() bool { return g.Waiters("k") == 2 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, 1, g.Waiters("k"))

	close(release)
	assert.Equal(t, 42, <-valc)
}

// 放弃后的新调用重新开始计算
func TestGroup_RestartsAfterAbandon(t *testing.T) {
	var g Group
	var calls atomic.Int32

	block := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Do(ctx, "k", block)
	assert.ErrorIs(t, err, context.Canceled)

	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Do(ctx, "k", block)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	v, err := g.Do(context.Background(), "k", func(context.Context) (any, error) {
		calls.Add(1)
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
}

func TestGroup_PropagatesError(t *testing.T) {
	var g Group
	boom := errors.New("boom")
	_, err := g.Do(context.Background(), "k", func(context.Context) (any, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}
