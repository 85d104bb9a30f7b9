package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type squareJob struct{ n int }

func (j squareJob) Run(_ context.Context) (any, error) {
	return j.n * j.n, nil
}

type failJob struct{}

func (failJob) Run(_ context.Context) (any, error) {
	return nil, errors.New("boom")
}

type panicJob struct{}

func (panicJob) Run(_ context.Context) (any, error) {
	panic("bad job")
}

// blockJob 记录并发数并阻塞到 release 关闭
type blockJob struct {
	active  *atomic.Int64
	peak    *atomic.Int64
	release <-chan struct{}
}

func (j blockJob) Run(_ context.Context) (any, error) {
	n := j.active.Add(1)
	for {
		p := j.peak.Load()
		if n <= p || j.peak.CompareAndSwap(p, n) {
			break
		}
	}
	<-j.release
	j.active.Add(-1)
	return nil, nil
}

func TestPool_Submit(t *testing.T) {
	p := New(2)
	defer p.Close()

	ch, err := p.Submit(context.Background(), squareJob{n: 7})
	require.NoError(t, err)
	v, err := Await[int](context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, 49, v)
}

func TestPool_ErrorsAndPanics(t *testing.T) {
	p := New(1)
	defer p.Close()

	_, err := p.Do(context.Background(), failJob{})
	assert.EqualError(t, err, "boom")

	_, err = p.Do(context.Background(), panicJob{})
	assert.Error(t, err)

	_, err = p.Submit(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilJob)

	assert.Equal(t, uint64(2), p.Stats().Failed)
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := New(3)
	var active, peak atomic.Int64
	release := make(chan struct{})

	results := make([]<-chan Result, 0, 3)
	for i := 0; i < 3; i++ {
		ch, err := p.Submit(context.Background(), blockJob{active: &active, peak: &peak, release: release})
		require.NoError(t, err)
		results = append(results, ch)
	}

	// 槽位已满，第四个任务必须等待
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.Submit(ctx, squareJob{n: 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	for _, ch := range results {
		<-ch
	}
	assert.LessOrEqual(t, peak.Load(), int64(3))
	require.NoError(t, p.Close())
}

func TestPool_CloseRejects(t *testing.T) {
	p := New(1)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err := p.Submit(context.Background(), squareJob{n: 2})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAwait_TypeMismatch(t *testing.T) {
	p := New(1)
	defer p.Close()

	ch, err := p.Submit(context.Background(), squareJob{n: 2})
	require.NoError(t, err)
	_, err = Await[string](context.Background(), ch)
	assert.Error(t, err)
}
