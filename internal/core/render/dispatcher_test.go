package render

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/core/eventbus"
	"github.com/dep2p/go-hypergrid/internal/core/workerpool"
	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

// fakeRenderPool 记录派发的任务
type fakeRenderPool struct {
	mu   sync.Mutex
	jobs []pkgif.RenderJob
	err  error
}

func (f *fakeRenderPool) Dispatch(_ context.Context, job pkgif.RenderJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return f.err
}

func (f *fakeRenderPool) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

// fakeRecorder 记录回调结果
type fakeRecorder struct {
	mu      sync.Mutex
	samples []types.MetricSample
	frames  map[string]int
}

func (f *fakeRecorder) Ingest(s types.MetricSample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, s)
}

func (f *fakeRecorder) RecordFrame(id string, _ time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frames == nil {
		f.frames = make(map[string]int)
	}
	f.frames[id]++
}

func newTestDispatcher(t *testing.T, cfg config.RenderConfig, opts ...Option) *Dispatcher {
	t.Helper()
	d, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDispatch_RunsOnPool(t *testing.T) {
	rp := &fakeRenderPool{}
	pool := workerpool.New(2)
	defer pool.Close()

	d := newTestDispatcher(t, config.DefaultRenderConfig(), WithRenderPool(rp), WithWorkerPool(pool))
	require.NoError(t, d.Start())

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, d.Dispatch(context.Background(), pkgif.RenderJob{SessionID: id, Target: "t"}))
	}
	assert.Eventually(t, func() bool {
		return d.Stats().Dispatched == 3
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, rp.count())
}

func TestDispatch_Errors(t *testing.T) {
	d := newTestDispatcher(t, config.DefaultRenderConfig())
	assert.ErrorIs(t, d.Dispatch(context.Background(), pkgif.RenderJob{SessionID: "a"}), ErrNoRenderPool)

	d = newTestDispatcher(t, config.DefaultRenderConfig(), WithRenderPool(&fakeRenderPool{}))
	assert.ErrorIs(t, d.Dispatch(context.Background(), pkgif.RenderJob{}), types.ErrValidation)

	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Dispatch(context.Background(), pkgif.RenderJob{SessionID: "a"}), ErrClosed)
}

func TestDispatch_QueueFull(t *testing.T) {
	cfg := config.DefaultRenderConfig()
	cfg.QueueSize = 1
	rp := &fakeRenderPool{}
	d := newTestDispatcher(t, cfg, WithRenderPool(rp))

	// 未启动时队列不会被消费
	require.NoError(t, d.Dispatch(context.Background(), pkgif.RenderJob{SessionID: "a"}))
	assert.ErrorIs(t, d.Dispatch(context.Background(), pkgif.RenderJob{SessionID: "b"}), ErrQueueFull)
	assert.Equal(t, uint64(1), d.Stats().Rejected)

	require.NoError(t, d.Start())
	require.NoError(t, d.Close())
	assert.Equal(t, 1, rp.count())
}

func TestDispatch_FailureCounted(t *testing.T) {
	rp := &fakeRenderPool{err: errors.New("no capacity")}
	d := newTestDispatcher(t, config.DefaultRenderConfig(), WithRenderPool(rp))
	require.NoError(t, d.Start())

	require.NoError(t, d.Dispatch(context.Background(), pkgif.RenderJob{SessionID: "a"}))
	assert.Eventually(t, func() bool {
		return d.Stats().Failed == 1
	}, time.Second, 10*time.Millisecond)
}

func TestHandleCallback(t *testing.T) {
	rec := &fakeRecorder{}
	mock := clock.NewMock()
	mock.Set(time.Unix(1_700_000_000, 0))
	d := newTestDispatcher(t, config.DefaultRenderConfig(), WithRecorder(rec), WithClock(mock))

	require.NoError(t, d.HandleCallback(pkgif.RenderCallback{SessionID: "a", Frame: []byte{1}}))
	require.NoError(t, d.HandleCallback(pkgif.RenderCallback{
		SessionID: "a",
		Sample:    &types.MetricSample{LatencyMs: 12},
	}))

	require.Len(t, rec.samples, 1)
	assert.Equal(t, "a", rec.samples[0].SessionID)
	assert.Equal(t, mock.Now().UnixMilli(), rec.samples[0].Timestamp)
	assert.Equal(t, 1, rec.frames["a"])

	st := d.Stats()
	assert.Equal(t, uint64(1), st.Frames)
	assert.Equal(t, uint64(1), st.Samples)
}

func TestHandleCallback_Validation(t *testing.T) {
	d := newTestDispatcher(t, config.DefaultRenderConfig())

	cases := []pkgif.RenderCallback{
		{},
		{SessionID: "a"},
		{SessionID: "a", Frame: []byte{1}, Sample: &types.MetricSample{}},
		{SessionID: "a", Sample: &types.MetricSample{SessionID: "b"}},
		{SessionID: "a", Sample: &types.MetricSample{ErrorRate: 2}},
	}
	for i, cb := range cases {
		assert.ErrorIs(t, d.HandleCallback(cb), types.ErrValidation, "case %d", i)
	}
}

func TestHandleCallback_RateLimited(t *testing.T) {
	cfg := config.DefaultRenderConfig()
	cfg.RatePerSession = 1
	cfg.Burst = 2
	mock := clock.NewMock()
	mock.Set(time.Unix(1_700_000_000, 0))
	d := newTestDispatcher(t, cfg, WithClock(mock))

	frame := pkgif.RenderCallback{SessionID: "a", Frame: []byte{1}}
	require.NoError(t, d.HandleCallback(frame))
	require.NoError(t, d.HandleCallback(frame))
	assert.ErrorIs(t, d.HandleCallback(frame), ErrThrottled)

	// 其它会话不受影响
	require.NoError(t, d.HandleCallback(pkgif.RenderCallback{SessionID: "b", Frame: []byte{1}}))

	mock.Add(time.Second)
	require.NoError(t, d.HandleCallback(frame))
	assert.Equal(t, uint64(1), d.Stats().Throttled)
}

func TestDispatcher_DispatchesCreatedSessions(t *testing.T) {
	bus := eventbus.NewBus()
	defer bus.Close()
	em, err := bus.Emitter(new(types.SessionChanged))
	require.NoError(t, err)

	rp := &fakeRenderPool{}
	d := newTestDispatcher(t, config.DefaultRenderConfig(), WithRenderPool(rp), WithEventBus(bus))
	require.NoError(t, d.Start())

	rec := types.SessionRecord{ID: "s1", Definition: types.SessionDefinition{Target: "site"}, ProxyIDs: []string{"p1"}}
	require.NoError(t, em.Emit(types.SessionChanged{Kind: types.ChangeUpdated, Record: rec}))
	require.NoError(t, em.Emit(types.SessionChanged{Kind: types.ChangeCreated, Record: rec}))

	assert.Eventually(t, func() bool { return rp.count() == 1 }, time.Second, 10*time.Millisecond)
	rp.mu.Lock()
	assert.Equal(t, pkgif.RenderJob{SessionID: "s1", Target: "site", ProxyIDs: []string{"p1"}}, rp.jobs[0])
	rp.mu.Unlock()
}
