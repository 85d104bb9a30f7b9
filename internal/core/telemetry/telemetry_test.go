package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/core/eventbus"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

var epoch = time.Unix(1_700_000_000, 0)

func newTestTelemetry(t *testing.T, cfg config.TelemetryConfig, opts ...Option) *Telemetry {
	t.Helper()
	tm, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tm.Close() })
	return tm
}

func TestFold_EWMA(t *testing.T) {
	tm := newTestTelemetry(t, config.DefaultTelemetryConfig())

	tm.Ingest(types.MetricSample{SessionID: "a", LatencyMs: 100, Throughput: 10, ErrorRate: 0})
	tm.Ingest(types.MetricSample{SessionID: "a", LatencyMs: 200, Throughput: 20, ErrorRate: 0.1})
	tm.Ingest(types.MetricSample{SessionID: "b", LatencyMs: 50, Timestamp: epoch.UnixMilli()})

	ev := tm.FoldNow()
	require.Len(t, ev.Changed, 2)
	assert.Equal(t, "a", ev.Changed[0].SessionID)

	a, ok := tm.Session("a")
	require.True(t, ok)
	assert.Equal(t, uint64(2), a.Samples)
	assert.InDelta(t, 130, a.LatencyMs, 1e-9) // 0.3*200 + 0.7*100
	assert.InDelta(t, 13, a.Throughput, 1e-6)
	assert.InDelta(t, 0.03, a.ErrorRate, 1e-6)

	b, ok := tm.Session("b")
	require.True(t, ok)
	assert.True(t, b.LastSeen.Equal(epoch))

	g := tm.Global()
	assert.Equal(t, 2, g.Sessions)
	assert.Equal(t, uint64(3), g.Samples)
	assert.InDelta(t, 90, g.MeanLatencyMs, 1e-9)
	assert.Equal(t, float64(200), g.P95LatencyMs)

	// 没有新样本时不产生变化
	assert.Empty(t, tm.FoldNow().Changed)
}

func TestWindow_Quantile(t *testing.T) {
	w := newLatencyWindow(4)
	assert.Zero(t, w.quantile(0.95))

	for _, v := range []float64{5, 1, 3} {
		w.add(v)
	}
	assert.Equal(t, float64(5), w.quantile(0.95))
	assert.Equal(t, float64(3), w.quantile(0.5))

	// 窗口满后覆盖最旧的值
	w.add(2)
	w.add(0)
	assert.Equal(t, 4, w.len())
	assert.Equal(t, float64(3), w.quantile(0.95))
}

func TestIngest_BufferDropsOldest(t *testing.T) {
	cfg := config.DefaultTelemetryConfig()
	cfg.BufferSize = 2
	tm := newTestTelemetry(t, cfg)

	tm.Ingest(types.MetricSample{SessionID: "old"})
	tm.Ingest(types.MetricSample{SessionID: "a"})
	tm.Ingest(types.MetricSample{SessionID: "b"})

	ev := tm.FoldNow()
	require.Len(t, ev.Changed, 2)
	_, ok := tm.Session("old")
	assert.False(t, ok)
	assert.Equal(t, float64(1), testutil.ToFloat64(tm.metrics.dropped))
	assert.Equal(t, float64(3), testutil.ToFloat64(tm.metrics.samples))
}

func TestFold_DegradedCallback(t *testing.T) {
	var (
		mu       sync.Mutex
		degraded []string
	)
	tm := newTestTelemetry(t, config.DefaultTelemetryConfig(), WithDegradedFunc(func(id string) {
		mu.Lock()
		defer mu.Unlock()
		degraded = append(degraded, id)
	}))

	tm.Ingest(types.MetricSample{SessionID: "bad", ErrorRate: 0.9})
	tm.Ingest(types.MetricSample{SessionID: "good", ErrorRate: 0.1})
	tm.FoldNow()

	// 持续超过阈值不重复回调
	tm.Ingest(types.MetricSample{SessionID: "bad", ErrorRate: 0.9})
	tm.FoldNow()

	mu.Lock()
	assert.Equal(t, []string{"bad"}, degraded)
	mu.Unlock()
}

func TestFoldLoop_EmitsEvents(t *testing.T) {
	bus := eventbus.NewBus()
	defer bus.Close()
	sub, err := bus.Subscribe(new(types.MetricsFolded))
	require.NoError(t, err)
	defer sub.Close()

	mock := clock.NewMock()
	mock.Set(epoch)
	tm := newTestTelemetry(t, config.DefaultTelemetryConfig(), WithClock(mock), WithEventBus(bus))
	require.NoError(t, tm.Start())

	tm.Ingest(types.MetricSample{SessionID: "a", LatencyMs: 10})
	mock.Add(time.Second)

	select {
	case ev := <-sub.Out():
		folded := ev.(types.MetricsFolded)
		require.Len(t, folded.Changed, 1)
		assert.Equal(t, "a", folded.Changed[0].SessionID)
		assert.True(t, folded.At.Equal(epoch.Add(time.Second)))
	case <-time.After(time.Second):
		t.Fatal("no MetricsFolded event")
	}
}

func TestForget_OnSessionDeleted(t *testing.T) {
	bus := eventbus.NewBus()
	defer bus.Close()
	em, err := bus.Emitter(new(types.SessionChanged))
	require.NoError(t, err)
	defer em.Close()

	tm := newTestTelemetry(t, config.DefaultTelemetryConfig(), WithEventBus(bus))
	require.NoError(t, tm.Start())

	tm.Ingest(types.MetricSample{SessionID: "a", LatencyMs: 10})
	tm.FoldNow()
	tm.RecordFrame("a", epoch)

	agg, ok := tm.Session("a")
	require.True(t, ok)
	assert.Equal(t, uint64(1), agg.Frames)

	require.NoError(t, em.Emit(types.SessionChanged{Kind: types.ChangeDeleted, Record: types.SessionRecord{ID: "a"}}))
	assert.Eventually(t, func() bool {
		_, ok := tm.Session("a")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestClose_FoldsRemaining(t *testing.T) {
	tm, err := New(config.DefaultTelemetryConfig())
	require.NoError(t, err)

	tm.Ingest(types.MetricSample{SessionID: "a"})
	require.NoError(t, tm.Close())
	_, ok := tm.Session("a")
	assert.True(t, ok)

	tm.Ingest(types.MetricSample{SessionID: "b"})
	assert.ErrorIs(t, tm.Start(), ErrClosed)
	_, ok = tm.Session("b")
	assert.False(t, ok)
}

func TestRegistry_Gathers(t *testing.T) {
	tm := newTestTelemetry(t, config.DefaultTelemetryConfig())
	tm.Ingest(types.MetricSample{SessionID: "a", LatencyMs: 5})
	tm.FoldNow()

	families, err := tm.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["hypergrid_telemetry_samples_total"])
	assert.True(t, names["hypergrid_telemetry_sessions"])
	assert.True(t, names["hypergrid_telemetry_latency_ms"])
	assert.True(t, names["hypergrid_telemetry_fold_duration_seconds"])
}
