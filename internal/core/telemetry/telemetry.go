package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/util/logger"
	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

var log = logger.Logger("telemetry")

// ErrClosed 遥测已关闭
var ErrClosed = errors.New("telemetry: closed")

// DegradedFunc 会话错误率超过阈值时的回调
type DegradedFunc func(sessionID string)

// Option 遥测选项
type Option func(*Telemetry) error

// WithClock 设置时钟
func WithClock(c clock.Clock) Option {
	return func(t *Telemetry) error {
		t.clock = c
		return nil
	}
}

// WithEventBus 发布 MetricsFolded，并在会话删除时丢弃其聚合
func WithEventBus(bus pkgif.EventBus) Option {
	return func(t *Telemetry) error {
		em, err := bus.Emitter(new(types.MetricsFolded))
		if err != nil {
			return err
		}
		sub, err := bus.Subscribe(new(types.SessionChanged), pkgif.Named("telemetry"))
		if err != nil {
			return multierr.Append(err, em.Close())
		}
		t.emitter = em
		t.sub = sub
		return nil
	}
}

// WithDegradedFunc 设置退化回调
func WithDegradedFunc(fn DegradedFunc) Option {
	return func(t *Telemetry) error {
		t.SetDegradedFunc(fn)
		return nil
	}
}

// Telemetry 会话指标聚合
type Telemetry struct {
	cfg   config.TelemetryConfig
	clock clock.Clock

	emitter    pkgif.Emitter
	sub        pkgif.Subscription
	onDegraded atomic.Pointer[DegradedFunc]

	bufMu sync.Mutex
	buf   []types.MetricSample

	mu       sync.RWMutex
	sessions map[string]*types.SessionAggregate
	degraded map[string]bool
	window   *latencyWindow
	total    uint64

	metrics *collectors

	startOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    atomic.Bool
}

var _ pkgif.MetricsSink = (*Telemetry)(nil)

// New 创建遥测
func New(cfg config.TelemetryConfig, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Telemetry{
		cfg:      cfg,
		clock:    clock.New(),
		buf:      make([]types.MetricSample, 0, min(cfg.BufferSize, 1024)),
		sessions: make(map[string]*types.SessionAggregate),
		degraded: make(map[string]bool),
		window:   newLatencyWindow(cfg.WindowSize),
		metrics:  newCollectors(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			cancel()
			return nil, err
		}
	}
	return t, nil
}

// SetDegradedFunc 设置退化回调，nil 表示不回调
func (t *Telemetry) SetDegradedFunc(fn DegradedFunc) {
	if fn == nil {
		t.onDegraded.Store(nil)
		return
	}
	t.onDegraded.Store(&fn)
}

// Registry 返回遥测收集器所在的 Registry
func (t *Telemetry) Registry() *prometheus.Registry {
	return t.metrics.registry
}

// Ingest 缓冲一个样本，缓冲区满时丢弃最旧的样本
func (t *Telemetry) Ingest(s types.MetricSample) {
	if t.closed.Load() || s.SessionID == "" {
		return
	}
	t.metrics.samples.Inc()

	t.bufMu.Lock()
	if len(t.buf) >= t.cfg.BufferSize {
		copy(t.buf, t.buf[1:])
		t.buf = t.buf[:len(t.buf)-1]
		t.metrics.dropped.Inc()
	}
	t.buf = append(t.buf, s)
	t.bufMu.Unlock()
}

// RecordFrame 记录会话收到一帧渲染结果，帧内容不保存
func (t *Telemetry) RecordFrame(sessionID string, at time.Time) {
	if sessionID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	agg := t.aggregate(sessionID)
	agg.Frames++
	agg.LastFrameAt = at
}

// Forget 丢弃会话的聚合
func (t *Telemetry) Forget(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
	delete(t.degraded, sessionID)
	t.metrics.sessions.Set(float64(len(t.sessions)))
}

// Session 返回单个会话的聚合
func (t *Telemetry) Session(id string) (types.SessionAggregate, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	agg, ok := t.sessions[id]
	if !ok {
		return types.SessionAggregate{}, false
	}
	return *agg, true
}

// Sessions 返回全部会话聚合，按会话 ID 排序
func (t *Telemetry) Sessions() []types.SessionAggregate {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.SessionAggregate, 0, len(t.sessions))
	for _, agg := range t.sessions {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Global 返回全局聚合
func (t *Telemetry) Global() types.GlobalAggregate {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.globalLocked()
}

// ============================================================================
//                              折叠
// ============================================================================

// FoldNow 立即折叠缓冲的样本
//
// 有会话变化时发布 MetricsFolded 并返回该事件。
func (t *Telemetry) FoldNow() types.MetricsFolded {
	t.bufMu.Lock()
	pending := t.buf
	t.buf = make([]types.MetricSample, 0, cap(pending))
	t.bufMu.Unlock()

	now := t.clock.Now()
	ev := types.MetricsFolded{At: now}
	if len(pending) == 0 {
		return ev
	}

	start := time.Now()
	alpha := t.cfg.EWMAAlpha
	changed := make(map[string]struct{})
	var newlyDegraded []string

	t.mu.Lock()
	for _, s := range pending {
		agg := t.aggregate(s.SessionID)
		latency := float64(s.LatencyMs)
		throughput := float64(s.Throughput)
		errRate := float64(s.ErrorRate)
		if agg.Samples == 0 {
			agg.LatencyMs, agg.Throughput, agg.ErrorRate = latency, throughput, errRate
		} else {
			agg.LatencyMs = ewma(alpha, agg.LatencyMs, latency)
			agg.Throughput = ewma(alpha, agg.Throughput, throughput)
			agg.ErrorRate = ewma(alpha, agg.ErrorRate, errRate)
		}
		agg.Samples++
		if s.Timestamp > 0 {
			agg.LastSeen = time.UnixMilli(s.Timestamp)
		} else {
			agg.LastSeen = now
		}
		t.window.add(latency)
		t.metrics.latency.Observe(latency)
		changed[s.SessionID] = struct{}{}
	}
	t.total += uint64(len(pending))

	ev.Changed = make([]types.SessionAggregate, 0, len(changed))
	for id := range changed {
		agg := t.sessions[id]
		ev.Changed = append(ev.Changed, *agg)
		over := agg.ErrorRate > t.cfg.DegradedErrorRate
		if over && !t.degraded[id] {
			newlyDegraded = append(newlyDegraded, id)
		}
		if over {
			t.degraded[id] = true
		} else {
			delete(t.degraded, id)
		}
	}
	ev.Global = t.globalLocked()
	t.metrics.sessions.Set(float64(len(t.sessions)))
	t.mu.Unlock()

	sort.Slice(ev.Changed, func(i, j int) bool { return ev.Changed[i].SessionID < ev.Changed[j].SessionID })
	sort.Strings(newlyDegraded)
	t.metrics.foldDuration.Observe(time.Since(start).Seconds())

	if fn := t.onDegraded.Load(); fn != nil {
		for _, id := range newlyDegraded {
			log.Info("会话错误率超过阈值", "session", id, "threshold", t.cfg.DegradedErrorRate)
			(*fn)(id)
		}
	}
	if t.emitter != nil {
		if err := t.emitter.Emit(ev); err != nil {
			log.Debug("发布折叠事件失败", "error", err)
		}
	}
	return ev
}

// aggregate 返回会话聚合，不存在时创建；调用方持有 mu
func (t *Telemetry) aggregate(id string) *types.SessionAggregate {
	agg, ok := t.sessions[id]
	if !ok {
		agg = &types.SessionAggregate{SessionID: id}
		t.sessions[id] = agg
	}
	return agg
}

func (t *Telemetry) globalLocked() types.GlobalAggregate {
	g := types.GlobalAggregate{Samples: t.total}
	for _, agg := range t.sessions {
		if agg.Samples == 0 {
			continue
		}
		g.Sessions++
		g.MeanLatencyMs += agg.LatencyMs
		g.MeanThroughput += agg.Throughput
		g.MeanErrorRate += agg.ErrorRate
	}
	if g.Sessions > 0 {
		n := float64(g.Sessions)
		g.MeanLatencyMs /= n
		g.MeanThroughput /= n
		g.MeanErrorRate /= n
	}
	g.P95LatencyMs = t.window.quantile(0.95)
	return g
}

func ewma(alpha, prev, x float64) float64 {
	return alpha*x + (1-alpha)*prev
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 启动折叠循环
func (t *Telemetry) Start() error {
	if t.closed.Load() {
		return ErrClosed
	}
	t.startOnce.Do(func() {
		t.wg.Add(1)
		go t.foldLoop(t.clock.Ticker(t.cfg.FoldInterval.Duration()))

		if t.sub != nil {
			t.wg.Add(1)
			go t.watchSessions()
		}
	})
	return nil
}

func (t *Telemetry) foldLoop(ticker *clock.Ticker) {
	defer t.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.FoldNow()
		}
	}
}

// watchSessions 会话删除后丢弃其聚合
func (t *Telemetry) watchSessions() {
	defer t.wg.Done()

	for {
		select {
		case <-t.ctx.Done():
			return
		case ev, ok := <-t.sub.Out():
			if !ok {
				return
			}
			if changed, ok := ev.(types.SessionChanged); ok && changed.Kind == types.ChangeDeleted {
				t.Forget(changed.Record.ID)
			}
		}
	}
}

// Close 停止折叠循环，折叠剩余样本
func (t *Telemetry) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.cancel()
	t.wg.Wait()
	t.FoldNow()

	var err error
	if t.sub != nil {
		err = multierr.Append(err, t.sub.Close())
	}
	if t.emitter != nil {
		err = multierr.Append(err, t.emitter.Close())
	}
	return err
}
