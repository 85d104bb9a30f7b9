package render

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/core/workerpool"
	"github.com/dep2p/go-hypergrid/internal/util/logger"
	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

var log = logger.Logger("render")

// limiterCacheSize 保留速率限制器的会话数上限
const limiterCacheSize = 16384

// Recorder 回调结果的接收方
type Recorder interface {
	pkgif.MetricsSink
	RecordFrame(sessionID string, at time.Time)
}

// Stats 派发统计
type Stats struct {
	Queued     int    `json:"queued"`
	Dispatched uint64 `json:"dispatched"`
	Failed     uint64 `json:"failed"`
	Frames     uint64 `json:"frames"`
	Samples    uint64 `json:"samples"`
	Throttled  uint64 `json:"throttled"`
	Rejected   uint64 `json:"rejected"`
}

// Option 派发器选项
type Option func(*Dispatcher) error

// WithRenderPool 设置外部渲染工作池
func WithRenderPool(rp pkgif.RenderPool) Option {
	return func(d *Dispatcher) error {
		d.renderer = rp
		return nil
	}
}

// WithRecorder 设置回调结果接收方
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) error {
		d.recorder = r
		return nil
	}
}

// WithWorkerPool 使用共享工作池执行派发
func WithWorkerPool(p *workerpool.Pool) Option {
	return func(d *Dispatcher) error {
		d.pool = p
		return nil
	}
}

// WithClock 设置时钟
func WithClock(c clock.Clock) Option {
	return func(d *Dispatcher) error {
		d.clock = c
		return nil
	}
}

// WithEventBus 新建会话时自动派发
func WithEventBus(bus pkgif.EventBus) Option {
	return func(d *Dispatcher) error {
		sub, err := bus.Subscribe(new(types.SessionChanged), pkgif.Named("render"))
		if err != nil {
			return err
		}
		d.sub = sub
		return nil
	}
}

// Dispatcher 渲染派发器
type Dispatcher struct {
	cfg      config.RenderConfig
	renderer pkgif.RenderPool
	recorder Recorder
	pool     *workerpool.Pool
	ownPool  bool
	clock    clock.Clock
	sub      pkgif.Subscription

	queue    chan pkgif.RenderJob
	queueMu  sync.RWMutex
	limiters *lru.Cache[string, *rate.Limiter]
	limMu    sync.Mutex

	startOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    atomic.Bool

	dispatched atomic.Uint64
	failed     atomic.Uint64
	frames     atomic.Uint64
	samples    atomic.Uint64
	throttled  atomic.Uint64
	rejected   atomic.Uint64
}

// New 创建派发器
func New(cfg config.RenderConfig, opts ...Option) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	limiters, err := lru.New[string, *rate.Limiter](limiterCacheSize)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:      cfg,
		clock:    clock.New(),
		queue:    make(chan pkgif.RenderJob, cfg.QueueSize),
		limiters: limiters,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			cancel()
			return nil, err
		}
	}
	if d.pool == nil {
		wc := config.DefaultWorkerConfig()
		d.pool = workerpool.New(wc.EffectiveSize())
		d.ownPool = true
	}
	return d, nil
}

// Start 启动队列消费
func (d *Dispatcher) Start() error {
	if d.closed.Load() {
		return ErrClosed
	}
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go d.drain()
		if d.sub != nil {
			d.wg.Add(1)
			go d.watchSessions()
		}
	})
	return nil
}

// Dispatch 把任务放入派发队列，队列满时立即返回 ErrQueueFull
func (d *Dispatcher) Dispatch(ctx context.Context, job pkgif.RenderJob) error {
	if job.SessionID == "" {
		return types.NewValidationError("session_id", "must not be empty")
	}
	if d.renderer == nil {
		return ErrNoRenderPool
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	d.queueMu.RLock()
	defer d.queueMu.RUnlock()
	if d.closed.Load() {
		return ErrClosed
	}
	select {
	case d.queue <- job:
		return nil
	default:
		d.rejected.Add(1)
		return ErrQueueFull
	}
}

// dispatchJob 在工作池上执行的派发任务
type dispatchJob struct {
	renderer pkgif.RenderPool
	job      pkgif.RenderJob
}

func (j dispatchJob) Run(ctx context.Context) (any, error) {
	return nil, j.renderer.Dispatch(ctx, j.job)
}

func (d *Dispatcher) drain() {
	defer d.wg.Done()

	for job := range d.queue {
		ch, err := d.pool.Submit(d.ctx, dispatchJob{renderer: d.renderer, job: job})
		if err != nil {
			d.failed.Add(1)
			log.Warn("提交渲染任务失败", "session", job.SessionID, "error", err)
			continue
		}
		d.wg.Add(1)
		go d.collect(job.SessionID, ch)
	}
}

func (d *Dispatcher) collect(sessionID string, ch <-chan workerpool.Result) {
	defer d.wg.Done()
	res := <-ch
	if res.Err != nil {
		d.failed.Add(1)
		log.Warn("渲染派发失败", "session", sessionID, "error", res.Err)
		return
	}
	d.dispatched.Add(1)
}

func (d *Dispatcher) watchSessions() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case ev, ok := <-d.sub.Out():
			if !ok {
				return
			}
			changed, ok := ev.(types.SessionChanged)
			if !ok || changed.Kind != types.ChangeCreated || d.renderer == nil {
				continue
			}
			rec := changed.Record
			job := pkgif.RenderJob{SessionID: rec.ID, Target: rec.Definition.Target, ProxyIDs: rec.ProxyIDs}
			if err := d.Dispatch(d.ctx, job); err != nil {
				log.Debug("新会话派发失败", "session", rec.ID, "error", err)
			}
		}
	}
}

// ============================================================================
//                              回调
// ============================================================================

// HandleCallback 处理渲染工作池回调
func (d *Dispatcher) HandleCallback(cb pkgif.RenderCallback) error {
	if d.closed.Load() {
		return ErrClosed
	}
	if cb.SessionID == "" {
		return types.NewValidationError("session_id", "must not be empty")
	}
	hasFrame := cb.Frame != nil
	if hasFrame == (cb.Sample != nil) {
		return types.NewValidationError("callback", "exactly one of frame or sample is required")
	}

	now := d.clock.Now()
	if !d.limiter(cb.SessionID).AllowN(now, 1) {
		d.throttled.Add(1)
		return ErrThrottled
	}

	if hasFrame {
		d.frames.Add(1)
		if d.recorder != nil {
			d.recorder.RecordFrame(cb.SessionID, now)
		}
		return nil
	}

	sample := *cb.Sample
	if sample.SessionID == "" {
		sample.SessionID = cb.SessionID
	}
	if sample.SessionID != cb.SessionID {
		return types.NewValidationError("sample.session_id", "does not match callback session %q", cb.SessionID)
	}
	if err := types.SampleEntry(sample).Validate(); err != nil {
		return err
	}
	if sample.Timestamp == 0 {
		sample.Timestamp = now.UnixMilli()
	}
	d.samples.Add(1)
	if d.recorder != nil {
		d.recorder.Ingest(sample)
	}
	return nil
}

func (d *Dispatcher) limiter(sessionID string) *rate.Limiter {
	d.limMu.Lock()
	defer d.limMu.Unlock()
	if lim, ok := d.limiters.Get(sessionID); ok {
		return lim
	}
	lim := rate.NewLimiter(rate.Limit(d.cfg.RatePerSession), d.cfg.Burst)
	d.limiters.Add(sessionID, lim)
	return lim
}

// Stats 返回派发统计
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Queued:     len(d.queue),
		Dispatched: d.dispatched.Load(),
		Failed:     d.failed.Load(),
		Frames:     d.frames.Load(),
		Samples:    d.samples.Load(),
		Throttled:  d.throttled.Load(),
		Rejected:   d.rejected.Load(),
	}
}

// Close 停止接收任务，等待队列中的任务派发完成
func (d *Dispatcher) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	d.queueMu.Lock()
	close(d.queue)
	d.queueMu.Unlock()

	var err error
	if d.sub != nil {
		err = multierr.Append(err, d.sub.Close())
	}
	// 队列中剩余的任务在取消前提交完
	d.wg.Wait()
	d.cancel()
	if d.ownPool {
		err = multierr.Append(err, d.pool.Close())
	}
	return err
}
