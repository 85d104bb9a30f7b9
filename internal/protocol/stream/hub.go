package stream

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"go.uber.org/multierr"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/protocol/wire"
	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

// GlobalSource 全局指标来源
type GlobalSource interface {
	Global() types.GlobalAggregate
}

// HubStats Hub 统计
type HubStats struct {
	Observers  int    `json:"observers"`
	Accepted   uint64 `json:"accepted"`
	Broadcasts uint64 `json:"broadcasts"`
	Dropped    uint64 `json:"dropped"`
	Resyncs    uint64 `json:"resyncs"`
	BadFrames  uint64 `json:"bad_frames"`
	Merged     uint64 `json:"merged"`
}

// HubOption Hub 选项
type HubOption func(*Hub) error

// WithMeshSource 快照中附带当前网格摘要
func WithMeshSource(m pkgif.MeshSource) HubOption {
	return func(h *Hub) error {
		h.mesh = m
		return nil
	}
}

// WithGlobalSource 快照中附带全局指标
func WithGlobalSource(g GlobalSource) HubOption {
	return func(h *Hub) error {
		h.global = g
		return nil
	}
}

// WithCompressor 按大小选择压缩
func WithCompressor(comp pkgif.Compressor) HubOption {
	return func(h *Hub) error {
		h.codec = wire.NewCodec(comp, int(h.cfg.MaxFrameSize))
		return nil
	}
}

// WithHubClock 设置时钟
func WithHubClock(clk clock.Clock) HubOption {
	return func(h *Hub) error {
		h.clock = clk
		return nil
	}
}

// WithEventBus 订阅会话、指标与网格事件
func WithEventBus(bus pkgif.EventBus) HubOption {
	return func(h *Hub) error {
		var subs []pkgif.Subscription
		for _, typ := range []any{new(types.SessionChanged), new(types.MetricsFolded), new(types.MeshPublished)} {
			sub, err := bus.Subscribe(typ, pkgif.BufSize(h.cfg.ObserverQueueSize), pkgif.Named("stream-hub"))
			if err != nil {
				for _, s := range subs {
					err = multierr.Append(err, s.Close())
				}
				return err
			}
			subs = append(subs, sub)
		}
		h.subs = subs
		return nil
	}
}

// Hub 观察通道服务端
type Hub struct {
	cfg      config.TransportConfig
	store    pkgif.SessionStore
	mesh     pkgif.MeshSource
	global   GlobalSource
	codec    *wire.Codec
	clock    clock.Clock
	upgrader websocket.Upgrader
	subs     []pkgif.Subscription

	mu        sync.RWMutex
	observers map[uint64]*Observer
	nextID    uint64

	startOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    atomic.Bool

	accepted   atomic.Uint64
	broadcasts atomic.Uint64
	dropped    atomic.Uint64
	resyncs    atomic.Uint64
	badFrames  atomic.Uint64
	merged     atomic.Uint64
}

var _ http.Handler = (*Hub)(nil)

// NewHub 创建 Hub
func NewHub(cfg config.TransportConfig, store pkgif.SessionStore, opts ...HubOption) (*Hub, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}
	if store == nil {
		return nil, ErrNoSessionStore
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:       cfg,
		store:     store,
		codec:     wire.NewCodec(nil, int(cfg.MaxFrameSize)),
		clock:     clock.New(),
		observers: make(map[uint64]*Observer),
		ctx:       ctx,
		cancel:    cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// 观察方不做来源校验
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			cancel()
			return nil, err
		}
	}
	return h, nil
}

// Start 启动事件转发
func (h *Hub) Start() error {
	if h.closed.Load() {
		return ErrClosed
	}
	h.startOnce.Do(func() {
		for _, sub := range h.subs {
			h.wg.Add(1)
			go h.pump(sub)
		}
	})
	return nil
}

// ServeHTTP 升级为 websocket 并服务一个观察方
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.closed.Load() {
		http.Error(w, "hub closed", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("websocket 升级失败", "remote", r.RemoteAddr, "error", err)
		return
	}

	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.nextID++
	o := newObserver(h, h.nextID, conn, r.RemoteAddr)
	h.observers[o.id] = o
	h.wg.Add(2)
	h.mu.Unlock()
	h.accepted.Add(1)

	// 先登记再生成快照：登记后的增量都会排在快照之后
	o.requestSnapshot()
	go o.writeLoop()
	go o.readLoop()
	log.Info("观察方已连接", "observer", o.id, "remote", o.remote)
}

// Observers 返回当前观察方数量
func (h *Hub) Observers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// Stats 返回统计
func (h *Hub) Stats() HubStats {
	return HubStats{
		Observers:  h.Observers(),
		Accepted:   h.accepted.Load(),
		Broadcasts: h.broadcasts.Load(),
		Dropped:    h.dropped.Load(),
		Resyncs:    h.resyncs.Load(),
		BadFrames:  h.badFrames.Load(),
		Merged:     h.merged.Load(),
	}
}

// Snapshot 生成快照负载
func (h *Hub) Snapshot() wire.SnapshotPayload {
	p := wire.SnapshotPayload{Sessions: h.store.List()}
	if h.mesh != nil {
		if m := h.mesh.Current(); m != nil {
			summary := m.Summary()
			p.Mesh = &summary
		}
	}
	if h.global != nil {
		p.Global = h.global.Global()
	}
	return p
}

// Broadcast 把消息放入每个观察方的队列
func (h *Hub) Broadcast(typ string, payload any) error {
	env, err := wire.NewEnvelope(typ, 0, h.clock.Now().UnixMilli(), payload)
	if err != nil {
		return err
	}
	h.mu.RLock()
	for _, o := range h.observers {
		o.enqueue(env)
	}
	h.mu.RUnlock()
	h.broadcasts.Add(1)
	return nil
}

// pump 把总线事件转为通道消息
func (h *Hub) pump(sub pkgif.Subscription) {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			return
		case ev, ok := <-sub.Out():
			if !ok {
				return
			}
			typ, payload, ok := toMessage(ev)
			if !ok {
				continue
			}
			if err := h.Broadcast(typ, payload); err != nil {
				log.Warn("广播失败", "type", typ, "error", err)
			}
		}
	}
}

// toMessage 把总线事件映射为事件名与负载
func toMessage(ev any) (string, any, bool) {
	switch e := ev.(type) {
	case types.SessionChanged:
		switch e.Kind {
		case types.ChangeCreated:
			return wire.EventSessionCreated, e.Record, true
		case types.ChangeUpdated:
			return wire.EventSessionUpdated, e.Record, true
		case types.ChangeDeleted:
			return wire.EventSessionDeleted, types.Tombstone{
				ID:        e.Record.ID,
				WriterID:  e.Record.WriterID,
				Version:   e.Record.Version,
				Timestamp: e.Record.Timestamp,
			}, true
		}
	case types.MetricsFolded:
		if len(e.Changed) == 0 {
			return "", nil, false
		}
		records := make([]wire.MetricRecord, len(e.Changed))
		for i, agg := range e.Changed {
			records[i] = wire.MetricRecordFromAggregate(agg)
		}
		return wire.EventSessionMetrics, records, true
	case types.MeshPublished:
		if e.Mesh == nil {
			return "", nil, false
		}
		return wire.EventMeshUpdate, e.Mesh.Summary(), true
	}
	return "", nil, false
}

// remove 注销观察方
func (h *Hub) remove(o *Observer) {
	h.mu.Lock()
	delete(h.observers, o.id)
	h.mu.Unlock()
}

// Close 断开全部观察方并停止转发
func (h *Hub) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	h.cancel()

	var err error
	for _, sub := range h.subs {
		err = multierr.Append(err, sub.Close())
	}

	h.mu.Lock()
	observers := make([]*Observer, 0, len(h.observers))
	for _, o := range h.observers {
		observers = append(observers, o)
	}
	h.mu.Unlock()
	for _, o := range observers {
		o.close()
	}

	h.wg.Wait()
	return err
}
