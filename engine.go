package hypergrid

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/core/eventbus"
	"github.com/dep2p/go-hypergrid/internal/core/geo"
	"github.com/dep2p/go-hypergrid/internal/core/render"
	"github.com/dep2p/go-hypergrid/internal/core/store"
	"github.com/dep2p/go-hypergrid/internal/core/synthesis"
	"github.com/dep2p/go-hypergrid/internal/core/telemetry"
	"github.com/dep2p/go-hypergrid/internal/core/topology"
	"github.com/dep2p/go-hypergrid/internal/protocol/stream"
	"github.com/dep2p/go-hypergrid/internal/util/logger"
)

var log = logger.Logger("hypergrid")

// startTimeout Fx 启动超时
const startTimeout = 30 * time.Second

// Engine HyperGrid 核心句柄
//
// 组件在 New 时构建，Start 后才开始后台任务（恢复、折叠、派发、观察通道）。
type Engine struct {
	cfg *config.Config
	app *fx.App

	bus       *eventbus.Bus
	geo       *geo.Model
	planner   *topology.Planner
	synth     *synthesis.Engine
	store     *store.Store
	telemetry *telemetry.Telemetry
	render    *render.Dispatcher
	hub       *stream.Hub
	server    *stream.Server

	mu      sync.Mutex
	started bool
	closed  bool
}

// New 组装引擎（不启动）
func New(opts ...Option) (*Engine, error) {
	o := &options{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	cfg, err := o.resolve()
	if err != nil {
		return nil, err
	}

	eng := &Engine{cfg: cfg}
	eng.app = buildFxApp(cfg, o, eng)
	if err := eng.app.Err(); err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}
	return eng, nil
}

// Start 启动全部组件
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if e.started {
		return ErrAlreadyStarted
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := e.app.Start(startCtx); err != nil {
		log.Error("引擎启动失败", "error", err)
		return fmt.Errorf("start failed: %w", err)
	}
	e.started = true
	log.Info("引擎已启动", "version", Version, "listen", e.Addr())
	return nil
}

// Stop 停止全部组件，可重复调用
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if !e.started {
		return nil
	}
	if err := e.app.Stop(ctx); err != nil {
		log.Warn("引擎停止出错", "error", err)
		return err
	}
	log.Info("引擎已停止")
	return nil
}

// Done 返回收到退出信号时关闭的通道
func (e *Engine) Done() <-chan fx.ShutdownSignal {
	return e.app.Wait()
}

// Config 返回生效配置
func (e *Engine) Config() *config.Config { return e.cfg }

// Store 会话存储
func (e *Engine) Store() *store.Store { return e.store }

// Planner 拓扑规划器
func (e *Engine) Planner() *topology.Planner { return e.planner }

// Synthesizer 网格合成引擎
func (e *Engine) Synthesizer() *synthesis.Engine { return e.synth }

// Telemetry 指标遥测
func (e *Engine) Telemetry() *telemetry.Telemetry { return e.telemetry }

// Hub 观察通道服务端
func (e *Engine) Hub() *stream.Hub { return e.hub }

// Render 渲染派发器
func (e *Engine) Render() *render.Dispatcher { return e.render }

// Geo 地理参考模型
func (e *Engine) Geo() *geo.Model { return e.geo }

// EventBus 事件总线
func (e *Engine) EventBus() *eventbus.Bus { return e.bus }

// Addr 返回观察通道实际监听地址，未监听时为空
func (e *Engine) Addr() string {
	if e.server == nil {
		return ""
	}
	return e.server.Addr()
}
