package render

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/core/telemetry"
	"github.com/dep2p/go-hypergrid/internal/core/workerpool"
	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
)

// Params 派发器依赖参数
type Params struct {
	fx.In

	Config    *config.Config       `optional:"true"`
	Renderer  pkgif.RenderPool     `optional:"true"`
	Telemetry *telemetry.Telemetry `optional:"true"`
	Pool      *workerpool.Pool     `optional:"true"`
	Bus       pkgif.EventBus       `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("render",
		fx.Provide(ProvideDispatcher),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideDispatcher 从统一配置创建派发器
func ProvideDispatcher(p Params) (*Dispatcher, error) {
	cfg := config.DefaultRenderConfig()
	if p.Config != nil {
		cfg = p.Config.Render
	}
	var opts []Option
	if p.Renderer != nil {
		opts = append(opts, WithRenderPool(p.Renderer))
	}
	if p.Telemetry != nil {
		opts = append(opts, WithRecorder(p.Telemetry))
	}
	if p.Pool != nil {
		opts = append(opts, WithWorkerPool(p.Pool))
	}
	if p.Bus != nil {
		opts = append(opts, WithEventBus(p.Bus))
	}
	return New(cfg, opts...)
}

func registerLifecycle(lc fx.Lifecycle, d *Dispatcher) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return d.Start()
		},
		OnStop: func(_ context.Context) error {
			return d.Close()
		},
	})
}
