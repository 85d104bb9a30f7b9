package telemetry

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-hypergrid/config"
	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
)

// Params 遥测依赖参数
type Params struct {
	fx.In

	Config *config.Config `optional:"true"`
	Bus    pkgif.EventBus `optional:"true"`
}

// Result 遥测导出结果
type Result struct {
	fx.Out

	Telemetry *Telemetry
	Sink      pkgif.MetricsSink
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("telemetry",
		fx.Provide(ProvideTelemetry),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideTelemetry 从统一配置创建遥测
func ProvideTelemetry(p Params) (Result, error) {
	cfg := config.DefaultTelemetryConfig()
	if p.Config != nil {
		cfg = p.Config.Telemetry
	}
	var opts []Option
	if p.Bus != nil {
		opts = append(opts, WithEventBus(p.Bus))
	}
	t, err := New(cfg, opts...)
	if err != nil {
		return Result{}, err
	}
	return Result{Telemetry: t, Sink: t}, nil
}

func registerLifecycle(lc fx.Lifecycle, t *Telemetry) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return t.Start()
		},
		OnStop: func(_ context.Context) error {
			return t.Close()
		},
	})
}
