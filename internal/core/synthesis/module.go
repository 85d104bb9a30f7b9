package synthesis

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/core/topology"
	"github.com/dep2p/go-hypergrid/internal/core/workerpool"
	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
)

// Params 合成引擎依赖参数
type Params struct {
	fx.In

	Config  *config.Config `optional:"true"`
	Planner *topology.Planner
	Pool    *workerpool.Pool `optional:"true"`
	Bus     pkgif.EventBus   `optional:"true"`
}

// Result 合成引擎导出结果
type Result struct {
	fx.Out

	Engine     *Engine
	MeshSource pkgif.MeshSource
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("synthesis",
		fx.Provide(ProvideEngine),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideEngine 从统一配置创建合成引擎
func ProvideEngine(p Params) (Result, error) {
	cfg := config.DefaultSynthesisConfig()
	if p.Config != nil {
		cfg = p.Config.Synthesis
	}
	e, err := NewEngine(cfg, p.Planner, p.Pool, p.Bus)
	if err != nil {
		return Result{}, err
	}
	return Result{Engine: e, MeshSource: e}, nil
}

func registerLifecycle(lc fx.Lifecycle, engine *Engine) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return engine.Close()
		},
	})
}
