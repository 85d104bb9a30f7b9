package workerpool

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-hypergrid/config"
)

// Params 模块输入
type Params struct {
	fx.In

	Config *config.Config `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("workerpool",
		fx.Provide(ProvidePool),
		fx.Invoke(registerLifecycle),
	)
}

// ProvidePool 提供工作池
func ProvidePool(p Params) *Pool {
	cfg := config.DefaultWorkerConfig()
	if p.Config != nil {
		cfg = p.Config.Worker
	}
	return New(cfg.EffectiveSize())
}

func registerLifecycle(lc fx.Lifecycle, pool *Pool) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return pool.Close()
		},
	})
}
