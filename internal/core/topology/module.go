package topology

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/core/geo"
	"github.com/dep2p/go-hypergrid/internal/core/workerpool"
)

// Params 规划器依赖参数
type Params struct {
	fx.In

	Config *config.Config   `optional:"true"`
	Geo    *geo.Model       `optional:"true"`
	Pool   *workerpool.Pool `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("topology",
		fx.Provide(ProvidePlanner),
		fx.Invoke(registerLifecycle),
	)
}

// ProvidePlanner 从统一配置创建规划器
func ProvidePlanner(p Params) (*Planner, error) {
	cfg := config.DefaultTopologyConfig()
	if p.Config != nil {
		cfg = p.Config.Topology
	}
	return NewPlanner(cfg, p.Geo, p.Pool)
}

func registerLifecycle(lc fx.Lifecycle, planner *Planner) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return planner.Close()
		},
	})
}
