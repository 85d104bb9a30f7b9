package store

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/core/geo"
	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
)

// Params 模块输入
type Params struct {
	fx.In

	Config     *config.Config   `optional:"true"`
	Log        pkgif.DurableLog `optional:"true"`
	Compressor pkgif.Compressor `optional:"true"`
	Bus        pkgif.EventBus   `optional:"true"`
	Mesh       pkgif.MeshSource `optional:"true"`
	Geo        *geo.Model       `optional:"true"`
}

// Result 模块输出
type Result struct {
	fx.Out

	Store        *Store
	SessionStore pkgif.SessionStore
}

// Module 返回 Fx 模块
//
// OnStart 先从持久化日志恢复再启动后台任务；OnStop 写入最终快照。
func Module() fx.Option {
	return fx.Module("store",
		fx.Provide(ProvideStore),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideStore 提供会话存储
func ProvideStore(p Params) (Result, error) {
	cfg := config.DefaultStoreConfig()
	if p.Config != nil {
		cfg = p.Config.Store
	}

	var opts []Option
	if p.Log != nil {
		opts = append(opts, WithDurableLog(p.Log))
	}
	if p.Compressor != nil {
		opts = append(opts, WithCompressor(p.Compressor))
	}
	if p.Bus != nil {
		opts = append(opts, WithEventBus(p.Bus))
	}
	if p.Mesh != nil {
		var regions []string
		if p.Geo != nil {
			regions = p.Geo.RegionCodes()
		}
		opts = append(opts, WithAssigner(NewAssigner(p.Mesh, regions, cfg.DefaultProxyCount)))
	}

	s, err := New(cfg, opts...)
	if err != nil {
		return Result{}, err
	}
	return Result{Store: s, SessionStore: s}, nil
}

func registerLifecycle(lc fx.Lifecycle, s *Store) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if _, err := s.Recover(ctx); err != nil {
				log.Error("恢复会话存储失败", "error", err)
				return err
			}
			return s.Start()
		},
		OnStop: func(_ context.Context) error {
			return s.Close()
		},
	})
}
