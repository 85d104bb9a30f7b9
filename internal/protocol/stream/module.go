package stream

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/core/telemetry"
	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
)

// Params Hub 依赖参数
type Params struct {
	fx.In

	Config     *config.Config       `optional:"true"`
	Store      pkgif.SessionStore
	Mesh       pkgif.MeshSource     `optional:"true"`
	Telemetry  *telemetry.Telemetry `optional:"true"`
	Compressor pkgif.Compressor     `optional:"true"`
	Bus        pkgif.EventBus       `optional:"true"`
}

// Result Hub 导出结果
type Result struct {
	fx.Out

	Hub    *Hub
	Server *Server
}

// Module 返回 Fx 模块
//
// ListenAddr 为空时只提供 Hub，不启动 HTTP 服务。
func Module() fx.Option {
	return fx.Module("stream",
		fx.Provide(ProvideHub),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideHub 从统一配置创建 Hub 与 HTTP 服务
func ProvideHub(p Params) (Result, error) {
	cfg := config.DefaultTransportConfig()
	if p.Config != nil {
		cfg = p.Config.Transport
	}

	var opts []HubOption
	if p.Mesh != nil {
		opts = append(opts, WithMeshSource(p.Mesh))
	}
	if p.Telemetry != nil {
		opts = append(opts, WithGlobalSource(p.Telemetry))
	}
	if p.Compressor != nil {
		opts = append(opts, WithCompressor(p.Compressor))
	}
	if p.Bus != nil {
		opts = append(opts, WithEventBus(p.Bus))
	}
	hub, err := NewHub(cfg, p.Store, opts...)
	if err != nil {
		return Result{}, err
	}

	var srv *Server
	if cfg.ListenAddr != "" {
		var registry *prometheus.Registry
		if p.Telemetry != nil {
			registry = p.Telemetry.Registry()
		}
		srv = NewServer(cfg, hub, registry)
	}
	return Result{Hub: hub, Server: srv}, nil
}

func registerLifecycle(lc fx.Lifecycle, hub *Hub, srv *Server) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if err := hub.Start(); err != nil {
				return err
			}
			if srv != nil {
				return srv.Start()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// 先关闭观察方连接，HTTP 关闭不等待被劫持的连接
			err := hub.Close()
			if srv != nil {
				if serr := srv.Stop(ctx); serr != nil && err == nil {
					err = serr
				}
			}
			return err
		},
	})
}
