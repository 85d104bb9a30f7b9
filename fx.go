package hypergrid

import (
	"context"
	"os"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/core/compression"
	"github.com/dep2p/go-hypergrid/internal/core/eventbus"
	"github.com/dep2p/go-hypergrid/internal/core/geo"
	"github.com/dep2p/go-hypergrid/internal/core/render"
	"github.com/dep2p/go-hypergrid/internal/core/storage"
	"github.com/dep2p/go-hypergrid/internal/core/store"
	"github.com/dep2p/go-hypergrid/internal/core/synthesis"
	"github.com/dep2p/go-hypergrid/internal/core/telemetry"
	"github.com/dep2p/go-hypergrid/internal/core/topology"
	"github.com/dep2p/go-hypergrid/internal/core/workerpool"
	"github.com/dep2p/go-hypergrid/internal/protocol/stream"
	"github.com/dep2p/go-hypergrid/internal/util/logger"
	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
)

var fxLog = logger.Logger("hypergrid/fx")

// envFxLog 选择 Fx 事件日志：zap / slog，其余值关闭
const envFxLog = "HYPERGRID_FX_LOG"

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. 基础：EventBus → WorkerPool → Compression → Storage
//  2. 规划：Geo → Topology → Synthesis
//  3. 会话：Store → Telemetry → Render
//  4. 传输：Stream Hub
//
// OnStop 按相反顺序执行，Hub 先断开观察方，存储最后写入快照。
func buildFxApp(cfg *config.Config, o *options, eng *Engine) *fx.App {
	modules := []fx.Option{
		fx.Supply(cfg),

		eventbus.Module(),
		workerpool.Module(),
		compressionModule(),
		storage.Module(),

		geo.Module(),
		topology.Module(),
		synthesis.Module(),

		store.Module(),
		telemetry.Module(),
		render.Module(),

		stream.Module(),

		// 遥测与存储互相引用，构造后再连接
		fx.Invoke(bindTelemetry),

		fx.Populate(
			&eng.bus,
			&eng.geo,
			&eng.planner,
			&eng.synth,
			&eng.store,
			&eng.telemetry,
			&eng.render,
			&eng.hub,
			&eng.server,
		),
	}
	if o.renderPool != nil {
		pool := o.renderPool
		modules = append(modules, fx.Provide(func() pkgif.RenderPool { return pool }))
	}
	modules = append(modules, o.fxOptions...)
	modules = append(modules, fxLogger())

	fxLog.Debug("已组装模块", "listen", cfg.Transport.ListenAddr, "backend", cfg.Storage.Backend)
	return fx.New(modules...)
}

// compressionModule 提供压缩能力
func compressionModule() fx.Option {
	return fx.Module("compression",
		fx.Provide(func(cfg *config.Config) *compression.Codec {
			return compression.New(cfg.Compression)
		}),
		fx.Provide(func(c *compression.Codec) pkgif.Compressor { return c }),
		fx.Invoke(func(lc fx.Lifecycle, c *compression.Codec) {
			lc.Append(fx.Hook{
				OnStop: func(_ context.Context) error {
					return c.Close()
				},
			})
		}),
	)
}

// bindTelemetry 样本写入遥测，退化会话回写存储
func bindTelemetry(s *store.Store, t *telemetry.Telemetry) {
	s.SetMetricsSink(t)
	t.SetDegradedFunc(s.MarkDegraded)
}

// fxLogger 返回 Fx 事件日志选项
func fxLogger() fx.Option {
	switch strings.ToLower(os.Getenv(envFxLog)) {
	case "zap":
		return fx.WithLogger(func() fxevent.Logger {
			zl, err := zap.NewDevelopment()
			if err != nil {
				return fxevent.NopLogger
			}
			return &fxevent.ZapLogger{Logger: zl}
		})
	case "slog":
		return fx.WithLogger(func() fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.Logger("fx")}
		})
	default:
		return fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		})
	}
}
