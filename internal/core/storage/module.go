package storage

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/core/storage/engine"
	"github.com/dep2p/go-hypergrid/internal/core/storage/journal"
	"github.com/dep2p/go-hypergrid/internal/core/storage/redislog"
	"github.com/dep2p/go-hypergrid/internal/util/logger"
	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
)

var log = logger.Logger("storage")

// connectTimeout Redis 连接超时
const connectTimeout = 5 * time.Second

// Params 模块输入
type Params struct {
	fx.In

	Config *config.Config `optional:"true"`
}

// Module 返回 Fx 模块
//
// 提供 interfaces.DurableLog，OnStop 时关闭。
func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(ProvideDurableLog),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideDurableLog 按配置创建持久化日志
func ProvideDurableLog(p Params) (pkgif.DurableLog, error) {
	cfg := config.DefaultStorageConfig()
	if p.Config != nil {
		cfg = p.Config.Storage
	}
	return Open(cfg)
}

// Open 按配置打开持久化日志
func Open(cfg config.StorageConfig) (pkgif.DurableLog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Debug("打开持久化日志", "backend", cfg.Backend)
	switch cfg.Backend {
	case config.BackendBadger:
		ecfg := engine.DefaultConfig(cfg.DBPath())
		ecfg.SyncWrites = cfg.SyncWrites
		return journal.Open(ecfg)
	case config.BackendRedis:
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		return redislog.Open(ctx, cfg)
	default:
		return journal.NewMemory()
	}
}

func registerLifecycle(lc fx.Lifecycle, dl pkgif.DurableLog) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			if err := dl.Close(); err != nil {
				log.Warn("关闭持久化日志失败", "error", err)
				return err
			}
			log.Info("持久化日志已关闭")
			return nil
		},
	})
}
