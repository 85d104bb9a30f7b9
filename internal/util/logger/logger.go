// Package logger 提供 hypergrid 的统一日志系统
//
// 基于标准库 log/slog，支持：
//   - 按子系统配置日志级别（store、topology、synthesis、stream ...）
//   - 环境变量配置（HYPERGRID_LOG_LEVEL, HYPERGRID_LOG_FORMAT）
//   - 运行时切换输出目标（CLI 的日志文件）
//
// 使用示例:
//
//	var log = logger.Logger("store")
//
//	func foo() {
//	    log.Info("会话写入", "id", id, "shard", shard)
//	    log.Warn("分片已满", "shard", shard, "err", err)
//	}
//
// 环境变量配置:
//
//	# 所有子系统 info，topology 子系统 debug
//	HYPERGRID_LOG_LEVEL=topology=debug,info
//
//	# JSON 格式输出
//	HYPERGRID_LOG_FORMAT=json
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	// loggers 缓存各子系统的 Logger
	loggers sync.Map // map[string]*slog.Logger

	// handlers 缓存各子系统的 Handler（用于动态调整级别）
	handlers sync.Map // map[string]*subsystemHandler

	globalLogger     *slog.Logger
	globalLoggerOnce sync.Once
)

// Logger 获取指定子系统的 Logger
//
// 同一子系统多次调用返回同一实例。级别由 HYPERGRID_LOG_LEVEL 决定。
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	cfg := ConfigFromEnv()
	handler := newHandler(subsystem, cfg.LevelForSubsystem(subsystem), cfg.Format)
	l := slog.New(handler)

	actual, loaded := loggers.LoadOrStore(subsystem, l)
	if !loaded {
		if h, ok := handler.(*subsystemHandler); ok {
			handlers.Store(subsystem, h)
		}
	}
	return actual.(*slog.Logger)
}

// GlobalLogger 返回全局 Logger
//
// 用于不属于特定子系统的日志，也作为 fx 事件日志的输出。
func GlobalLogger() *slog.Logger {
	globalLoggerOnce.Do(func() {
		globalLogger = Logger("hypergrid")
	})
	return globalLogger
}

// SetLevel 动态设置子系统的日志级别
func SetLevel(subsystem string, level slog.Level) {
	if h, ok := handlers.Load(subsystem); ok {
		h.(*subsystemHandler).SetLevel(level)
	}
}

// SetGlobalLevel 设置所有已创建子系统的日志级别
func SetGlobalLevel(level slog.Level) {
	handlers.Range(func(_, value any) bool {
		value.(*subsystemHandler).SetLevel(level)
		return true
	})
}

// Discard 返回一个丢弃所有日志的 Logger
//
// 主要用于测试。
func Discard() *slog.Logger {
	return slog.New(DiscardHandler())
}

// With 创建带有预设属性的子系统 Logger
//
//	log := logger.With("stream", "observer", observerID)
//	log.Info("快照已发送")
func With(subsystem string, args ...any) *slog.Logger {
	return Logger(subsystem).With(args...)
}

// SetOutput 设置全局日志输出目标
//
// 已创建的 Logger 通过 dynamicWriter 自动重定向，无需重建。
func SetOutput(w io.Writer) {
	globalOutputMu.Lock()
	globalOutput = w
	globalOutputMu.Unlock()
}
