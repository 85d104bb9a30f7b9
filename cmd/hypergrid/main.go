// Package main 提供 hypergrid 命令行入口
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/dep2p/go-hypergrid"
	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/util/logger"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

var log = logger.Logger("hypergrid/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：运行时覆盖 / 快速测试
//   配置文件：持久化配置 / 长期运行
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	configFile = flag.String("config", "", "配置文件路径（.json / .yaml）")
	envFile    = flag.String("env", ".env", ".env 文件路径，不存在时忽略")
	listen     = flag.String("listen", "", "观察通道监听地址，覆盖配置文件")
	backend    = flag.String("backend", "", "持久化后端 (memory/badger/redis)")
	dataDir    = flag.String("data-dir", "", "badger 数据目录")
	writerID   = flag.String("writer", "", "本副本的写入方 ID")

	// 启动时合成并发布的初始网格
	regions = flag.String("regions", "", "初始网格区域权重，如 EU=2,NA=1；为空不合成")
	proxies = flag.Int("proxies", 24, "初始网格代理数")
	seed    = flag.Int64("seed", 1, "初始网格随机种子")

	logFile     = flag.String("log", "", "日志文件路径（默认输出到 stderr）")
	statsEvery  = flag.Duration("stats", 0, "定期输出统计的间隔（0 = 不输出）")
	showVersion = flag.Bool("version", false, "显示版本信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(hypergrid.VersionInfo())
		return nil
	}

	if *logFile != "" {
		f, err := openLogFile(*logFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "警告: %v，将继续使用控制台输出日志\n", err)
		} else {
			defer func() { _ = f.Close() }()
			logger.SetOutput(f)
		}
	}

	opts, err := buildOptions()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	fmt.Printf("📦 %s\n", hypergrid.VersionInfo())
	log.Info("启动 hypergrid", "version", hypergrid.Version, "commit", hypergrid.GitCommit, "buildDate", hypergrid.BuildDate)

	eng, err := hypergrid.New(opts...)
	if err != nil {
		return fmt.Errorf("组装失败: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer stopCancel()
		if err := eng.Stop(stopCtx); err != nil {
			fmt.Fprintf(os.Stderr, "停止出错: %v\n", err)
		}
	}()

	if *regions != "" {
		if err := publishInitialMesh(ctx, eng); err != nil {
			return err
		}
	}

	printInfo(eng)
	if *statsEvery > 0 {
		go printStats(ctx, eng, *statsEvery)
	}

	fmt.Println("已启动，按 Ctrl+C 退出")
	waitForSignal(eng)
	fmt.Println("\n正在停止...")
	return nil
}

// buildOptions 把命令行参数转换为引擎选项
func buildOptions() ([]hypergrid.Option, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if *backend != "" {
		cfg.Storage.Backend = config.StorageBackend(*backend)
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}
	if *writerID != "" {
		cfg.Store.WriterID = *writerID
	}

	opts := []hypergrid.Option{
		hypergrid.WithConfig(cfg),
		hypergrid.WithEnv(*envFile),
	}
	if *listen != "" {
		opts = append(opts, hypergrid.WithListenAddr(*listen))
	}
	return opts, nil
}

// publishInitialMesh 合成并发布启动网格
func publishInitialMesh(ctx context.Context, eng *hypergrid.Engine) error {
	weights, err := parseRegions(*regions)
	if err != nil {
		return err
	}
	req := types.MeshRequirements{
		Seed:       *seed,
		ProxyCount: *proxies,
		Regions:    weights,
	}
	mesh, err := eng.Synthesizer().SynthesizeMesh(ctx, req)
	if err != nil {
		return fmt.Errorf("合成初始网格失败: %w", err)
	}
	eng.Synthesizer().Publish(mesh)
	return nil
}

func printInfo(eng *hypergrid.Engine) {
	cfg := eng.Config()
	fmt.Println("────────────────────────────────────────")
	fmt.Printf("  写入方:   %s\n", cfg.Store.WriterID)
	fmt.Printf("  持久化:   %s\n", cfg.Storage.Backend)
	if addr := eng.Addr(); addr != "" {
		fmt.Printf("  观察通道: ws://%s%s\n", addr, cfg.Transport.Path)
		fmt.Printf("  指标:     http://%s/metrics\n", addr)
	} else {
		fmt.Println("  观察通道: 未监听")
	}
	if mesh := eng.Synthesizer().Current(); mesh != nil {
		s := mesh.Summary()
		fmt.Printf("  网格:     %s（%d 代理，%d 对等）\n", s.Key, s.Proxies, s.Peerings)
		codes := make([]string, 0, len(mesh.Characteristics.Regions))
		for code := range mesh.Characteristics.Regions {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			alloc := mesh.Characteristics.Regions[code]
			fmt.Printf("            %s: %d/%d\n", code, alloc.Allocated, alloc.Requested)
		}
	}
	fmt.Println("────────────────────────────────────────")
}

func printStats(ctx context.Context, eng *hypergrid.Engine, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := eng.Store().Stats()
			hs := eng.Hub().Stats()
			g := eng.Telemetry().Global()
			log.Info("运行统计",
				"records", st.Records,
				"observers", hs.Observers,
				"broadcasts", hs.Broadcasts,
				"sessions", g.Sessions,
				"meanLatencyMs", g.MeanLatencyMs)
		}
	}
}

func waitForSignal(eng *hypergrid.Engine) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-signals:
	case <-eng.Done():
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
