package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 环境变量名
const (
	EnvWriterID      = "HYPERGRID_WRITER_ID"
	EnvStorage       = "HYPERGRID_STORAGE_BACKEND"
	EnvDataDir       = "HYPERGRID_DATA_DIR"
	EnvRedisAddr     = "HYPERGRID_REDIS_ADDR"
	EnvRedisPassword = "HYPERGRID_REDIS_PASSWORD"
	EnvListenAddr    = "HYPERGRID_LISTEN_ADDR"
	EnvWorkers       = "HYPERGRID_WORKERS"
	EnvShards        = "HYPERGRID_SHARDS"
	EnvSlots         = "HYPERGRID_SLOTS_PER_SHARD"
	EnvFoldInterval  = "HYPERGRID_FOLD_INTERVAL"
)

// Load 从文件加载配置
//
// .yaml / .yml 按 YAML 解析，其余按 JSON 解析。
// 文件中未出现的字段保留默认值。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := NewConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv 加载 .env 文件后应用环境变量覆盖
//
// 不存在的 .env 文件会被忽略。
func LoadEnv(cfg *Config, files ...string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return fmt.Errorf("load env files: %w", err)
		}
	}
	return ApplyEnv(cfg)
}

// ApplyEnv 应用 HYPERGRID_* 环境变量覆盖
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv(EnvWriterID); v != "" {
		cfg.Store.WriterID = v
	}
	if v := os.Getenv(EnvStorage); v != "" {
		cfg.Storage.Backend = StorageBackend(v)
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Storage.RedisAddr = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Storage.RedisPassword = v
	}
	if v := os.Getenv(EnvListenAddr); v != "" {
		cfg.Transport.ListenAddr = v
	}

	ints := []struct {
		env string
		dst *int
	}{
		{EnvWorkers, &cfg.Worker.Size},
		{EnvShards, &cfg.Store.Shards},
		{EnvSlots, &cfg.Store.SlotsPerShard},
	}
	for _, it := range ints {
		v := os.Getenv(it.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", it.env, err)
		}
		*it.dst = n
	}

	if v := os.Getenv(EnvFoldInterval); v != "" {
		if err := cfg.Telemetry.FoldInterval.parse(v); err != nil {
			return fmt.Errorf("%s: %w", EnvFoldInterval, err)
		}
	}
	return cfg.Validate()
}
