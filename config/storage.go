package config

import (
	"fmt"
	"path/filepath"
)

// StorageBackend 持久化日志后端
type StorageBackend string

const (
	// BackendMemory 内存（不持久化）
	BackendMemory StorageBackend = "memory"
	// BackendBadger 本地 BadgerDB
	BackendBadger StorageBackend = "badger"
	// BackendRedis Redis
	BackendRedis StorageBackend = "redis"
)

// StorageConfig 持久化日志配置
//
// badger 后端的数据目录结构：
//
//	${DataDir}/
//	└── hypergrid.db/       # BadgerDB 主数据库
type StorageConfig struct {
	// Backend 后端类型
	Backend StorageBackend `json:"backend" yaml:"backend"`

	// DataDir 数据目录
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// SyncWrites 每次写入是否同步落盘
	SyncWrites bool `json:"sync_writes" yaml:"sync_writes"`

	// RedisAddr Redis 地址
	RedisAddr string `json:"redis_addr" yaml:"redis_addr"`

	// RedisDB Redis 库编号
	RedisDB int `json:"redis_db" yaml:"redis_db"`

	// RedisPassword Redis 密码
	RedisPassword string `json:"redis_password" yaml:"redis_password"`

	// RedisPrefix Redis 键前缀
	RedisPrefix string `json:"redis_prefix" yaml:"redis_prefix"`
}

// DefaultStorageConfig 返回默认持久化配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Backend:     BackendMemory,
		DataDir:     "./data",
		RedisAddr:   "localhost:6379",
		RedisPrefix: "hypergrid",
	}
}

// Validate 验证持久化配置
func (c *StorageConfig) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendBadger:
		if c.DataDir == "" {
			return fmt.Errorf("data_dir cannot be empty for badger backend")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis_addr cannot be empty for redis backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}

// DBPath 返回 BadgerDB 数据库路径
func (c *StorageConfig) DBPath() string {
	return filepath.Join(c.DataDir, "hypergrid.db")
}
