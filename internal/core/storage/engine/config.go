package engine

import (
	"os"
	"path/filepath"
	"time"
)

// Config 存储引擎配置
type Config struct {
	// Path 数据目录，InMemory 为 true 时忽略
	Path string

	// InMemory 纯内存模式，不落盘
	InMemory bool

	// SyncWrites 每次写入是否同步到磁盘
	SyncWrites bool

	// ReadOnly 只读模式
	ReadOnly bool

	// MemTableSize 内存表大小（字节）
	MemTableSize int64

	// ValueLogFileSize 值日志文件大小（字节）
	ValueLogFileSize int64

	// BlockCacheSize 块缓存大小（字节）
	BlockCacheSize int64

	// ZSTDCompressionLevel ZSTD 压缩级别，0 表示禁用
	ZSTDCompressionLevel int

	// GCInterval 值日志 GC 间隔，0 表示不启动 GC
	GCInterval time.Duration

	// GCDiscardRatio 值日志 GC 丢弃比例
	GCDiscardRatio float64
}

// DefaultConfig 返回默认配置
func DefaultConfig(path string) *Config {
	return &Config{
		Path:                 path,
		MemTableSize:         64 << 20,
		ValueLogFileSize:     256 << 20,
		BlockCacheSize:       64 << 20,
		ZSTDCompressionLevel: 1,
		GCInterval:           10 * time.Minute,
		GCDiscardRatio:       0.5,
	}
}

// MemoryConfig 返回纯内存模式配置
func MemoryConfig() *Config {
	cfg := DefaultConfig("")
	cfg.InMemory = true
	cfg.MemTableSize = 8 << 20
	cfg.BlockCacheSize = 8 << 20
	cfg.GCInterval = 0
	return cfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Path == "" && !c.InMemory {
		return ErrInvalidConfig
	}
	if c.MemTableSize < 1<<20 || c.ValueLogFileSize < 1<<20 {
		return ErrInvalidConfig
	}
	if c.GCDiscardRatio <= 0 || c.GCDiscardRatio >= 1 {
		return ErrInvalidConfig
	}
	return nil
}

// EnsureDir 确保数据目录存在，并把 Path 转为绝对路径
func (c *Config) EnsureDir() error {
	if c.InMemory {
		return nil
	}
	abs, err := filepath.Abs(c.Path)
	if err != nil {
		return err
	}
	c.Path = abs
	return os.MkdirAll(c.Path, 0755)
}
