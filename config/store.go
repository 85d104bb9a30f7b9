package config

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// StoreConfig 会话存储配置
type StoreConfig struct {
	// WriterID 本副本的写入方 ID
	WriterID string `json:"writer_id" yaml:"writer_id"`

	// Shards 分片数
	Shards int `json:"shards" yaml:"shards"`

	// SlotsPerShard 每个分片的槽位数
	SlotsPerShard int `json:"slots_per_shard" yaml:"slots_per_shard"`

	// SlotSize 槽位字节数（含 6 字节头部）
	SlotSize int `json:"slot_size" yaml:"slot_size"`

	// CompressThreshold 超过该大小的序列化记录会被压缩
	CompressThreshold int `json:"compress_threshold" yaml:"compress_threshold"`

	// FilterFalsePositiveRate 存在性过滤器的假阳性率
	FilterFalsePositiveRate float64 `json:"filter_false_positive_rate" yaml:"filter_false_positive_rate"`

	// ConvergenceWindow 墓碑保留时长
	ConvergenceWindow Duration `json:"convergence_window" yaml:"convergence_window"`

	// PurgeInterval 墓碑清理周期
	PurgeInterval Duration `json:"purge_interval" yaml:"purge_interval"`

	// SnapshotInterval 快照周期，0 表示只在停止时快照
	SnapshotInterval Duration `json:"snapshot_interval" yaml:"snapshot_interval"`

	// AppendQueue 持久化追加队列长度，满时丢弃并记录
	AppendQueue int `json:"append_queue" yaml:"append_queue"`

	// DefaultProxyCount 按需合成网格时的代理数量
	DefaultProxyCount int `json:"default_proxy_count" yaml:"default_proxy_count"`
}

// NewWriterID 生成进程唯一的写入方 ID
func NewWriterID() string {
	return "w-" + uuid.NewString()
}

// DefaultStoreConfig 返回默认存储配置
//
// 每次调用生成新的写入方 ID，副本之间不会共享同一写入方。
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		WriterID:                NewWriterID(),
		Shards:                  64,
		SlotsPerShard:           4096,
		SlotSize:                1024,
		CompressThreshold:       256,
		FilterFalsePositiveRate: 0.01,
		ConvergenceWindow:       Duration(30 * time.Second),
		PurgeInterval:           Duration(10 * time.Second),
		SnapshotInterval:        Duration(5 * time.Minute),
		AppendQueue:             4096,
		DefaultProxyCount:       64,
	}
}

// Capacity 返回总槽位数
func (c *StoreConfig) Capacity() int {
	return c.Shards * c.SlotsPerShard
}

// Validate 验证存储配置
func (c *StoreConfig) Validate() error {
	if c.WriterID == "" {
		return errors.New("writer_id cannot be empty")
	}
	if c.Shards < 1 || c.SlotsPerShard < 1 {
		return errors.New("shards and slots_per_shard must be positive")
	}
	if c.SlotSize < 64 {
		return errors.New("slot_size must be at least 64 bytes")
	}
	if c.CompressThreshold < 0 {
		return errors.New("compress_threshold cannot be negative")
	}
	if c.FilterFalsePositiveRate <= 0 || c.FilterFalsePositiveRate >= 1 {
		return errors.New("filter_false_positive_rate must be within (0,1)")
	}
	if c.ConvergenceWindow < 0 || c.PurgeInterval <= 0 {
		return errors.New("convergence_window and purge_interval must be positive")
	}
	if c.AppendQueue < 1 {
		return errors.New("append_queue must be positive")
	}
	if c.DefaultProxyCount < 1 {
		return errors.New("default_proxy_count must be positive")
	}
	return nil
}
