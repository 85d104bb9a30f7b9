package config

import (
	"errors"
	"runtime"
)

// WorkerConfig 计算工作池配置
type WorkerConfig struct {
	// Size 并发槽位数，0 表示使用 GOMAXPROCS
	Size int `json:"size" yaml:"size"`
}

// DefaultWorkerConfig 返回默认工作池配置
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{}
}

// EffectiveSize 返回实际槽位数
func (c *WorkerConfig) EffectiveSize() int {
	if c.Size > 0 {
		return c.Size
	}
	return runtime.GOMAXPROCS(0)
}

// Validate 验证工作池配置
func (c *WorkerConfig) Validate() error {
	if c.Size < 0 {
		return errors.New("size cannot be negative")
	}
	return nil
}
