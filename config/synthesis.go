package config

import (
	"errors"
	"math"

	"github.com/dep2p/go-hypergrid/pkg/types"
)

// SynthesisConfig 网格合成配置
type SynthesisConfig struct {
	// CacheSize 网格 LRU 缓存容量
	CacheSize int `json:"cache_size" yaml:"cache_size"`

	// MaxPeers 每个代理的最大对等数（需求未指定时使用）
	MaxPeers int `json:"max_peers" yaml:"max_peers"`

	// ECMPTolerance 等价多路径的相对代价容差
	ECMPTolerance float64 `json:"ecmp_tolerance" yaml:"ecmp_tolerance"`

	// MaxECMPPaths 单个目的地最多保留的主路径数
	MaxECMPPaths int `json:"max_ecmp_paths" yaml:"max_ecmp_paths"`

	// Weights 路由权重（需求未指定时使用）
	Weights types.RoutingWeights `json:"weights" yaml:"weights"`

	// BackboneCapacityMbps 单条骨干链路的容量
	BackboneCapacityMbps float64 `json:"backbone_capacity_mbps" yaml:"backbone_capacity_mbps"`

	// Protocols 默认支持的协议
	Protocols []string `json:"protocols" yaml:"protocols"`
}

// DefaultSynthesisConfig 返回默认合成配置
func DefaultSynthesisConfig() SynthesisConfig {
	return SynthesisConfig{
		CacheSize:            16,
		MaxPeers:             6,
		ECMPTolerance:        0.05,
		MaxECMPPaths:         4,
		Weights:              types.DefaultRoutingWeights(),
		BackboneCapacityMbps: 40000,
		Protocols:            []string{"http", "https", "socks5"},
	}
}

// Validate 验证合成配置
func (c *SynthesisConfig) Validate() error {
	if c.CacheSize <= 0 {
		return errors.New("cache_size must be positive")
	}
	if c.MaxPeers < 1 {
		return errors.New("max_peers must be at least 1")
	}
	if c.ECMPTolerance < 0 || c.ECMPTolerance > 1 {
		return errors.New("ecmp_tolerance must be within [0,1]")
	}
	if c.MaxECMPPaths < 1 {
		return errors.New("max_ecmp_paths must be at least 1")
	}
	w := c.Weights
	sum := w.Latency + w.Bandwidth + w.Cost + w.Reliability
	if w.Latency < 0 || w.Bandwidth < 0 || w.Cost < 0 || w.Reliability < 0 || sum == 0 || math.IsNaN(sum) {
		return errors.New("weights must be non-negative with a positive sum")
	}
	if c.BackboneCapacityMbps <= 0 {
		return errors.New("backbone_capacity_mbps must be positive")
	}
	return nil
}
