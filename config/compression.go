package config

import "errors"

// CompressionConfig 压缩配置
//
// 阈值只影响压缩率与耗时，不影响正确性。
type CompressionConfig struct {
	// MinSize 小于该大小不压缩
	MinSize int `json:"min_size" yaml:"min_size"`

	// FastThreshold 小于该大小用 s2，否则用 zstd
	FastThreshold int `json:"fast_threshold" yaml:"fast_threshold"`

	// ZstdLevel zstd 压缩级别：fastest / default / better / best
	ZstdLevel string `json:"zstd_level" yaml:"zstd_level"`
}

// DefaultCompressionConfig 返回默认压缩配置
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:       512,
		FastThreshold: 64 << 10,
		ZstdLevel:     "default",
	}
}

// Validate 验证压缩配置
func (c *CompressionConfig) Validate() error {
	if c.MinSize < 0 {
		return errors.New("min_size cannot be negative")
	}
	if c.FastThreshold < c.MinSize {
		return errors.New("fast_threshold must not be below min_size")
	}
	switch c.ZstdLevel {
	case "", "fastest", "default", "better", "best":
	default:
		return errors.New("unknown zstd_level")
	}
	return nil
}
