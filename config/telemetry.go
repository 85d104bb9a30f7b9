package config

import (
	"errors"
	"time"
)

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// FoldInterval 折叠周期
	FoldInterval Duration `json:"fold_interval" yaml:"fold_interval"`

	// EWMAAlpha 指数加权平均系数
	EWMAAlpha float64 `json:"ewma_alpha" yaml:"ewma_alpha"`

	// WindowSize p95 延迟窗口大小
	WindowSize int `json:"window_size" yaml:"window_size"`

	// BufferSize 待折叠样本缓冲区大小，满时丢弃最旧样本
	BufferSize int `json:"buffer_size" yaml:"buffer_size"`

	// DegradedErrorRate 超过该错误率的会话被标记为 degraded
	DegradedErrorRate float64 `json:"degraded_error_rate" yaml:"degraded_error_rate"`
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		FoldInterval:      Duration(time.Second),
		EWMAAlpha:         0.3,
		WindowSize:        1024,
		BufferSize:        8192,
		DegradedErrorRate: 0.5,
	}
}

// Validate 验证遥测配置
func (c *TelemetryConfig) Validate() error {
	if c.FoldInterval <= 0 {
		return errors.New("fold_interval must be positive")
	}
	if c.EWMAAlpha <= 0 || c.EWMAAlpha > 1 {
		return errors.New("ewma_alpha must be within (0,1]")
	}
	if c.WindowSize < 1 || c.BufferSize < 1 {
		return errors.New("window_size and buffer_size must be positive")
	}
	if c.DegradedErrorRate <= 0 || c.DegradedErrorRate > 1 {
		return errors.New("degraded_error_rate must be within (0,1]")
	}
	return nil
}
