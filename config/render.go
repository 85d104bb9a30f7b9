package config

import "errors"

// RenderConfig 渲染派发配置
type RenderConfig struct {
	// QueueSize 派发队列长度
	QueueSize int `json:"queue_size" yaml:"queue_size"`

	// RatePerSession 每个会话每秒允许的回调数
	RatePerSession float64 `json:"rate_per_session" yaml:"rate_per_session"`

	// Burst 突发上限
	Burst int `json:"burst" yaml:"burst"`
}

// DefaultRenderConfig 返回默认渲染配置
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		QueueSize:      256,
		RatePerSession: 10,
		Burst:          20,
	}
}

// Validate 验证渲染配置
func (c *RenderConfig) Validate() error {
	if c.QueueSize < 1 {
		return errors.New("queue_size must be positive")
	}
	if c.RatePerSession <= 0 || c.Burst < 1 {
		return errors.New("rate_per_session and burst must be positive")
	}
	return nil
}
