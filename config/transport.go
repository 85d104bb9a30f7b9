package config

import (
	"errors"
	"time"
)

// TransportConfig 流式传输配置
type TransportConfig struct {
	// ListenAddr Hub 监听地址
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`

	// Path WebSocket 路径
	Path string `json:"path" yaml:"path"`

	// HeartbeatInterval 心跳间隔
	HeartbeatInterval Duration `json:"heartbeat_interval" yaml:"heartbeat_interval"`

	// HeartbeatTimeout 无流量超时，超过后重连
	HeartbeatTimeout Duration `json:"heartbeat_timeout" yaml:"heartbeat_timeout"`

	// ReconnectBase 重连初始退避
	ReconnectBase Duration `json:"reconnect_base" yaml:"reconnect_base"`

	// ReconnectMax 重连最大退避
	ReconnectMax Duration `json:"reconnect_max" yaml:"reconnect_max"`

	// MaxReconnectAttempts 最大重连次数
	MaxReconnectAttempts int `json:"max_reconnect_attempts" yaml:"max_reconnect_attempts"`

	// SendQueueSize 客户端断线期间的发送队列长度
	SendQueueSize int `json:"send_queue_size" yaml:"send_queue_size"`

	// ObserverQueueSize 服务端每个观察者的出站队列长度
	ObserverQueueSize int `json:"observer_queue_size" yaml:"observer_queue_size"`

	// WriteTimeout 单帧写超时
	WriteTimeout Duration `json:"write_timeout" yaml:"write_timeout"`

	// MaxFrameSize 最大帧大小
	MaxFrameSize int64 `json:"max_frame_size" yaml:"max_frame_size"`
}

// DefaultTransportConfig 返回默认传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		ListenAddr:           ":8080",
		Path:                 "/stream",
		HeartbeatInterval:    Duration(15 * time.Second),
		HeartbeatTimeout:     Duration(45 * time.Second),
		ReconnectBase:        Duration(time.Second),
		ReconnectMax:         Duration(30 * time.Second),
		MaxReconnectAttempts: 10,
		SendQueueSize:        1024,
		ObserverQueueSize:    256,
		WriteTimeout:         Duration(10 * time.Second),
		MaxFrameSize:         4 << 20,
	}
}

// Validate 验证传输配置
func (c *TransportConfig) Validate() error {
	if c.HeartbeatInterval <= 0 {
		return errors.New("heartbeat_interval must be positive")
	}
	if c.HeartbeatTimeout <= c.HeartbeatInterval {
		return errors.New("heartbeat_timeout must exceed heartbeat_interval")
	}
	if c.ReconnectBase <= 0 || c.ReconnectMax < c.ReconnectBase {
		return errors.New("reconnect_base must be positive and not exceed reconnect_max")
	}
	if c.MaxReconnectAttempts < 1 {
		return errors.New("max_reconnect_attempts must be at least 1")
	}
	if c.SendQueueSize < 1 || c.ObserverQueueSize < 1 {
		return errors.New("queue sizes must be positive")
	}
	if c.MaxFrameSize < 1024 {
		return errors.New("max_frame_size must be at least 1KB")
	}
	return nil
}
