package stream

import "errors"

var (
	// ErrClosed 客户端或 Hub 已关闭
	ErrClosed = errors.New("stream: closed")
	// ErrQueueFull 发送队列已满
	ErrQueueFull = errors.New("stream: send queue full")
	// ErrHeartbeatTimeout 超过心跳超时没有收到任何数据
	ErrHeartbeatTimeout = errors.New("stream: heartbeat timeout")
	// ErrNoSessionStore Hub 没有会话存储
	ErrNoSessionStore = errors.New("stream: session store is required")
)
