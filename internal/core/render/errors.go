package render

import "errors"

var (
	// ErrClosed 派发器已关闭
	ErrClosed = errors.New("render: dispatcher closed")
	// ErrQueueFull 派发队列已满
	ErrQueueFull = errors.New("render: dispatch queue full")
	// ErrNoRenderPool 没有配置外部渲染工作池
	ErrNoRenderPool = errors.New("render: no render pool configured")
	// ErrThrottled 回调超过会话速率限制
	ErrThrottled = errors.New("render: callback rate exceeded")
)
