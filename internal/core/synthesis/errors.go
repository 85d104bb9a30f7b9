package synthesis

import "errors"

var (
	// ErrEngineClosed 合成引擎已关闭
	ErrEngineClosed = errors.New("synthesis: engine closed")

	// ErrEmptyMesh 网格中没有可用代理
	ErrEmptyMesh = errors.New("synthesis: mesh has no live proxies")
)
