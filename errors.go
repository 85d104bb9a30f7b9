package hypergrid

import "errors"

var (
	// ErrEngineClosed 引擎已停止
	ErrEngineClosed = errors.New("hypergrid: engine closed")
	// ErrAlreadyStarted 引擎已启动
	ErrAlreadyStarted = errors.New("hypergrid: engine already started")
)
