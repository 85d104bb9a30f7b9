package stream

import (
	"github.com/dep2p/go-hypergrid/internal/protocol/wire"
)

// EventKind 客户端事件类型
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventSnapshot
	EventUpdate
	EventMetrics
	EventError
	EventReconnectExhausted
)

// String 返回事件名
func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventSnapshot:
		return "snapshot"
	case EventUpdate:
		return "update"
	case EventMetrics:
		return "metrics"
	case EventError:
		return "error"
	case EventReconnectExhausted:
		return "reconnect-exhausted"
	default:
		return "unknown"
	}
}

// Event 客户端事件
type Event struct {
	Kind EventKind
	// Envelope 收到的信封（snapshot / update / metrics）
	Envelope *wire.Envelope
	// Err 错误详情（error / disconnected）
	Err error
	// Attempt 重连次数（error / reconnect-exhausted）
	Attempt int
}

// kindOf 根据信封类型归类事件
func kindOf(typ string) (EventKind, bool) {
	switch {
	case typ == wire.EventSnapshot:
		return EventSnapshot, true
	case typ == wire.EventSessionMetrics:
		return EventMetrics, true
	case wire.IsSessionEvent(typ), typ == wire.EventMeshUpdate:
		return EventUpdate, true
	}
	return 0, false
}
