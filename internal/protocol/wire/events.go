package wire

// 通道事件名
const (
	EventSnapshot       = "snapshot"
	EventSessionCreated = "session/created"
	EventSessionUpdated = "session/updated"
	EventSessionDeleted = "session/deleted"
	EventSessionMetrics = "session/metrics"
	EventMeshUpdate     = "hypergrid/update"

	// EventHeartbeat 控制事件，线上只传输哨兵字节
	EventHeartbeat = "heartbeat"
)

// Heartbeat 心跳哨兵
var Heartbeat = [4]byte{0xFF, 0x48, 0x42, 0x00}

// IsHeartbeat 判断帧是否为心跳
func IsHeartbeat(frame []byte) bool {
	return len(frame) == len(Heartbeat) && [4]byte(frame) == Heartbeat
}

// IsSessionEvent 判断事件是否为会话增量
func IsSessionEvent(typ string) bool {
	switch typ {
	case EventSessionCreated, EventSessionUpdated, EventSessionDeleted:
		return true
	}
	return false
}
