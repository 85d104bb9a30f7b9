package interfaces

import "context"

// LogEntry 追加日志中的一条记录
type LogEntry struct {
	ID        string
	Timestamp int64
	Data      []byte
}

// DurableLog 持久化追加日志
//
// 以 (id, timestamp) 为键追加记录；启动时先加载最新快照，
// 再按时间戳顺序回放快照之后的日志。
//
// 线程安全：实现必须保证所有方法可并发调用。
type DurableLog interface {
	// Append 追加一条记录
	Append(ctx context.Context, id string, ts int64, data []byte) error

	// SaveSnapshot 保存快照，ts 为快照覆盖到的最大时间戳
	SaveSnapshot(ctx context.Context, ts int64, data []byte) error

	// LoadLatestSnapshot 加载最新快照，没有快照时 ok 为 false
	LoadLatestSnapshot(ctx context.Context) (ts int64, data []byte, ok bool, err error)

	// ReplaySince 返回时间戳严格大于 ts 的记录，按 (timestamp, id) 升序
	ReplaySince(ctx context.Context, ts int64) ([]LogEntry, error)

	// Close 关闭日志
	Close() error
}
