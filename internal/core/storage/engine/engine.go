// Package engine 定义存储引擎接口
//
// 上层（kv、journal）只依赖本包的接口，具体实现见 engine/badger。
// 所有实现必须保证并发安全；批量写入在提交前对其他操作不可见。
package engine

// Engine 键值存储引擎
type Engine interface {
	// Get 读取键，不存在时返回 ErrNotFound
	Get(key []byte) ([]byte, error)

	// Put 写入键值
	Put(key, value []byte) error

	// Delete 删除键，键不存在不是错误
	Delete(key []byte) error

	// Has 检查键是否存在
	Has(key []byte) (bool, error)

	// NewBatch 创建批量写入
	NewBatch() Batch

	// NewIterator 创建迭代器，opts 为 nil 时使用默认选项
	NewIterator(opts *IteratorOptions) Iterator

	// NewPrefixIterator 创建前缀迭代器
	NewPrefixIterator(prefix []byte) Iterator

	// Start 启动后台任务（值日志 GC）
	Start() error

	// Sync 同步数据到磁盘
	Sync() error

	// Stats 返回统计快照
	Stats() Stats

	// Close 关闭引擎
	Close() error
}

// Batch 批量写入
//
// 非并发安全，只应在单个 goroutine 中使用。
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)

	// Write 原子提交全部操作，提交后批量被重置
	Write() error

	// Size 返回待提交的操作数
	Size() int

	// Cancel 丢弃未提交的操作
	Cancel()
}

// Iterator 迭代器
//
// 迭代器持有创建时的快照视图，不受之后写入的影响：
//
//	it := eng.NewPrefixIterator(prefix)
//	defer it.Close()
//	for it.First(); it.Valid(); it.Next() {
//	    use(it.Key(), it.Value())
//	}
//	return it.Error()
type Iterator interface {
	First() bool
	Next() bool
	Valid() bool

	// Key 返回当前键的副本
	Key() []byte

	// Value 返回当前值的副本
	Value() []byte

	Close()
	Error() error
}

// IteratorOptions 迭代器选项
type IteratorOptions struct {
	// Prefix 仅迭代具有此前缀的键
	Prefix []byte

	// StartKey 起始键（包含）
	StartKey []byte

	// EndKey 结束键（不包含）
	EndKey []byte

	// Reverse 反向迭代
	Reverse bool

	// PrefetchValues 是否预取值
	PrefetchValues bool
}

// DefaultIteratorOptions 返回默认迭代器选项
func DefaultIteratorOptions() *IteratorOptions {
	return &IteratorOptions{PrefetchValues: true}
}

// Stats 引擎统计
type Stats struct {
	LSMSize    int64 `json:"lsm_size"`
	VlogSize   int64 `json:"vlog_size"`
	NumReads   int64 `json:"num_reads"`
	NumWrites  int64 `json:"num_writes"`
	NumDeletes int64 `json:"num_deletes"`
	NumMisses  int64 `json:"num_misses"`
}
