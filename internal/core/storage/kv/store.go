// Package kv 在存储引擎之上提供带前缀隔离的键值存储
//
// 键空间约定：
//   - j/e/ - 日志条目，键为 <ts:016x>/<id>
//   - j/s/ - 日志快照
//
// 使用示例：
//
//	eng, _ := badger.New(cfg)
//	journal := kv.New(eng, []byte("j/"))
//	journal.Put([]byte("s/latest"), data) // 实际键: j/s/latest
package kv

import (
	"encoding/binary"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/dep2p/go-hypergrid/internal/core/storage/engine"
)

// Store 带前缀的键值存储
type Store struct {
	engine engine.Engine
	prefix []byte
}

// New 创建 Store
func New(eng engine.Engine, prefix []byte) *Store {
	return &Store{
		engine: eng,
		prefix: append([]byte(nil), prefix...),
	}
}

func (s *Store) prefixKey(key []byte) []byte {
	out := make([]byte, len(s.prefix)+len(key))
	copy(out, s.prefix)
	copy(out[len(s.prefix):], key)
	return out
}

func (s *Store) stripPrefix(key []byte) []byte {
	if len(key) < len(s.prefix) {
		return key
	}
	return key[len(s.prefix):]
}

// Get 读取键
func (s *Store) Get(key []byte) ([]byte, error) {
	return s.engine.Get(s.prefixKey(key))
}

// Put 写入键值
func (s *Store) Put(key, value []byte) error {
	return s.engine.Put(s.prefixKey(key), value)
}

// Delete 删除键
func (s *Store) Delete(key []byte) error {
	return s.engine.Delete(s.prefixKey(key))
}

// Has 检查键是否存在
func (s *Store) Has(key []byte) (bool, error) {
	return s.engine.Has(s.prefixKey(key))
}

// ============================================================================
//                              编码辅助
// ============================================================================

// GetMsgpack 读取并解码 msgpack 值
func (s *Store) GetMsgpack(key []byte, v any) error {
	data, err := s.Get(key)
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(data, v)
}

// PutMsgpack 编码为 msgpack 并写入
func (s *Store) PutMsgpack(key []byte, v any) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	return s.Put(key, data)
}

// GetUint64 读取大端 uint64
func (s *Store) GetUint64(key []byte) (uint64, error) {
	data, err := s.Get(key)
	if err != nil {
		return 0, err
	}
	if len(data) < 8 {
		return 0, engine.ErrCorrupted
	}
	return binary.BigEndian.Uint64(data), nil
}

// PutUint64 写入大端 uint64
func (s *Store) PutUint64(key []byte, value uint64) error {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, value)
	return s.Put(key, data)
}

// ============================================================================
//                              扫描
// ============================================================================

// PrefixScan 扫描子前缀下的全部键值
//
// 回调返回 false 时停止；回调拿到的键已去除 Store 前缀。
func (s *Store) PrefixScan(subPrefix []byte, fn func(key, value []byte) bool) error {
	it := s.engine.NewPrefixIterator(s.prefixKey(subPrefix))
	defer it.Close()

	for it.First(); it.Valid(); it.Next() {
		if !fn(s.stripPrefix(it.Key()), it.Value()) {
			break
		}
	}
	return it.Error()
}

// RangeScan 扫描 [startKey, endKey) 范围，endKey 为 nil 时扫描到前缀末尾
func (s *Store) RangeScan(startKey, endKey []byte, fn func(key, value []byte) bool) error {
	opts := &engine.IteratorOptions{
		Prefix:         s.prefix,
		StartKey:       s.prefixKey(startKey),
		PrefetchValues: true,
	}
	if endKey != nil {
		opts.EndKey = s.prefixKey(endKey)
	}

	it := s.engine.NewIterator(opts)
	defer it.Close()

	for it.First(); it.Valid(); it.Next() {
		if !fn(s.stripPrefix(it.Key()), it.Value()) {
			break
		}
	}
	return it.Error()
}

// Keys 返回子前缀下的全部键
func (s *Store) Keys(subPrefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := s.PrefixScan(subPrefix, func(key, _ []byte) bool {
		keys = append(keys, key)
		return true
	})
	return keys, err
}

// Count 统计子前缀下的键数量
func (s *Store) Count(subPrefix []byte) (int64, error) {
	var n int64
	err := s.PrefixScan(subPrefix, func(_, _ []byte) bool {
		n++
		return true
	})
	return n, err
}

// ============================================================================
//                              批量
// ============================================================================

// Batch 带前缀的批量写入
type Batch struct {
	store *Store
	batch engine.Batch
}

// NewBatch 创建批量写入
func (s *Store) NewBatch() *Batch {
	return &Batch{store: s, batch: s.engine.NewBatch()}
}

// Put 添加写入操作
func (b *Batch) Put(key, value []byte) {
	b.batch.Put(b.store.prefixKey(key), value)
}

// Delete 添加删除操作
func (b *Batch) Delete(key []byte) {
	b.batch.Delete(b.store.prefixKey(key))
}

// Write 提交
func (b *Batch) Write() error {
	return b.batch.Write()
}

// Size 返回待提交的操作数
func (b *Batch) Size() int {
	return b.batch.Size()
}

// Cancel 丢弃未提交的操作
func (b *Batch) Cancel() {
	b.batch.Cancel()
}

// Prefix 返回前缀
func (s *Store) Prefix() []byte {
	return s.prefix
}

// SubStore 在当前前缀下创建子存储
func (s *Store) SubStore(subPrefix []byte) *Store {
	return &Store{engine: s.engine, prefix: s.prefixKey(subPrefix)}
}

// Engine 返回底层引擎
func (s *Store) Engine() engine.Engine {
	return s.engine
}
