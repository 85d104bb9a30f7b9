package badger

import (
	"bytes"

	"github.com/dgraph-io/badger/v4"

	"github.com/dep2p/go-hypergrid/internal/core/storage/engine"
)

// Iterator BadgerDB 迭代器
//
// 持有一个只读事务，Close 时释放。
type Iterator struct {
	txn      *badger.Txn
	iter     *badger.Iterator
	prefix   []byte
	startKey []byte
	endKey   []byte
	reverse  bool
	started  bool
	closed   bool
	err      error
}

var _ engine.Iterator = (*Iterator)(nil)

// First 定位到第一个键
func (it *Iterator) First() bool {
	if it.closed {
		return false
	}
	it.started = true

	switch {
	case it.reverse && len(it.endKey) > 0:
		// 反向迭代时 Seek 找到 <= endKey 的最大键，endKey 本身不包含
		it.iter.Seek(it.endKey)
		if it.iter.Valid() && bytes.Equal(it.iter.Item().Key(), it.endKey) {
			it.iter.Next()
		}
	case it.reverse && len(it.prefix) > 0:
		it.iter.Seek(append(append([]byte(nil), it.prefix...), 0xFF))
	case !it.reverse && len(it.startKey) > 0:
		it.iter.Seek(it.startKey)
	default:
		it.iter.Rewind()
	}
	return it.Valid()
}

// Next 前进一步
func (it *Iterator) Next() bool {
	if it.closed {
		return false
	}
	if !it.started {
		return it.First()
	}
	it.iter.Next()
	return it.Valid()
}

// Valid 当前位置是否有效
func (it *Iterator) Valid() bool {
	if it.closed || !it.iter.Valid() {
		return false
	}

	key := it.iter.Item().Key()
	if len(it.prefix) > 0 && !bytes.HasPrefix(key, it.prefix) {
		return false
	}
	if it.reverse {
		return len(it.startKey) == 0 || bytes.Compare(key, it.startKey) >= 0
	}
	return len(it.endKey) == 0 || bytes.Compare(key, it.endKey) < 0
}

// Key 返回当前键的副本
func (it *Iterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.iter.Item().KeyCopy(nil)
}

// Value 返回当前值的副本
func (it *Iterator) Value() []byte {
	if !it.Valid() {
		return nil
	}
	value, err := it.iter.Item().ValueCopy(nil)
	if err != nil {
		it.err = err
		return nil
	}
	return value
}

// Close 释放迭代器与事务
func (it *Iterator) Close() {
	if it.closed {
		return
	}
	it.closed = true
	it.iter.Close()
	it.txn.Discard()
}

// Error 返回迭代过程中的错误
func (it *Iterator) Error() error {
	return it.err
}
