package badger

import (
	"github.com/dgraph-io/badger/v4"

	"github.com/dep2p/go-hypergrid/internal/core/storage/engine"
)

type batchOp struct {
	key    []byte
	value  []byte
	delete bool
}

// WriteBatch 批量写入
//
// 操作先缓存在内存中，Write 时在单个读写事务内提交，
// 因此提交是原子的；超过事务上限时返回 ErrTransactionTooLarge。
type WriteBatch struct {
	eng *Engine
	ops []batchOp
}

var _ engine.Batch = (*WriteBatch)(nil)

// Put 添加写入操作
func (b *WriteBatch) Put(key, value []byte) {
	if len(key) == 0 {
		return
	}
	b.ops = append(b.ops, batchOp{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
}

// Delete 添加删除操作
func (b *WriteBatch) Delete(key []byte) {
	if len(key) == 0 {
		return
	}
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), delete: true})
}

// Write 提交全部操作
func (b *WriteBatch) Write() error {
	if b.eng.closed.Load() {
		return engine.ErrClosed
	}
	if b.eng.config.ReadOnly {
		return engine.ErrReadOnly
	}
	if len(b.ops) == 0 {
		return nil
	}

	err := b.eng.db.Update(func(txn *badger.Txn) error {
		for _, op := range b.ops {
			var err error
			if op.delete {
				err = txn.Delete(op.key)
			} else {
				err = txn.Set(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return convertError(err)
	}

	for _, op := range b.ops {
		if op.delete {
			b.eng.stats.numDeletes.Add(1)
		} else {
			b.eng.stats.numWrites.Add(1)
		}
	}
	b.ops = b.ops[:0]
	return nil
}

// Size 返回待提交的操作数
func (b *WriteBatch) Size() int {
	return len(b.ops)
}

// Cancel 丢弃未提交的操作
func (b *WriteBatch) Cancel() {
	b.ops = nil
}
