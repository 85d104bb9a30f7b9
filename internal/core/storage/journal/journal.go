// Package journal 在 BadgerDB 引擎上实现持久化追加日志
//
// 键布局（位于 j/ 前缀下）：
//
//	e/<ts:016x>/<id>   日志条目，值为原始数据
//	s/latest           最新快照，值为 8 字节大端 ts + 快照数据
//
// 十六进制定长时间戳使键的字典序与 (timestamp, id) 升序一致。
package journal

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/dep2p/go-hypergrid/internal/core/storage/engine"
	"github.com/dep2p/go-hypergrid/internal/core/storage/engine/badger"
	"github.com/dep2p/go-hypergrid/internal/core/storage/kv"
	"github.com/dep2p/go-hypergrid/internal/util/logger"
	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
)

var log = logger.Logger("storage.journal")

var (
	// ErrClosed 日志已关闭
	ErrClosed = errors.New("journal: closed")

	// ErrEmptyID 条目 ID 为空
	ErrEmptyID = errors.New("journal: empty entry id")

	// ErrNegativeTimestamp 时间戳为负
	ErrNegativeTimestamp = errors.New("journal: negative timestamp")
)

var (
	keyPrefix      = []byte("j/")
	entryPrefix    = []byte("e/")
	entryEnd       = []byte("e0") // '0' 紧跟在 '/' 之后
	snapshotLatest = []byte("s/latest")
)

// Journal 基于 kv.Store 的 DurableLog
type Journal struct {
	store  *kv.Store
	eng    engine.Engine
	owned  bool
	closed atomic.Bool
}

var _ pkgif.DurableLog = (*Journal)(nil)

// New 在已有引擎上创建日志，Close 不会关闭引擎
func New(eng engine.Engine) *Journal {
	return &Journal{store: kv.New(eng, keyPrefix), eng: eng}
}

// Open 打开 BadgerDB 并创建日志，Close 时一并关闭引擎
func Open(cfg *engine.Config) (*Journal, error) {
	eng, err := badger.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := eng.Start(); err != nil {
		return nil, multierr.Append(err, eng.Close())
	}
	j := New(eng)
	j.owned = true
	return j, nil
}

// NewMemory 创建基于内存引擎的日志
func NewMemory() (*Journal, error) {
	return Open(engine.MemoryConfig())
}

func entryKey(ts int64, id string) []byte {
	return []byte(fmt.Sprintf("e/%016x/%s", uint64(ts), id))
}

// parseEntryKey 从 e/<ts>/<id> 解析时间戳与 ID
func parseEntryKey(key []byte) (int64, string, error) {
	rest := bytes.TrimPrefix(key, entryPrefix)
	if len(rest) < 18 || rest[16] != '/' {
		return 0, "", engine.ErrCorrupted
	}
	ts, err := strconv.ParseUint(string(rest[:16]), 16, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", engine.ErrCorrupted, err)
	}
	return int64(ts), string(rest[17:]), nil
}

func (j *Journal) check(ctx context.Context) error {
	if j.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

// Append 追加一条记录
func (j *Journal) Append(ctx context.Context, id string, ts int64, data []byte) error {
	if err := j.check(ctx); err != nil {
		return err
	}
	if id == "" {
		return ErrEmptyID
	}
	if ts < 0 {
		return ErrNegativeTimestamp
	}
	return j.store.Put(entryKey(ts, id), data)
}

// SaveSnapshot 保存快照并删除被快照覆盖的条目
//
// 快照写入与条目删除在同一批次中提交。
func (j *Journal) SaveSnapshot(ctx context.Context, ts int64, data []byte) error {
	if err := j.check(ctx); err != nil {
		return err
	}
	if ts < 0 {
		return ErrNegativeTimestamp
	}

	value := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(value, uint64(ts))
	copy(value[8:], data)

	batch := j.store.NewBatch()
	batch.Put(snapshotLatest, value)

	end := entryEnd
	if ts < math.MaxInt64 {
		end = entryKey(ts+1, "")
	}
	err := j.store.RangeScan(entryPrefix, end, func(key, _ []byte) bool {
		batch.Delete(key)
		return true
	})
	if err != nil {
		batch.Cancel()
		return err
	}

	compacted := batch.Size() - 1
	if err := batch.Write(); err != nil {
		return err
	}
	log.Debug("快照已保存", "ts", ts, "bytes", len(data), "compacted", compacted)
	return nil
}

// LoadLatestSnapshot 加载最新快照
func (j *Journal) LoadLatestSnapshot(ctx context.Context) (int64, []byte, bool, error) {
	if err := j.check(ctx); err != nil {
		return 0, nil, false, err
	}
	value, err := j.store.Get(snapshotLatest)
	if engine.IsNotFound(err) {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, err
	}
	if len(value) < 8 {
		return 0, nil, false, engine.ErrCorrupted
	}
	return int64(binary.BigEndian.Uint64(value)), value[8:], true, nil
}

// ReplaySince 返回时间戳严格大于 ts 的条目
func (j *Journal) ReplaySince(ctx context.Context, ts int64) ([]pkgif.LogEntry, error) {
	if err := j.check(ctx); err != nil {
		return nil, err
	}
	if ts == math.MaxInt64 {
		return nil, nil
	}

	start := entryPrefix
	if ts >= 0 {
		start = entryKey(ts+1, "")
	}

	var (
		out     []pkgif.LogEntry
		scanErr error
	)
	err := j.store.RangeScan(start, entryEnd, func(key, value []byte) bool {
		if scanErr = ctx.Err(); scanErr != nil {
			return false
		}
		entryTS, id, err := parseEntryKey(key)
		if err != nil {
			log.Warn("跳过损坏的日志键", "key", string(key), "error", err)
			return true
		}
		out = append(out, pkgif.LogEntry{ID: id, Timestamp: entryTS, Data: value})
		return true
	})
	if err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, scanErr
	}
	return out, nil
}

// Close 关闭日志
func (j *Journal) Close() error {
	if j.closed.Swap(true) {
		return nil
	}
	if !j.owned {
		return nil
	}
	return multierr.Combine(j.eng.Sync(), j.eng.Close())
}
