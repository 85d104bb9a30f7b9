// Package redislog 在 Redis 上实现持久化追加日志
//
// 键布局：
//
//	<prefix>:log:entries   有序集合，score 为时间戳，成员为 msgpack 编码的条目
//	<prefix>:log:snapshot  哈希，字段 ts 与 data
package redislog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/util/logger"
	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
)

var log = logger.Logger("storage.redis")

var (
	// ErrClosed 日志已关闭
	ErrClosed = errors.New("redislog: closed")

	// ErrEmptyID 条目 ID 为空
	ErrEmptyID = errors.New("redislog: empty entry id")
)

// member 有序集合成员
type member struct {
	ID   string `msgpack:"i"`
	TS   int64  `msgpack:"t"`
	Data []byte `msgpack:"d"`
}

// Log 基于 Redis 的 DurableLog
type Log struct {
	client      redis.UniversalClient
	entriesKey  string
	snapshotKey string
	owned       bool
	closed      atomic.Bool
}

var _ pkgif.DurableLog = (*Log)(nil)

// New 在已有客户端上创建日志，Close 不会关闭客户端
func New(client redis.UniversalClient, prefix string) *Log {
	if prefix == "" {
		prefix = "hypergrid"
	}
	return &Log{
		client:      client,
		entriesKey:  prefix + ":log:entries",
		snapshotKey: prefix + ":log:snapshot",
	}
}

// Open 按配置连接 Redis 并创建日志
func Open(ctx context.Context, cfg config.StorageConfig) (*Log, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redislog: connect %s: %w", cfg.RedisAddr, err)
	}
	l := New(client, cfg.RedisPrefix)
	l.owned = true
	log.Info("已连接 Redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	return l, nil
}

func (l *Log) check(ctx context.Context) error {
	if l.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

// Append 追加一条记录
func (l *Log) Append(ctx context.Context, id string, ts int64, data []byte) error {
	if err := l.check(ctx); err != nil {
		return err
	}
	if id == "" {
		return ErrEmptyID
	}
	m, err := msgpack.Marshal(member{ID: id, TS: ts, Data: data})
	if err != nil {
		return err
	}
	return l.client.ZAdd(ctx, l.entriesKey, redis.Z{Score: float64(ts), Member: m}).Err()
}

// SaveSnapshot 保存快照并在同一事务中删除被覆盖的条目
func (l *Log) SaveSnapshot(ctx context.Context, ts int64, data []byte) error {
	if err := l.check(ctx); err != nil {
		return err
	}
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, l.snapshotKey, "ts", ts, "data", data)
		pipe.ZRemRangeByScore(ctx, l.entriesKey, "-inf", strconv.FormatInt(ts, 10))
		return nil
	})
	return err
}

// LoadLatestSnapshot 加载最新快照
func (l *Log) LoadLatestSnapshot(ctx context.Context) (int64, []byte, bool, error) {
	if err := l.check(ctx); err != nil {
		return 0, nil, false, err
	}
	vals, err := l.client.HMGet(ctx, l.snapshotKey, "ts", "data").Result()
	if err != nil {
		return 0, nil, false, err
	}
	if len(vals) != 2 || vals[0] == nil {
		return 0, nil, false, nil
	}

	tsStr, _ := vals[0].(string)
	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, nil, false, fmt.Errorf("redislog: corrupted snapshot ts %q: %w", tsStr, err)
	}
	var data []byte
	if s, ok := vals[1].(string); ok {
		data = []byte(s)
	}
	return ts, data, true, nil
}

// ReplaySince 返回时间戳严格大于 ts 的条目，按 (timestamp, id) 升序
func (l *Log) ReplaySince(ctx context.Context, ts int64) ([]pkgif.LogEntry, error) {
	if err := l.check(ctx); err != nil {
		return nil, err
	}
	raw, err := l.client.ZRangeByScore(ctx, l.entriesKey, &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(ts, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]pkgif.LogEntry, 0, len(raw))
	for _, s := range raw {
		var m member
		if err := msgpack.Unmarshal([]byte(s), &m); err != nil {
			log.Warn("跳过损坏的日志条目", "error", err)
			continue
		}
		out = append(out, pkgif.LogEntry{ID: m.ID, Timestamp: m.TS, Data: m.Data})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Close 关闭日志
func (l *Log) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	if !l.owned {
		return nil
	}
	return l.client.Close()
}
