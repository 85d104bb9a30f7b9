package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/multierr"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/util/logger"
	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

var log = logger.Logger("store")

// Stats 存储统计
type Stats struct {
	Capacity      int    `json:"capacity"`
	Records       int    `json:"records"`
	Tombstones    int    `json:"tombstones"`
	Applied       uint64 `json:"applied"`
	Ignored       uint64 `json:"ignored"`
	Invalid       uint64 `json:"invalid"`
	Gaps          uint64 `json:"gaps"`
	Purged        uint64 `json:"purged"`
	AppendDropped uint64 `json:"append_dropped"`
	AppendFailed  uint64 `json:"append_failed"`
}

// Option 存储选项
type Option func(*Store) error

// WithDurableLog 设置持久化日志
func WithDurableLog(dl pkgif.DurableLog) Option {
	return func(s *Store) error {
		s.dlog = dl
		return nil
	}
}

// WithCompressor 设置记录压缩能力
func WithCompressor(c pkgif.Compressor) Option {
	return func(s *Store) error {
		s.codec.comp = c
		return nil
	}
}

// WithEventBus 在事件总线上发布 SessionChanged
func WithEventBus(bus pkgif.EventBus) Option {
	return func(s *Store) error {
		em, err := bus.Emitter(new(types.SessionChanged))
		if err != nil {
			return err
		}
		s.emitter = em
		return nil
	}
}

// WithClock 设置时钟
func WithClock(c clock.Clock) Option {
	return func(s *Store) error {
		s.clock = c
		return nil
	}
}

// WithMetricsSink 设置指标样本接收方
func WithMetricsSink(sink pkgif.MetricsSink) Option {
	return func(s *Store) error {
		s.SetMetricsSink(sink)
		return nil
	}
}

// WithAssigner 设置代理分配器
func WithAssigner(a *Assigner) Option {
	return func(s *Store) error {
		s.assigner = a
		return nil
	}
}

type sinkBox struct {
	pkgif.MetricsSink
}

// SetMetricsSink 设置合并时指标样本的接收方
func (s *Store) SetMetricsSink(sink pkgif.MetricsSink) {
	if sink == nil {
		s.sink.Store(nil)
		return
	}
	s.sink.Store(&sinkBox{sink})
}

// appendItem 待追加到持久化日志的条目
type appendItem struct {
	id   string
	ts   int64
	data []byte
}

// Store 会话状态存储
type Store struct {
	cfg      config.StoreConfig
	shards   []*shard
	codec    recordCodec
	clock    clock.Clock
	dlog     pkgif.DurableLog
	emitter  pkgif.Emitter
	sink     atomic.Pointer[sinkBox]
	assigner *Assigner

	versionMu sync.Mutex
	local     map[string]uint64 // 本地写入的每写入方版本
	seen      map[string]uint64 // 每写入方见过的最大版本

	logMu     sync.Mutex
	lastLogTS int64

	appendMu sync.RWMutex
	appendCh chan appendItem

	startOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    atomic.Bool

	stats struct {
		applied       atomic.Uint64
		ignored       atomic.Uint64
		invalid       atomic.Uint64
		gaps          atomic.Uint64
		purged        atomic.Uint64
		appendDropped atomic.Uint64
		appendFailed  atomic.Uint64
	}
}

var _ pkgif.SessionStore = (*Store)(nil)

// New 创建存储
func New(cfg config.StoreConfig, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		cfg:    cfg,
		shards: make([]*shard, cfg.Shards),
		codec:  recordCodec{threshold: cfg.CompressThreshold},
		clock:  clock.New(),
		local:  make(map[string]uint64),
		seen:   make(map[string]uint64),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := range s.shards {
		s.shards[i] = newShard(i, cfg.SlotsPerShard, cfg.SlotSize, cfg.FilterFalsePositiveRate)
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			cancel()
			return nil, err
		}
	}

	if s.dlog != nil {
		s.appendCh = make(chan appendItem, cfg.AppendQueue)
		s.wg.Add(1)
		go s.appendLoop()
	}
	return s, nil
}

// ============================================================================
//                              读
// ============================================================================

// Get 读取会话，墓碑视为不存在
func (s *Store) Get(id string) (types.SessionRecord, bool) {
	rec, ok := s.getRaw(id)
	if !ok || rec.Deleted {
		return types.SessionRecord{}, false
	}
	return rec, true
}

// getRaw 读取记录，包括墓碑
func (s *Store) getRaw(id string) (types.SessionRecord, bool) {
	if id == "" {
		return types.SessionRecord{}, false
	}
	loc := locate(id, len(s.shards), s.cfg.SlotsPerShard)
	sh := s.shards[loc.shard]

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if !sh.maybeContains(id) {
		return types.SessionRecord{}, false
	}
	idx, found := sh.lookup(id, loc.home)
	if !found {
		return types.SessionRecord{}, false
	}
	rec, err := s.decodeSlot(sh, idx)
	if err != nil {
		log.Error("读取槽位失败", "shard", sh.index, "slot", idx, "id", id, "error", err)
		return types.SessionRecord{}, false
	}
	return rec, true
}

func (s *Store) decodeSlot(sh *shard, idx int) (types.SessionRecord, error) {
	flags, algo, body, err := sh.payload(idx)
	if err != nil {
		return types.SessionRecord{}, err
	}
	return s.codec.decode(flags, algo, body)
}

// List 返回全部未删除的会话，按 ID 排序
func (s *Store) List() []types.SessionRecord {
	out := s.scan(false)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// scan 遍历全部分片
func (s *Store) scan(withTombstones bool) []types.SessionRecord {
	var out []types.SessionRecord
	for _, sh := range s.shards {
		sh.mu.Lock()
		for idx, id := range sh.ids {
			if id == "" {
				continue
			}
			if !withTombstones && sh.deletedAt[idx] != 0 {
				continue
			}
			rec, err := s.decodeSlot(sh, idx)
			if err != nil {
				log.Error("读取槽位失败", "shard", sh.index, "slot", idx, "id", id, "error", err)
				continue
			}
			out = append(out, rec)
		}
		sh.mu.Unlock()
	}
	return out
}

// MaybeContains 存在性过滤器预检，可能假阳性，不会假阴性
func (s *Store) MaybeContains(id string) bool {
	loc := locate(id, len(s.shards), s.cfg.SlotsPerShard)
	sh := s.shards[loc.shard]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.maybeContains(id)
}

// Stats 返回统计快照
func (s *Store) Stats() Stats {
	st := Stats{
		Capacity:      s.cfg.Capacity(),
		Applied:       s.stats.applied.Load(),
		Ignored:       s.stats.ignored.Load(),
		Invalid:       s.stats.invalid.Load(),
		Gaps:          s.stats.gaps.Load(),
		Purged:        s.stats.purged.Load(),
		AppendDropped: s.stats.appendDropped.Load(),
		AppendFailed:  s.stats.appendFailed.Load(),
	}
	for _, sh := range s.shards {
		sh.mu.Lock()
		for idx, id := range sh.ids {
			switch {
			case id == "":
			case sh.deletedAt[idx] != 0:
				st.Tombstones++
			default:
				st.Records++
			}
		}
		sh.mu.Unlock()
	}
	return st
}

// ============================================================================
//                              写
// ============================================================================

// applyResult 一次写入的结果
type applyResult struct {
	record  types.SessionRecord
	prev    *types.SessionRecord
	changed bool
}

// apply 在分片临界区内写入记录
//
// local 为 true 时记录一定写入：若不能按最后写入者规则覆盖当前值，
// 时间戳被推进到当前值之后。否则按规则决定写入或忽略。
func (s *Store) apply(rec types.SessionRecord, local bool) (applyResult, error) {
	loc := locate(rec.ID, len(s.shards), s.cfg.SlotsPerShard)
	sh := s.shards[loc.shard]

	sh.mu.Lock()
	defer sh.mu.Unlock()

	idx, found, ok := sh.probe(rec.ID, loc.home)
	if !ok {
		return applyResult{}, &types.ShardFullError{Shard: sh.index, ID: rec.ID}
	}

	var prev *types.SessionRecord
	if found {
		cur, err := s.decodeSlot(sh, idx)
		if err != nil {
			// 损坏的槽位被新值覆盖
			log.Warn("覆盖损坏的槽位", "shard", sh.index, "slot", idx, "id", rec.ID, "error", err)
		} else {
			prev = &cur
			if !rec.Supersedes(cur) {
				if !local {
					return applyResult{record: cur, prev: prev}, nil
				}
				rec.Timestamp = cur.Timestamp + 1
				if rec.Deleted {
					rec.DeletedAt = rec.Timestamp
				}
			}
		}
	}

	enc, err := s.codec.encode(rec)
	if err != nil {
		return applyResult{}, err
	}
	if len(enc.body) > sh.capacity() {
		return applyResult{}, fmt.Errorf("%w: %q needs %d bytes, slot holds %d",
			ErrRecordTooLarge, rec.ID, len(enc.body), sh.capacity())
	}

	var deletedAt int64
	if rec.Deleted {
		deletedAt = rec.DeletedAt
		if deletedAt == 0 {
			deletedAt = max(rec.Timestamp, 1)
		}
	}
	sh.write(idx, rec.ID, loc.home, deletedAt, enc.flags, enc.algo, enc.body)
	return applyResult{record: rec, prev: prev, changed: true}, nil
}

// Upsert 本地写入会话
//
// 记录总是被写入；WriterID 为空时使用本副本的写入方 ID，
// Timestamp 为 0 时使用当前时间，版本号由本地计数器分配。
func (s *Store) Upsert(ctx context.Context, record types.SessionRecord) error {
	_, err := s.upsert(ctx, record)
	return err
}

func (s *Store) upsert(ctx context.Context, record types.SessionRecord) (types.SessionRecord, error) {
	if err := s.checkWrite(ctx); err != nil {
		return types.SessionRecord{}, err
	}

	rec := record.Clone()
	if rec.WriterID == "" {
		rec.WriterID = s.cfg.WriterID
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = s.clock.Now().UnixMilli()
	}
	if rec.State == "" {
		rec.State = types.StateDraft
	}
	rec.Deleted = false
	rec.DeletedAt = 0
	if err := rec.Validate(); err != nil {
		return types.SessionRecord{}, err
	}
	rec.Version = s.nextVersion(rec.WriterID)

	res, err := s.apply(rec, true)
	if err != nil {
		return types.SessionRecord{}, err
	}
	s.stats.applied.Add(1)
	s.notify(res, false)
	s.persist(types.UpsertEntry(res.record))
	return res.record, nil
}

// Delete 写入墓碑
func (s *Store) Delete(ctx context.Context, id, writer string) error {
	if err := s.checkWrite(ctx); err != nil {
		return err
	}
	cur, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if writer == "" {
		writer = s.cfg.WriterID
	}

	now := s.clock.Now().UnixMilli()
	tomb := types.Tombstone{
		ID:        id,
		WriterID:  writer,
		Version:   s.nextVersion(writer),
		Timestamp: max(now, cur.Timestamp+1),
	}
	res, err := s.apply(tomb.Record(), true)
	if err != nil {
		return err
	}
	if s.assigner != nil {
		s.assigner.Release(cur.ProxyIDs)
	}
	s.stats.applied.Add(1)
	s.notify(res, false)
	s.persist(types.TombstoneEntry(types.Tombstone{
		ID:        id,
		WriterID:  writer,
		Version:   tomb.Version,
		Timestamp: res.record.Timestamp,
	}))
	return nil
}

// Merge 合并远端条目
//
// 无效条目计数后跳过；指标样本转发给遥测；分片已满等结构性错误
// 汇总后返回，其余条目照常合并。
func (s *Store) Merge(ctx context.Context, entries []types.MergeEntry) (types.MergeReport, error) {
	if err := s.checkWrite(ctx); err != nil {
		return types.MergeReport{}, err
	}
	return s.merge(ctx, entries, true)
}

func (s *Store) merge(ctx context.Context, entries []types.MergeEntry, persist bool) (types.MergeReport, error) {
	var (
		report types.MergeReport
		errs   error
	)
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return report, multierr.Append(errs, err)
		}
		if err := e.Validate(); err != nil {
			report.Invalid++
			s.stats.invalid.Add(1)
			log.Debug("丢弃无效合并条目", "index", i, "error", err)
			continue
		}
		if e.Kind == types.EntryMetricsSample {
			report.Samples++
			if box := s.sink.Load(); box != nil {
				box.Ingest(*e.Sample)
			}
			continue
		}

		rec, _ := e.StoredRecord()
		if s.observeVersion(rec.WriterID, rec.Version) {
			report.Gaps++
		}
		res, err := s.apply(rec, false)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !res.changed {
			report.Ignored++
			s.stats.ignored.Add(1)
			continue
		}
		report.Applied++
		s.stats.applied.Add(1)
		s.notify(res, true)
		if persist {
			s.persist(e)
		}
	}
	return report, errs
}

// Transition 修改会话生命周期状态
func (s *Store) Transition(ctx context.Context, id string, state types.LifecycleState, writer string) (types.SessionRecord, error) {
	if !state.Valid() {
		return types.SessionRecord{}, types.NewValidationError("state", "unknown lifecycle state %q", state)
	}
	cur, ok := s.Get(id)
	if !ok {
		return types.SessionRecord{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if cur.State == state {
		return cur, nil
	}
	cur.State = state
	cur.WriterID = writer
	cur.Timestamp = 0
	return s.upsert(ctx, cur)
}

// MarkDegraded 把会话标记为 degraded，供遥测回调使用
func (s *Store) MarkDegraded(id string) {
	ctx, cancel := context.WithTimeout(s.ctx, appendTimeout)
	defer cancel()
	if _, err := s.Transition(ctx, id, types.StateDegraded, s.cfg.WriterID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		log.Warn("标记会话退化失败", "id", id, "error", err)
	}
}

func (s *Store) checkWrite(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return ctx.Err()
}

// nextVersion 分配本地写入版本
func (s *Store) nextVersion(writer string) uint64 {
	s.versionMu.Lock()
	defer s.versionMu.Unlock()
	v := max(s.local[writer], s.seen[writer]) + 1
	s.local[writer] = v
	s.seen[writer] = v
	return v
}

// observeVersion 记录远端版本，返回是否出现因果缺口
//
// 版本只用于诊断，不影响合并结果。
func (s *Store) observeVersion(writer string, version uint64) bool {
	if version == 0 {
		return false
	}
	s.versionMu.Lock()
	defer s.versionMu.Unlock()

	last := s.seen[writer]
	if version <= last {
		return false
	}
	s.seen[writer] = version
	if last != 0 && version > last+1 {
		s.stats.gaps.Add(1)
		log.Debug("检测到因果缺口", "writer", writer, "last", last, "got", version)
		return true
	}
	return false
}

// notify 发布可见状态变更
func (s *Store) notify(res applyResult, remote bool) {
	if s.emitter == nil || !res.changed {
		return
	}
	var kind types.ChangeKind
	switch {
	case res.record.Deleted:
		if res.prev == nil || res.prev.Deleted {
			return
		}
		kind = types.ChangeDeleted
	case res.prev == nil || res.prev.Deleted:
		kind = types.ChangeCreated
	default:
		kind = types.ChangeUpdated
	}
	if err := s.emitter.Emit(types.SessionChanged{Kind: kind, Record: res.record.Clone(), Remote: remote}); err != nil {
		log.Debug("发布会话事件失败", "id", res.record.ID, "error", err)
	}
}

// ============================================================================
//                              墓碑清理
// ============================================================================

// PurgeTombstones 释放早于收敛窗口的墓碑，返回释放数量
func (s *Store) PurgeTombstones(now time.Time) int {
	cutoff := now.Add(-s.cfg.ConvergenceWindow.Duration()).UnixMilli()
	purged := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for idx := 0; idx < len(sh.ids); {
			if sh.ids[idx] != "" && sh.deletedAt[idx] != 0 && sh.deletedAt[idx] <= cutoff {
				sh.remove(idx)
				purged++
				// 前移的记录可能落到 idx，重新检查当前位置
				continue
			}
			idx++
		}
		sh.mu.Unlock()
	}
	if purged > 0 {
		s.stats.purged.Add(uint64(purged))
		log.Debug("墓碑已清理", "count", purged)
	}
	return purged
}

// ============================================================================
//                              持久化
// ============================================================================

// logTimestamp 分配单调递增的日志时间戳
func (s *Store) logTimestamp() int64 {
	now := s.clock.Now().UnixMilli()
	s.logMu.Lock()
	defer s.logMu.Unlock()
	if now <= s.lastLogTS {
		now = s.lastLogTS + 1
	}
	s.lastLogTS = now
	return now
}

// persist 把条目放入追加队列，队列满时丢弃并计数
func (s *Store) persist(e types.MergeEntry) {
	if s.dlog == nil {
		return
	}
	data, err := msgpack.Marshal(&e)
	if err != nil {
		log.Warn("编码日志条目失败", "id", e.SessionID(), "error", err)
		return
	}
	item := appendItem{id: e.SessionID(), ts: s.logTimestamp(), data: data}

	s.appendMu.RLock()
	defer s.appendMu.RUnlock()
	if s.appendCh == nil {
		return
	}
	select {
	case s.appendCh <- item:
	default:
		s.stats.appendDropped.Add(1)
		log.Warn("追加队列已满，丢弃日志条目", "id", item.id)
	}
}
