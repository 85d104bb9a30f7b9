package store

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/multierr"

	"github.com/dep2p/go-hypergrid/pkg/types"
)

// appendTimeout 单条日志追加超时
const appendTimeout = 5 * time.Second

// snapshotState 快照内容
type snapshotState struct {
	Records  []types.SessionRecord `msgpack:"records"`
	Versions map[string]uint64     `msgpack:"versions"`
}

// Start 启动墓碑清理与周期快照
func (s *Store) Start() error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.purgeLoop(s.clock.Ticker(s.cfg.PurgeInterval.Duration()))

		if s.dlog != nil && s.cfg.SnapshotInterval > 0 {
			s.wg.Add(1)
			go s.snapshotLoop(s.clock.Ticker(s.cfg.SnapshotInterval.Duration()))
		}
	})
	return nil
}

func (s *Store) purgeLoop(ticker *clock.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.PurgeTombstones(s.clock.Now())
		}
	}
}

func (s *Store) snapshotLoop(ticker *clock.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.Snapshot(s.ctx); err != nil && s.ctx.Err() == nil {
				log.Warn("周期快照失败", "error", err)
			}
		}
	}
}

// appendLoop 串行追加日志，保持同一写入方的追加顺序
func (s *Store) appendLoop() {
	defer s.wg.Done()

	for item := range s.appendCh {
		ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
		err := s.dlog.Append(ctx, item.id, item.ts, item.data)
		cancel()
		if err != nil {
			s.stats.appendFailed.Add(1)
			log.Warn("追加日志失败", "id", item.id, "ts", item.ts, "error", err)
		}
	}
}

// Close 停止后台任务，排空追加队列并写入最终快照
//
// 不关闭持久化日志，日志由其提供方关闭。
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cancel()

	s.appendMu.Lock()
	if s.appendCh != nil {
		close(s.appendCh)
		s.appendCh = nil
	}
	s.appendMu.Unlock()
	s.wg.Wait()

	var err error
	if s.dlog != nil {
		ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
		err = s.snapshot(ctx)
		cancel()
	}
	if s.emitter != nil {
		err = multierr.Append(err, s.emitter.Close())
	}
	return err
}

// ============================================================================
//                              快照与恢复
// ============================================================================

// Snapshot 把当前全部记录（含墓碑）写入持久化日志快照
func (s *Store) Snapshot(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return s.snapshot(ctx)
}

func (s *Store) snapshot(ctx context.Context) error {
	if s.dlog == nil {
		return nil
	}

	// 先分配时间戳再读取状态：之后追加的条目时间戳更大，恢复时会被回放
	ts := s.logTimestamp()
	state := snapshotState{Records: s.scan(true), Versions: make(map[string]uint64)}
	s.versionMu.Lock()
	for w, v := range s.seen {
		state.Versions[w] = v
	}
	s.versionMu.Unlock()

	data, err := msgpack.Marshal(&state)
	if err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}
	if err := s.dlog.SaveSnapshot(ctx, ts, data); err != nil {
		return fmt.Errorf("store: save snapshot: %w", err)
	}
	log.Info("快照已保存", "ts", ts, "records", len(state.Records), "bytes", len(data))
	return nil
}

// Recover 从持久化日志恢复
//
// 先加载最新快照，再按时间戳顺序回放快照之后的条目。
// 回放走合并路径，因此恢复结果同样遵守最后写入者规则。
func (s *Store) Recover(ctx context.Context) (types.MergeReport, error) {
	if err := s.checkWrite(ctx); err != nil {
		return types.MergeReport{}, err
	}
	if s.dlog == nil {
		return types.MergeReport{}, nil
	}

	var report types.MergeReport
	ts, data, ok, err := s.dlog.LoadLatestSnapshot(ctx)
	if err != nil {
		return report, fmt.Errorf("store: load snapshot: %w", err)
	}
	if ok {
		var state snapshotState
		if err := msgpack.Unmarshal(data, &state); err != nil {
			return report, fmt.Errorf("store: decode snapshot: %w", err)
		}
		entries := make([]types.MergeEntry, 0, len(state.Records))
		for _, rec := range state.Records {
			if rec.Deleted {
				entries = append(entries, types.TombstoneEntry(types.Tombstone{
					ID:        rec.ID,
					WriterID:  rec.WriterID,
					Version:   rec.Version,
					Timestamp: rec.Timestamp,
				}))
				continue
			}
			entries = append(entries, types.UpsertEntry(rec))
		}
		snap, err := s.merge(ctx, entries, false)
		report = addReports(report, snap)
		if err != nil {
			return report, err
		}

		s.versionMu.Lock()
		for w, v := range state.Versions {
			s.seen[w] = max(s.seen[w], v)
		}
		s.versionMu.Unlock()
	}

	logged, err := s.dlog.ReplaySince(ctx, ts)
	if err != nil {
		return report, fmt.Errorf("store: replay: %w", err)
	}
	entries := make([]types.MergeEntry, 0, len(logged))
	maxTS := ts
	for _, le := range logged {
		maxTS = max(maxTS, le.Timestamp)
		var e types.MergeEntry
		if err := msgpack.Unmarshal(le.Data, &e); err != nil {
			report.Invalid++
			log.Warn("跳过无法解码的日志条目", "id", le.ID, "ts", le.Timestamp, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	replayed, err := s.merge(ctx, entries, false)
	report = addReports(report, replayed)

	s.logMu.Lock()
	s.lastLogTS = max(s.lastLogTS, maxTS)
	s.logMu.Unlock()

	log.Info("存储已恢复", "snapshot", ok, "snapshotTS", ts, "replayed", len(entries),
		"applied", report.Applied, "ignored", report.Ignored)
	return report, err
}

func addReports(a, b types.MergeReport) types.MergeReport {
	return types.MergeReport{
		Applied: a.Applied + b.Applied,
		Ignored: a.Ignored + b.Ignored,
		Samples: a.Samples + b.Samples,
		Invalid: a.Invalid + b.Invalid,
		Gaps:    a.Gaps + b.Gaps,
	}
}
