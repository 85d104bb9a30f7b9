package types

// ============================================================================
//                              MergeEntry - 合并条目
// ============================================================================

// EntryKind 合并条目类型
type EntryKind uint8

const (
	// EntrySessionUpsert 会话写入
	EntrySessionUpsert EntryKind = iota + 1
	// EntryTombstone 删除墓碑
	EntryTombstone
	// EntryMetricsSample 指标样本（转发给遥测，不入库）
	EntryMetricsSample
)

// String 返回类型名称
func (k EntryKind) String() string {
	switch k {
	case EntrySessionUpsert:
		return "session-upsert"
	case EntryTombstone:
		return "tombstone"
	case EntryMetricsSample:
		return "metrics-sample"
	default:
		return "unknown"
	}
}

// Tombstone 删除标记
type Tombstone struct {
	ID        string `json:"id" msgpack:"id"`
	WriterID  string `json:"writer_id" msgpack:"writer_id"`
	Version   uint64 `json:"version,omitempty" msgpack:"version,omitempty"`
	Timestamp int64  `json:"timestamp" msgpack:"timestamp"`
}

// Record 转换为墓碑记录
func (t Tombstone) Record() SessionRecord {
	return SessionRecord{
		ID:        t.ID,
		State:     StateTerminated,
		WriterID:  t.WriterID,
		Version:   t.Version,
		Timestamp: t.Timestamp,
		Deleted:   true,
		DeletedAt: t.Timestamp,
	}
}

// MetricSample 渲染工作池上报的单个指标样本
type MetricSample struct {
	SessionID  string  `json:"session_id" msgpack:"session_id"`
	LatencyMs  float32 `json:"latency_ms" msgpack:"latency_ms"`
	Throughput float32 `json:"throughput" msgpack:"throughput"`
	ErrorRate  float32 `json:"error_rate" msgpack:"error_rate"`
	Timestamp  int64   `json:"timestamp" msgpack:"timestamp"`
}

// MergeEntry 合并条目（标签联合）
//
// Kind 决定哪个字段有效，其余字段必须为空。
// 在进入存储前由 Validate 校验。
type MergeEntry struct {
	Kind      EntryKind      `json:"kind" msgpack:"kind"`
	Record    *SessionRecord `json:"record,omitempty" msgpack:"record,omitempty"`
	Tombstone *Tombstone     `json:"tombstone,omitempty" msgpack:"tombstone,omitempty"`
	Sample    *MetricSample  `json:"sample,omitempty" msgpack:"sample,omitempty"`
}

// UpsertEntry 构造会话写入条目
func UpsertEntry(r SessionRecord) MergeEntry {
	return MergeEntry{Kind: EntrySessionUpsert, Record: &r}
}

// TombstoneEntry 构造墓碑条目
func TombstoneEntry(t Tombstone) MergeEntry {
	return MergeEntry{Kind: EntryTombstone, Tombstone: &t}
}

// SampleEntry 构造指标样本条目
func SampleEntry(s MetricSample) MergeEntry {
	return MergeEntry{Kind: EntryMetricsSample, Sample: &s}
}

// SessionID 返回条目关联的会话 ID
func (e MergeEntry) SessionID() string {
	switch e.Kind {
	case EntrySessionUpsert:
		if e.Record != nil {
			return e.Record.ID
		}
	case EntryTombstone:
		if e.Tombstone != nil {
			return e.Tombstone.ID
		}
	case EntryMetricsSample:
		if e.Sample != nil {
			return e.Sample.SessionID
		}
	}
	return ""
}

// Validate 校验条目
func (e MergeEntry) Validate() error {
	switch e.Kind {
	case EntrySessionUpsert:
		if e.Record == nil || e.Tombstone != nil || e.Sample != nil {
			return NewValidationError("entry", "session-upsert must carry only a record")
		}
		return e.Record.Validate()
	case EntryTombstone:
		if e.Tombstone == nil || e.Record != nil || e.Sample != nil {
			return NewValidationError("entry", "tombstone must carry only a tombstone")
		}
		if e.Tombstone.ID == "" {
			return NewValidationError("tombstone.id", "must not be empty")
		}
		if e.Tombstone.WriterID == "" {
			return NewValidationError("tombstone.writer_id", "must not be empty")
		}
		return nil
	case EntryMetricsSample:
		if e.Sample == nil || e.Record != nil || e.Tombstone != nil {
			return NewValidationError("entry", "metrics-sample must carry only a sample")
		}
		if e.Sample.SessionID == "" {
			return NewValidationError("sample.session_id", "must not be empty")
		}
		if e.Sample.ErrorRate < 0 || e.Sample.ErrorRate > 1 {
			return NewValidationError("sample.error_rate", "must be within [0,1]")
		}
		return nil
	default:
		return NewValidationError("kind", "unknown entry kind %d", e.Kind)
	}
}

// StoredRecord 返回条目对应的存储记录（指标样本返回 false）
func (e MergeEntry) StoredRecord() (SessionRecord, bool) {
	switch e.Kind {
	case EntrySessionUpsert:
		return e.Record.Clone(), true
	case EntryTombstone:
		return e.Tombstone.Record(), true
	}
	return SessionRecord{}, false
}

// MergeReport 合并结果统计
type MergeReport struct {
	// Applied 覆盖了本地状态的条目数
	Applied int `json:"applied"`
	// Ignored 被最后写入者规则拒绝的条目数（包括重复条目）
	Ignored int `json:"ignored"`
	// Samples 转发给遥测的指标样本数
	Samples int `json:"samples"`
	// Invalid 校验失败的条目数
	Invalid int `json:"invalid"`
	// Gaps 检测到的因果缺口数
	Gaps int `json:"gaps"`
}
