package types

import (
	"cmp"
	"slices"
	"strings"
)

// ============================================================================
//                              LifecycleState
// ============================================================================

// LifecycleState 会话生命周期状态
type LifecycleState string

const (
	StateDraft      LifecycleState = "draft"
	StateSteady     LifecycleState = "steady"
	StateScaling    LifecycleState = "scaling"
	StateDegraded   LifecycleState = "degraded"
	StateTerminated LifecycleState = "terminated"
)

// Valid 检查状态是否合法
func (s LifecycleState) Valid() bool {
	switch s {
	case StateDraft, StateSteady, StateScaling, StateDegraded, StateTerminated:
		return true
	}
	return false
}

// ============================================================================
//                              SessionRecord
// ============================================================================

// SessionDefinition 会话定义
type SessionDefinition struct {
	// Target 目标站点标签或 URL
	Target string `json:"target" msgpack:"target"`
	// Replicas 期望副本数
	Replicas int `json:"replicas" msgpack:"replicas"`
	// RegionAffinity 区域亲和（为空表示不限）
	RegionAffinity string `json:"region_affinity,omitempty" msgpack:"region_affinity,omitempty"`
}

// SessionRecord 会话记录
//
// 由 SessionStateStore 独占；只能通过本地写入或 CRDT 合并修改。
// 删除产生墓碑记录（Deleted=true），在收敛窗口后清理。
type SessionRecord struct {
	ID         string            `json:"id" msgpack:"id"`
	Definition SessionDefinition `json:"definition" msgpack:"definition"`
	ProxyIDs   []string          `json:"proxy_ids" msgpack:"proxy_ids"`
	State      LifecycleState    `json:"state" msgpack:"state"`
	WriterID   string            `json:"writer_id" msgpack:"writer_id"`
	// Version 写入方本地单调递增版本，仅用于因果缺口检测
	Version uint64 `json:"version" msgpack:"version"`
	// Timestamp 最后写入时间（Unix 毫秒）
	Timestamp int64 `json:"timestamp" msgpack:"timestamp"`
	Deleted   bool  `json:"deleted,omitempty" msgpack:"deleted,omitempty"`
	// DeletedAt 墓碑创建时间（Unix 毫秒）
	DeletedAt int64 `json:"deleted_at,omitempty" msgpack:"deleted_at,omitempty"`
}

// Clone 深拷贝
func (r SessionRecord) Clone() SessionRecord {
	out := r
	if r.ProxyIDs != nil {
		out.ProxyIDs = append([]string(nil), r.ProxyIDs...)
	}
	return out
}

// Supersedes 判断 r 是否应覆盖 current
//
// 最后写入者胜出：时间戳更大者胜；时间戳相等时写入方 ID 字典序更大者胜；
// 二者都相等时按记录内容的全序比较，内容相同则不覆盖。
// 该规则满足交换律、结合律与幂等性。
func (r SessionRecord) Supersedes(current SessionRecord) bool {
	if r.Timestamp != current.Timestamp {
		return r.Timestamp > current.Timestamp
	}
	if r.WriterID != current.WriterID {
		return r.WriterID > current.WriterID
	}
	return compareContent(r, current) > 0
}

// compareContent 记录内容的确定性全序
func compareContent(a, b SessionRecord) int {
	if a.Deleted != b.Deleted {
		// 墓碑优先
		if a.Deleted {
			return 1
		}
		return -1
	}
	if c := cmp.Compare(a.Version, b.Version); c != 0 {
		return c
	}
	if c := cmp.Compare(a.DeletedAt, b.DeletedAt); c != 0 {
		return c
	}
	if c := strings.Compare(string(a.State), string(b.State)); c != 0 {
		return c
	}
	if c := strings.Compare(a.Definition.Target, b.Definition.Target); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Definition.Replicas, b.Definition.Replicas); c != 0 {
		return c
	}
	if c := strings.Compare(a.Definition.RegionAffinity, b.Definition.RegionAffinity); c != 0 {
		return c
	}
	return slices.Compare(a.ProxyIDs, b.ProxyIDs)
}

// Validate 检查记录是否结构完整
func (r SessionRecord) Validate() error {
	if r.ID == "" {
		return NewValidationError("id", "must not be empty")
	}
	if r.WriterID == "" {
		return NewValidationError("writer_id", "must not be empty")
	}
	if r.Timestamp < 0 {
		return NewValidationError("timestamp", "must not be negative")
	}
	if !r.Deleted && !r.State.Valid() {
		return NewValidationError("state", "unknown lifecycle state %q", r.State)
	}
	if r.Definition.Replicas < 0 {
		return NewValidationError("definition.replicas", "must not be negative")
	}
	return nil
}
