package types

import "time"

// ============================================================================
//                              事件
// ============================================================================

// ChangeKind 会话变更类型
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// SessionChanged 会话可见状态变更事件
type SessionChanged struct {
	Kind   ChangeKind
	Record SessionRecord
	// Remote 是否由合并引起
	Remote bool
}

// SessionAggregate 单会话指标聚合
type SessionAggregate struct {
	SessionID   string    `json:"session_id" msgpack:"session_id"`
	LatencyMs   float64   `json:"latency_ms" msgpack:"latency_ms"`
	Throughput  float64   `json:"throughput" msgpack:"throughput"`
	ErrorRate   float64   `json:"error_rate" msgpack:"error_rate"`
	Samples     uint64    `json:"samples" msgpack:"samples"`
	LastSeen    time.Time `json:"last_seen" msgpack:"last_seen"`
	Frames      uint64    `json:"frames,omitempty" msgpack:"frames,omitempty"`
	LastFrameAt time.Time `json:"last_frame_at,omitempty" msgpack:"last_frame_at,omitempty"`
}

// GlobalAggregate 全局指标聚合
type GlobalAggregate struct {
	Sessions       int     `json:"sessions" msgpack:"sessions"`
	Samples        uint64  `json:"samples" msgpack:"samples"`
	MeanLatencyMs  float64 `json:"mean_latency_ms" msgpack:"mean_latency_ms"`
	P95LatencyMs   float64 `json:"p95_latency_ms" msgpack:"p95_latency_ms"`
	MeanThroughput float64 `json:"mean_throughput" msgpack:"mean_throughput"`
	MeanErrorRate  float64 `json:"mean_error_rate" msgpack:"mean_error_rate"`
}

// MetricsFolded 遥测折叠完成事件
type MetricsFolded struct {
	Changed []SessionAggregate
	Global  GlobalAggregate
	At      time.Time
}

// MeshPublished 新网格发布事件
type MeshPublished struct {
	Mesh *ProxyMesh
}

// MeshSummary 网格摘要（用于快照）
type MeshSummary struct {
	Key       string         `json:"key" msgpack:"key"`
	Proxies   int            `json:"proxies" msgpack:"proxies"`
	Peerings  int            `json:"peerings" msgpack:"peerings"`
	Regions   map[string]int `json:"regions" msgpack:"regions"`
	Quality   Quality        `json:"quality" msgpack:"quality"`
	Degraded  bool           `json:"degraded" msgpack:"degraded"`
	Diameter  int            `json:"diameter" msgpack:"diameter"`
	CreatedAt int64          `json:"created_at" msgpack:"created_at"`
}

// Summary 生成网格摘要
func (m *ProxyMesh) Summary() MeshSummary {
	s := MeshSummary{
		Key:       m.Key,
		Proxies:   len(m.Proxies),
		Peerings:  len(m.Peerings),
		Regions:   make(map[string]int),
		Degraded:  m.Characteristics.Degraded,
		CreatedAt: m.CreatedAt.UnixMilli(),
	}
	for i := range m.Proxies {
		s.Regions[m.Proxies[i].Region]++
	}
	if m.Topology != nil {
		s.Quality = m.Topology.Quality
		s.Diameter = m.Topology.Metrics.Diameter
	}
	return s
}
