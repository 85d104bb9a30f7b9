package types

import "time"

// ============================================================================
//                              Peering
// ============================================================================

// PeeringType 对等关系类型
type PeeringType string

const (
	PeeringTransit  PeeringType = "transit"
	PeeringPeer     PeeringType = "peer"
	PeeringBackbone PeeringType = "backbone"
)

// PeeringRelationship 代理之间的无向对等关系，Source < Target
type PeeringRelationship struct {
	Source        string      `json:"source"`
	Target        string      `json:"target"`
	Type          PeeringType `json:"type"`
	BandwidthMbps float64     `json:"bandwidth_mbps"`
	LatencyMs     float64     `json:"latency_ms"`
	Cost          float64     `json:"cost"`
}

// ============================================================================
//                              Routing
// ============================================================================

// Route 一条路由路径
type Route struct {
	Hops []string `json:"hops"`
	Cost float64  `json:"cost"`
}

// FirstHop 返回路径的第一跳（不含源节点）
func (r Route) FirstHop() string {
	if len(r.Hops) < 2 {
		return ""
	}
	return r.Hops[1]
}

// RouteSet 到某个目的地的主路由集合与备用路径
type RouteSet struct {
	Primary  []Route `json:"primary"`
	Fallback *Route  `json:"fallback,omitempty"`
}

// RoutingTable 单个代理的路由表
type RoutingTable struct {
	ProxyID      string              `json:"proxy_id"`
	Destinations map[string]RouteSet `json:"destinations"`
}

// RoutingWeights 多指标最短路径的权重
type RoutingWeights struct {
	Latency     float64 `json:"latency" yaml:"latency"`
	Bandwidth   float64 `json:"bandwidth" yaml:"bandwidth"`
	Cost        float64 `json:"cost" yaml:"cost"`
	Reliability float64 `json:"reliability" yaml:"reliability"`
}

// DefaultRoutingWeights 默认权重
func DefaultRoutingWeights() RoutingWeights {
	return RoutingWeights{Latency: 0.4, Bandwidth: 0.2, Cost: 0.2, Reliability: 0.2}
}

// ============================================================================
//                              Requirements
// ============================================================================

// ReliabilityModel 故障注入模型
type ReliabilityModel string

const (
	ReliabilityNone       ReliabilityModel = "none"
	ReliabilityCorrelated ReliabilityModel = "correlated"
	ReliabilityCascading  ReliabilityModel = "cascading"
)

// MeshRequirements 网格合成需求
type MeshRequirements struct {
	Seed             int64              `json:"seed"`
	ProxyCount       int                `json:"proxy_count"`
	Regions          map[string]float64 `json:"regions"`
	ReliabilityModel ReliabilityModel   `json:"reliability_model"`
	Protocols        []string           `json:"protocols"`
	Weights          RoutingWeights     `json:"weights"`
	MaxPeers         int                `json:"max_peers"`
	ECMPTolerance    float64            `json:"ecmp_tolerance"`
}

// ============================================================================
//                              Characteristics
// ============================================================================

// RegionAllocation 单个区域的分配情况
type RegionAllocation struct {
	Requested      int `json:"requested"`
	Allocated      int `json:"allocated"`
	DistinctCities int `json:"distinct_cities"`
	DistinctASNs   int `json:"distinct_asns"`
}

// MeshCharacteristics 网格整体特征与退化记录
type MeshCharacteristics struct {
	Regions          map[string]RegionAllocation `json:"regions"`
	Degraded         bool                        `json:"degraded"`
	Degradations     []string                    `json:"degradations,omitempty"`
	TopologyQuality  Quality                     `json:"topology_quality"`
	FailureScenarios []string                    `json:"failure_scenarios,omitempty"`
	FailedProxies    int                         `json:"failed_proxies"`
	MeanLatencyMs    float64                     `json:"mean_latency_ms"`
	MeanDownlinkMbps float64                     `json:"mean_downlink_mbps"`
	MeanReliability  float64                     `json:"mean_reliability"`
}

// ============================================================================
//                              ProxyMesh
// ============================================================================

// ProxyMesh 合成结果
//
// Topology、代理、对等关系与路由表作为一个原子单元发布，不会部分更新。
type ProxyMesh struct {
	Key             string                   `json:"key"`
	Requirements    MeshRequirements         `json:"requirements"`
	Proxies         []ProxyNode              `json:"proxies"`
	Topology        *Topology                `json:"topology"`
	Peerings        []PeeringRelationship    `json:"peerings"`
	RoutingTables   map[string]*RoutingTable `json:"routing_tables"`
	Characteristics MeshCharacteristics      `json:"characteristics"`
	CreatedAt       time.Time                `json:"created_at"`
}

// Proxy 按 ID 查找代理
func (m *ProxyMesh) Proxy(id string) (*ProxyNode, bool) {
	for i := range m.Proxies {
		if m.Proxies[i].ID == id {
			return &m.Proxies[i], true
		}
	}
	return nil, false
}

// ProxyIDs 返回所有代理 ID（合成顺序）
func (m *ProxyMesh) ProxyIDs() []string {
	ids := make([]string, len(m.Proxies))
	for i := range m.Proxies {
		ids[i] = m.Proxies[i].ID
	}
	return ids
}

// ProxiesInRegion 返回指定区域的代理
func (m *ProxyMesh) ProxiesInRegion(region string) []*ProxyNode {
	var out []*ProxyNode
	for i := range m.Proxies {
		if m.Proxies[i].Region == region {
			out = append(out, &m.Proxies[i])
		}
	}
	return out
}
