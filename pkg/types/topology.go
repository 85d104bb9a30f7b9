package types

import (
	"sort"
	"time"
)

// ============================================================================
//                              Quality - 结果质量
// ============================================================================

// Quality 规划 / 合成结果的质量标记
type Quality string

const (
	// QualityOK 所有阶段正常完成
	QualityOK Quality = "ok"
	// QualityDegraded 某些阶段退化（例如特征值求解未收敛）
	QualityDegraded Quality = "degraded"
)

// ============================================================================
//                              Edge - 图的边
// ============================================================================

// EdgeKind 边的来源
type EdgeKind uint8

const (
	// EdgeAttachment 优先连接过程产生的边
	EdgeAttachment EdgeKind = iota
	// EdgeLongRange 小世界长程边
	EdgeLongRange
	// EdgeInterPartition 代数连通度优化添加的分区间边
	EdgeInterPartition
	// EdgeRedundancy 提升点连通度的冗余边
	EdgeRedundancy
	// EdgeBypass 桥 / 割点旁路边
	EdgeBypass
)

// String 返回边类型名称
func (k EdgeKind) String() string {
	switch k {
	case EdgeAttachment:
		return "attachment"
	case EdgeLongRange:
		return "long-range"
	case EdgeInterPartition:
		return "inter-partition"
	case EdgeRedundancy:
		return "redundancy"
	case EdgeBypass:
		return "bypass"
	default:
		return "unknown"
	}
}

// Edge 带权无向边，From < To
type Edge struct {
	From          int      `json:"from"`
	To            int      `json:"to"`
	LatencyMs     float64  `json:"latency_ms"`
	BandwidthMbps float64  `json:"bandwidth_mbps"`
	Cost          float64  `json:"cost"`
	Reliability   float64  `json:"reliability"`
	Kind          EdgeKind `json:"kind"`
}

// ============================================================================
//                              Topology
// ============================================================================

// PlannedNode 规划图中的节点
type PlannedNode struct {
	Index     int    `json:"index"`
	Region    string `json:"region"`
	Degree    int    `json:"degree"`
	Cluster   int    `json:"cluster"`
	Partition int    `json:"partition"`
}

// Cluster 层次聚类结果
type Cluster struct {
	ID      int   `json:"id"`
	Members []int `json:"members"`
}

// Partition 谱分区结果
type Partition struct {
	ID       int   `json:"id"`
	Members  []int `json:"members"`
	CutEdges int   `json:"cut_edges"`
}

// TopologyMetrics 拓扑派生指标
type TopologyMetrics struct {
	NodeCount             int         `json:"node_count"`
	EdgeCount             int         `json:"edge_count"`
	Diameter              int         `json:"diameter"`
	AveragePathLength     float64     `json:"average_path_length"`
	ClusteringCoefficient float64     `json:"clustering_coefficient"`
	AlgebraicConnectivity float64     `json:"algebraic_connectivity"`
	DegreeDistribution    map[int]int `json:"degree_distribution"`
	VertexConnectivity    int         `json:"vertex_connectivity"`
	ResilienceScore       float64     `json:"resilience_score"`
}

// Topology 规划完成的候选代理图
//
// 由 (scale, region distribution) 的确定性哈希作为 Key 缓存。
// 发布后不可变。
type Topology struct {
	Key          string             `json:"key"`
	Scale        int                `json:"scale"`
	Distribution map[string]float64 `json:"distribution"`
	Nodes        []PlannedNode      `json:"nodes"`
	Edges        []Edge             `json:"edges"`
	Clusters     []Cluster          `json:"clusters"`
	Partitions   []Partition        `json:"partitions"`
	Metrics      TopologyMetrics    `json:"metrics"`
	Quality      Quality            `json:"quality"`
	Warnings     []string           `json:"warnings,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// RegionCounts 返回每个区域的节点数
func (t *Topology) RegionCounts() map[string]int {
	counts := make(map[string]int, len(t.Distribution))
	for _, n := range t.Nodes {
		counts[n.Region]++
	}
	return counts
}

// NodesInRegion 返回指定区域的节点索引（升序）
func (t *Topology) NodesInRegion(region string) []int {
	var out []int
	for _, n := range t.Nodes {
		if n.Region == region {
			out = append(out, n.Index)
		}
	}
	sort.Ints(out)
	return out
}

// Adjacency 构建邻接表
func (t *Topology) Adjacency() [][]int {
	adj := make([][]int, len(t.Nodes))
	for _, e := range t.Edges {
		adj[e.From] = append(adj[e.From], e.To)
		adj[e.To] = append(adj[e.To], e.From)
	}
	return adj
}

// Degraded 是否为退化结果
func (t *Topology) Degraded() bool {
	return t.Quality == QualityDegraded
}
