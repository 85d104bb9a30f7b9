package types

// ============================================================================
//                              画像
// ============================================================================

// Coordinates 经纬度
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// CongestionModel 拥塞模型
type CongestionModel struct {
	// Load 链路负载 [0,1]
	Load float64 `json:"load"`
	// QueueDelayMs 排队延迟
	QueueDelayMs float64 `json:"queue_delay_ms"`
	// Propagated 是否由相邻骨干链路传播而来
	Propagated bool `json:"propagated"`
}

// LatencyProfile 延迟画像
type LatencyProfile struct {
	BaselineMs float64            `json:"baseline_ms"`
	JitterMs   float64            `json:"jitter_ms"`
	PacketLoss float64            `json:"packet_loss"`
	RegionRTT  map[string]float64 `json:"region_rtt"`
	Congestion CongestionModel    `json:"congestion"`
}

// ShapingPolicy 流量整形策略
type ShapingPolicy string

const (
	ShapingNone        ShapingPolicy = "none"
	ShapingTokenBucket ShapingPolicy = "token-bucket"
	ShapingPolicer     ShapingPolicy = "policer"
)

// QoSClass 服务质量等级
type QoSClass string

const (
	QoSPremium    QoSClass = "premium"
	QoSStandard   QoSClass = "standard"
	QoSBestEffort QoSClass = "best-effort"
)

// BandwidthProfile 带宽画像
type BandwidthProfile struct {
	UplinkMbps   float64       `json:"uplink_mbps"`
	DownlinkMbps float64       `json:"downlink_mbps"`
	BurstMbps    float64       `json:"burst_mbps"`
	Shaping      ShapingPolicy `json:"shaping"`
	QoS          QoSClass      `json:"qos"`
}

// LocalNetwork 代理所在的本地网络拓扑
type LocalNetwork struct {
	Hops           int      `json:"hops"`
	PeeringPoints  []string `json:"peering_points"`
	BackbonePath   []string `json:"backbone_path"`
	RedundantPaths int      `json:"redundant_paths"`
}

// ============================================================================
//                              ProxyNode
// ============================================================================

// ProxyNode 合成出的代理节点
//
// 只在网格合成阶段产生；在同一 Topology 版本内不可变。
type ProxyNode struct {
	ID           string           `json:"id"`
	Region       string           `json:"region"`
	Country      string           `json:"country"`
	City         string           `json:"city"`
	ASN          uint32           `json:"asn"`
	ISP          string           `json:"isp"`
	Latency      LatencyProfile   `json:"latency"`
	Bandwidth    BandwidthProfile `json:"bandwidth"`
	Reliability  float64          `json:"reliability"`
	Protocols    []string         `json:"protocols"`
	Tier         int              `json:"tier"`
	Coordinates  Coordinates      `json:"coordinates"`
	LocalNetwork LocalNetwork     `json:"local_network"`
	// TopologyIndex 对应 Topology.Nodes 中的节点
	TopologyIndex int `json:"topology_index"`
	// Failed 是否处于注入的级联故障中
	Failed bool `json:"failed,omitempty"`
}
