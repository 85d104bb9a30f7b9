package geo

import "github.com/dep2p/go-hypergrid/pkg/types"

// ============================================================================
//                              类型定义
// ============================================================================

// Region 区域
type Region struct {
	// Code 区域代码（如 "NA", "EU", "AS"）
	Code string

	// Name 区域名称
	Name string

	// Centroid 区域质心
	Centroid types.Coordinates

	// NoiseMs 区域网络噪声基线（抖动）
	NoiseMs float64

	// LossRate 区域基础丢包率
	LossRate float64
}

// City 城市
type City struct {
	Name    string
	Country string
	Region  string
	Coord   types.Coordinates
	// Tier 城市等级：1 为核心枢纽，3 为边缘城市
	Tier int
	// Weight 人口权重（百万）
	Weight float64
}

// ASNClass ASN 类型
type ASNClass string

const (
	ClassTier1       ASNClass = "tier1"
	ClassTransit     ASNClass = "transit"
	ClassHosting     ASNClass = "hosting"
	ClassResidential ASNClass = "residential"
	ClassMobile      ASNClass = "mobile"
)

// ASN 自治系统
type ASN struct {
	Number uint32
	ISP    string
	Class  ASNClass
	// Regions 服务的区域
	Regions []string
	// CeilingMbps 单节点带宽上限
	CeilingMbps float64
	// Reliability 基础可靠性
	Reliability float64
	// Weight 市场份额权重
	Weight float64
}

// Serves 是否服务指定区域
func (a *ASN) Serves(region string) bool {
	for _, r := range a.Regions {
		if r == region {
			return true
		}
	}
	return false
}

// Location 可部署代理的位置：城市与 ASN 的组合
type Location struct {
	City City
	ASN  ASN
}

// Key 位置唯一标识
func (l Location) Key() string {
	return l.City.Country + "/" + l.City.Name + "/" + l.ASN.ISP
}

// Inventory 区域库存
type Inventory struct {
	Cities    int
	ASNs      int
	Locations int
}
