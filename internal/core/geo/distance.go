package geo

import (
	"math"

	"github.com/dep2p/go-hypergrid/pkg/types"
)

const (
	// earthRadiusKm 地球平均半径
	earthRadiusKm = 6371.0

	// fiberKmPerMs 光纤中的传播速度（约 2/3 光速）
	fiberKmPerMs = 200.0

	// routeInflation 实际路由相对大圆距离的膨胀系数
	routeInflation = 1.4
)

// Distance 返回两点间的大圆距离（km）
func Distance(a, b types.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// PropagationMs 返回给定距离的单向传播延迟（ms）
func PropagationMs(km float64) float64 {
	return km * routeInflation / fiberKmPerMs
}

// RTTMs 返回两点间的往返传播延迟（ms）
func RTTMs(a, b types.Coordinates) float64 {
	return 2 * PropagationMs(Distance(a, b))
}
