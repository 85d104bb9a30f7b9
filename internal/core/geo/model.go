package geo

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dep2p/go-hypergrid/pkg/types"
)

// ErrUnknownRegion 未知区域代码
var ErrUnknownRegion = errors.New("geo: unknown region")

// DefaultCacheSize 默认区域索引缓存容量
const DefaultCacheSize = 32

// regionIndex 单个区域的派生索引
type regionIndex struct {
	region    Region
	cities    []City
	cityCum   []float64
	asns      []ASN
	asnCum    []float64
	locations []Location
	locWeight []float64
}

// Model 地理参考模型
//
// 并发安全：数据集只读，LRU 自带锁。
type Model struct {
	cache *lru.Cache[string, *regionIndex]
}

// New 创建参考模型
func New(cacheSize int) *Model {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *regionIndex](cacheSize)
	if err != nil {
		// 仅在容量非正时出错，上面已排除
		panic(err)
	}
	return &Model{cache: cache}
}

// ============================================================================
//                              查询
// ============================================================================

// Regions 返回全部区域（固定顺序）
func (m *Model) Regions() []Region {
	out := make([]Region, len(regions))
	copy(out, regions)
	return out
}

// RegionCodes 返回全部区域代码
func (m *Model) RegionCodes() []string {
	out := make([]string, len(regions))
	for i, r := range regions {
		out[i] = r.Code
	}
	return out
}

// Region 查询区域
func (m *Model) Region(code string) (Region, bool) {
	for _, r := range regions {
		if r.Code == code {
			return r, true
		}
	}
	return Region{}, false
}

// Centroid 返回区域质心
func (m *Model) Centroid(code string) (types.Coordinates, bool) {
	r, ok := m.Region(code)
	return r.Centroid, ok
}

// Cities 返回区域内城市
func (m *Model) Cities(region string) []City {
	idx, err := m.index(region)
	if err != nil {
		return nil
	}
	return append([]City(nil), idx.cities...)
}

// ASNs 返回服务该区域的 ASN
func (m *Model) ASNs(region string) []ASN {
	idx, err := m.index(region)
	if err != nil {
		return nil
	}
	return append([]ASN(nil), idx.asns...)
}

// Inventory 返回区域库存
func (m *Model) Inventory(region string) (Inventory, error) {
	idx, err := m.index(region)
	if err != nil {
		return Inventory{}, err
	}
	return Inventory{
		Cities:    len(idx.cities),
		ASNs:      len(idx.asns),
		Locations: len(idx.locations),
	}, nil
}

// ============================================================================
//                              采样
// ============================================================================

// SampleCity 按人口权重采样城市
func (m *Model) SampleCity(rng *rand.Rand, region string) (City, error) {
	idx, err := m.index(region)
	if err != nil {
		return City{}, err
	}
	return idx.cities[pick(rng, idx.cityCum)], nil
}

// SampleASN 按市场份额采样 ASN
func (m *Model) SampleASN(rng *rand.Rand, region string) (ASN, error) {
	idx, err := m.index(region)
	if err != nil {
		return ASN{}, err
	}
	return idx.asns[pick(rng, idx.asnCum)], nil
}

// SampleDistinctCities 无放回采样 n 个城市
//
// n 超过区域城市数时返回 *types.CapacityError。
func (m *Model) SampleDistinctCities(rng *rand.Rand, region string, n int) ([]City, error) {
	idx, err := m.index(region)
	if err != nil {
		return nil, err
	}
	if n > len(idx.cities) {
		return nil, &types.CapacityError{Region: region, Requested: n, Available: len(idx.cities)}
	}
	weights := make([]float64, len(idx.cities))
	for i, c := range idx.cities {
		weights[i] = c.Weight
	}
	picked := pickDistinct(rng, weights, n)
	out := make([]City, len(picked))
	for i, p := range picked {
		out[i] = idx.cities[p]
	}
	return out, nil
}

// SampleDistinctLocations 无放回采样 n 个 (城市, ASN) 位置
//
// n 超过库存时返回 *types.CapacityError，调用方可改用 SampleLocations 有放回采样。
func (m *Model) SampleDistinctLocations(rng *rand.Rand, region string, n int) ([]Location, error) {
	idx, err := m.index(region)
	if err != nil {
		return nil, err
	}
	if n > len(idx.locations) {
		return nil, &types.CapacityError{Region: region, Requested: n, Available: len(idx.locations)}
	}
	picked := pickDistinct(rng, idx.locWeight, n)
	out := make([]Location, len(picked))
	for i, p := range picked {
		out[i] = idx.locations[p]
	}
	return out, nil
}

// SampleLocations 有放回采样 n 个位置
func (m *Model) SampleLocations(rng *rand.Rand, region string, n int) ([]Location, error) {
	idx, err := m.index(region)
	if err != nil {
		return nil, err
	}
	cum := cumulative(idx.locWeight)
	out := make([]Location, n)
	for i := range out {
		out[i] = idx.locations[pick(rng, cum)]
	}
	return out, nil
}

// ============================================================================
//                              内部方法
// ============================================================================

// index 返回（必要时构建）区域索引
func (m *Model) index(code string) (*regionIndex, error) {
	if idx, ok := m.cache.Get(code); ok {
		return idx, nil
	}
	region, ok := m.Region(code)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRegion, code)
	}

	idx := &regionIndex{region: region}
	for _, c := range cities {
		if c.Region == code {
			idx.cities = append(idx.cities, c)
		}
	}
	for i := range asns {
		if asns[i].Serves(code) {
			idx.asns = append(idx.asns, asns[i])
		}
	}

	cityW := make([]float64, len(idx.cities))
	for i, c := range idx.cities {
		cityW[i] = c.Weight
	}
	asnW := make([]float64, len(idx.asns))
	for i, a := range idx.asns {
		asnW[i] = a.Weight
	}
	idx.cityCum = cumulative(cityW)
	idx.asnCum = cumulative(asnW)

	// 位置权重：城市权重 × ASN 份额；住宅与移动网络偏向大城市，托管偏向枢纽
	for _, c := range idx.cities {
		for _, a := range idx.asns {
			w := c.Weight * a.Weight
			if a.Class == ClassHosting || a.Class == ClassTier1 {
				w *= 4 / float64(c.Tier+1)
			}
			idx.locations = append(idx.locations, Location{City: c, ASN: a})
			idx.locWeight = append(idx.locWeight, w)
		}
	}

	m.cache.Add(code, idx)
	return idx, nil
}

func cumulative(weights []float64) []float64 {
	cum := make([]float64, len(weights))
	total := 0.0
	for i, w := range weights {
		total += w
		cum[i] = total
	}
	return cum
}

// pick 在累积权重上采样一个下标
func pick(rng *rand.Rand, cum []float64) int {
	x := rng.Float64() * cum[len(cum)-1]
	i := sort.Search(len(cum), func(i int) bool { return cum[i] > x })
	if i >= len(cum) {
		i = len(cum) - 1
	}
	return i
}

// pickDistinct 加权无放回采样 n 个下标
func pickDistinct(rng *rand.Rand, weights []float64, n int) []int {
	w := append([]float64(nil), weights...)
	out := make([]int, 0, n)
	for len(out) < n {
		total := 0.0
		for _, v := range w {
			total += v
		}
		x := rng.Float64() * total
		chosen := -1
		for i, v := range w {
			if v <= 0 {
				continue
			}
			chosen = i
			if x < v {
				break
			}
			x -= v
		}
		if chosen < 0 {
			break
		}
		out = append(out, chosen)
		w[chosen] = 0
	}
	return out
}
