package synthesis

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/dep2p/go-hypergrid/internal/core/geo"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

// ============================================================================
//                              代理 ID
// ============================================================================

// proxyID 由网格键与拓扑下标派生稳定的代理 ID
func proxyID(meshKey, region string, index int, salt uint32) string {
	buf := make([]byte, 0, len(meshKey)+8)
	buf = append(buf, meshKey...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(index))
	buf = binary.LittleEndian.AppendUint32(buf, salt)
	return fmt.Sprintf("px-%s-%012x", strings.ToLower(region), murmur3.Sum64(buf)>>16)
}

// ============================================================================
//                              画像参数
// ============================================================================

// tierBandwidth 城市等级对带宽上限的折扣
var tierBandwidth = map[int]float64{1: 1.0, 2: 0.7, 3: 0.45}

// tierReliability 城市等级对可靠性的折扣
var tierReliability = map[int]float64{1: 1.0, 2: 0.99, 3: 0.97}

func uplinkRatio(class geo.ASNClass) float64 {
	switch class {
	case geo.ClassTier1, geo.ClassHosting:
		return 1.0
	case geo.ClassTransit:
		return 0.8
	case geo.ClassMobile:
		return 0.15
	default:
		return 0.2
	}
}

func shapingFor(class geo.ASNClass) types.ShapingPolicy {
	switch class {
	case geo.ClassTier1, geo.ClassHosting:
		return types.ShapingNone
	case geo.ClassTransit:
		return types.ShapingTokenBucket
	default:
		return types.ShapingPolicer
	}
}

func qosFor(class geo.ASNClass) types.QoSClass {
	switch class {
	case geo.ClassTier1, geo.ClassHosting:
		return types.QoSPremium
	case geo.ClassTransit:
		return types.QoSStandard
	default:
		return types.QoSBestEffort
	}
}

// ============================================================================
//                              节点合成
// ============================================================================

// placement 单个区域的位置采样结果
type placement struct {
	locations   []geo.Location
	degradation string
}

// place 为区域采样 n 个位置
//
// 库存足够时无放回采样；否则吸收 CapacityError，改为有放回采样并记录退化。
func place(rng *rand.Rand, model *geo.Model, region string, n int) (placement, error) {
	locs, err := model.SampleDistinctLocations(rng, region, n)
	if err == nil {
		return placement{locations: locs}, nil
	}
	var capErr *types.CapacityError
	if !errors.As(err, &capErr) {
		return placement{}, err
	}
	locs, err = model.SampleLocations(rng, region, n)
	if err != nil {
		return placement{}, err
	}
	return placement{locations: locs, degradation: capErr.Error()}, nil
}

// buildProxies 为拓扑中的每个节点生成代理
func buildProxies(rng *rand.Rand, model *geo.Model, topo *types.Topology, req types.MeshRequirements, key string) ([]types.ProxyNode, types.MeshCharacteristics, error) {
	chars := types.MeshCharacteristics{
		Regions:         make(map[string]types.RegionAllocation),
		TopologyQuality: topo.Quality,
	}
	if topo.Degraded() {
		chars.Degraded = true
		chars.Degradations = append(chars.Degradations, topo.Warnings...)
	}

	codes := make([]string, 0, len(req.Regions))
	for code := range req.Regions {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	adj := topo.Adjacency()
	edgeLatency := make(map[[2]int]float64, len(topo.Edges))
	for _, e := range topo.Edges {
		edgeLatency[[2]int{e.From, e.To}] = e.LatencyMs
		edgeLatency[[2]int{e.To, e.From}] = e.LatencyMs
	}

	proxies := make([]types.ProxyNode, len(topo.Nodes))
	used := make(map[string]bool, len(topo.Nodes))
	for _, code := range codes {
		nodes := topo.NodesInRegion(code)
		alloc := types.RegionAllocation{
			Requested: int(math.Round(req.Regions[code] * float64(req.ProxyCount))),
			Allocated: len(nodes),
		}
		if len(nodes) == 0 {
			chars.Regions[code] = alloc
			continue
		}

		pl, err := place(rng, model, code, len(nodes))
		if err != nil {
			return nil, chars, err
		}
		if pl.degradation != "" {
			chars.Degraded = true
			chars.Degradations = append(chars.Degradations, pl.degradation)
			log.Info("区域库存不足，改为有放回采样", "region", code, "proxies", len(nodes))
		}

		region, _ := model.Region(code)
		cities := make(map[string]bool)
		asns := make(map[uint32]bool)
		for i, idx := range nodes {
			loc := pl.locations[i]
			cities[loc.City.Country+"/"+loc.City.Name] = true
			asns[loc.ASN.Number] = true

			id := proxyID(key, code, idx, 0)
			for salt := uint32(1); used[id]; salt++ {
				id = proxyID(key, code, idx, salt)
			}
			used[id] = true

			proxies[idx] = newProxy(rng, model, region, loc, id, idx, adj[idx], edgeLatency, req.Protocols)
		}
		alloc.DistinctCities = len(cities)
		alloc.DistinctASNs = len(asns)
		chars.Regions[code] = alloc
	}
	return proxies, chars, nil
}

// newProxy 生成单个代理的画像
//
// 基线延迟 = 到区域质心的往返传播 + 拓扑开销（相邻边平均延迟的四分之一）+ 区域噪声。
func newProxy(rng *rand.Rand, model *geo.Model, region geo.Region, loc geo.Location, id string, idx int,
	neighbors []int, edgeLatency map[[2]int]float64, protocols []string) types.ProxyNode {

	coord := types.Coordinates{
		Lat: round4(loc.City.Coord.Lat + (rng.Float64()-0.5)*0.1),
		Lon: round4(loc.City.Coord.Lon + (rng.Float64()-0.5)*0.1),
	}

	overhead := 0.0
	for _, v := range neighbors {
		overhead += edgeLatency[[2]int{idx, v}]
	}
	if len(neighbors) > 0 {
		overhead = overhead / float64(len(neighbors)) / 4
	}
	noise := region.NoiseMs * rng.Float64()
	baseline := geo.RTTMs(coord, region.Centroid) + overhead + noise + float64(loc.City.Tier)

	regionRTT := make(map[string]float64)
	for _, r := range model.Regions() {
		regionRTT[r.Code] = round3(geo.RTTMs(coord, r.Centroid) + baseline)
	}

	ceiling := loc.ASN.CeilingMbps * tierBandwidth[loc.City.Tier]
	downlink := ceiling * (0.4 + 0.6*rng.Float64())
	uplink := downlink * uplinkRatio(loc.ASN.Class)
	shaping := shapingFor(loc.ASN.Class)
	burst := downlink
	if shaping == types.ShapingTokenBucket {
		burst = downlink * 1.5
	}

	reliability := loc.ASN.Reliability * tierReliability[loc.City.Tier] * (0.995 + 0.005*rng.Float64())

	hops := 2 + loc.City.Tier
	if loc.ASN.Class == geo.ClassResidential || loc.ASN.Class == geo.ClassMobile {
		hops += 2
	}
	redundant := len(neighbors) - 1
	if redundant < 0 {
		redundant = 0
	}

	return types.ProxyNode{
		ID:      id,
		Region:  region.Code,
		Country: loc.City.Country,
		City:    loc.City.Name,
		ASN:     loc.ASN.Number,
		ISP:     loc.ASN.ISP,
		Latency: types.LatencyProfile{
			BaselineMs: round3(baseline),
			JitterMs:   round3(region.NoiseMs * (0.25 + 0.5*rng.Float64()) * float64(loc.City.Tier)),
			PacketLoss: round6(region.LossRate * (2 - loc.ASN.Reliability) * (0.5 + rng.Float64())),
			RegionRTT:  regionRTT,
		},
		Bandwidth: types.BandwidthProfile{
			UplinkMbps:   round3(uplink),
			DownlinkMbps: round3(downlink),
			BurstMbps:    round3(burst),
			Shaping:      shaping,
			QoS:          qosFor(loc.ASN.Class),
		},
		Reliability: round6(math.Min(1, math.Max(0, reliability))),
		Protocols:   append([]string(nil), protocols...),
		Tier:        loc.City.Tier,
		Coordinates: coord,
		LocalNetwork: types.LocalNetwork{
			Hops:           hops,
			BackbonePath:   []string{loc.City.Name, backboneID(region.Code)},
			RedundantPaths: redundant,
		},
		TopologyIndex: idx,
	}
}

func backboneID(region string) string {
	return "bb-" + strings.ToLower(region)
}

func round3(x float64) float64 { return math.Round(x*1e3) / 1e3 }
func round4(x float64) float64 { return math.Round(x*1e4) / 1e4 }
func round6(x float64) float64 { return math.Round(x*1e6) / 1e6 }
