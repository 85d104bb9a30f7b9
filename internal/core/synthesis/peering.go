package synthesis

import (
	"sort"

	"github.com/dep2p/go-hypergrid/internal/core/geo"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

// link 路由图中的一条链路
type link struct {
	to          int
	latency     float64
	bandwidth   float64
	cost        float64
	reliability float64
}

// oneWayMs 两个代理之间的单向延迟
func oneWayMs(a, b *types.ProxyNode) float64 {
	prop := geo.PropagationMs(geo.Distance(a.Coordinates, b.Coordinates))
	return prop + (a.Latency.BaselineMs+b.Latency.BaselineMs)/4 +
		(a.Latency.Congestion.QueueDelayMs+b.Latency.Congestion.QueueDelayMs)/2
}

// bottleneck 链路带宽受两端上下行中最小者限制
func bottleneck(a, b *types.ProxyNode) float64 {
	bw := a.Bandwidth.UplinkMbps
	for _, x := range []float64{a.Bandwidth.DownlinkMbps, b.Bandwidth.UplinkMbps, b.Bandwidth.DownlinkMbps} {
		if x < bw {
			bw = x
		}
	}
	return bw
}

func peeringType(a, b *types.ProxyNode) types.PeeringType {
	switch {
	case a.ASN == b.ASN:
		return types.PeeringBackbone
	case a.Region == b.Region || (a.Bandwidth.QoS == types.QoSPremium && b.Bandwidth.QoS == types.QoSPremium):
		return types.PeeringPeer
	default:
		return types.PeeringTransit
	}
}

var peeringCostFactor = map[types.PeeringType]float64{
	types.PeeringBackbone: 0.1,
	types.PeeringPeer:     0.3,
	types.PeeringTransit:  1.0,
}

// newPeering 生成 a、b 之间的对等关系（Source < Target）
func newPeering(a, b *types.ProxyNode) types.PeeringRelationship {
	if a.ID > b.ID {
		a, b = b, a
	}
	lat := oneWayMs(a, b)
	typ := peeringType(a, b)
	return types.PeeringRelationship{
		Source:        a.ID,
		Target:        b.ID,
		Type:          typ,
		BandwidthMbps: round3(bottleneck(a, b)),
		LatencyMs:     round3(lat),
		Cost:          round6(peeringCostFactor[typ] * (1 + lat/100)),
	}
}

// selectPeerings 为每个存活代理选择至多 maxPeers 个对等节点
//
// 候选按综合评分（延迟 + 10×代价）升序；双方的对等数都未达上限时才建立关系，
// 每个无序对只建立一次。结果按 (Source, Target) 排序。
func selectPeerings(proxies []types.ProxyNode, maxPeers int) []types.PeeringRelationship {
	n := len(proxies)
	count := make([]int, n)
	seen := make(map[[2]int]bool)
	var out []types.PeeringRelationship

	type cand struct {
		v     int
		score float64
		rel   types.PeeringRelationship
	}
	for u := 0; u < n; u++ {
		if proxies[u].Failed || count[u] >= maxPeers {
			continue
		}
		cands := make([]cand, 0, n-1)
		for v := 0; v < n; v++ {
			if v == u || proxies[v].Failed {
				continue
			}
			rel := newPeering(&proxies[u], &proxies[v])
			cands = append(cands, cand{v: v, score: rel.LatencyMs + 10*rel.Cost, rel: rel})
		}
		sort.SliceStable(cands, func(i, j int) bool {
			if cands[i].score != cands[j].score {
				return cands[i].score < cands[j].score
			}
			return cands[i].v < cands[j].v
		})
		for _, c := range cands {
			if count[u] >= maxPeers {
				break
			}
			key := [2]int{min(u, c.v), max(u, c.v)}
			if seen[key] || count[c.v] >= maxPeers {
				continue
			}
			seen[key] = true
			count[u]++
			count[c.v]++
			out = append(out, c.rel)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})

	peers := make(map[string][]string)
	for _, p := range out {
		peers[p.Source] = append(peers[p.Source], p.Target)
		peers[p.Target] = append(peers[p.Target], p.Source)
	}
	for i := range proxies {
		pp := peers[proxies[i].ID]
		sort.Strings(pp)
		proxies[i].LocalNetwork.PeeringPoints = pp
	}
	return out
}

// buildLinks 合并拓扑边与对等关系，构建存活代理之间的路由图
//
// 同一对节点既有拓扑边又有对等关系时使用对等关系的属性。
func buildLinks(proxies []types.ProxyNode, topo *types.Topology, peerings []types.PeeringRelationship) [][]link {
	n := len(proxies)
	index := make(map[string]int, n)
	for i := range proxies {
		index[proxies[i].ID] = i
	}
	byPair := make(map[[2]int]link)
	put := func(u, v int, l link) {
		byPair[[2]int{min(u, v), max(u, v)}] = l
	}

	for _, e := range topo.Edges {
		a, b := &proxies[e.From], &proxies[e.To]
		if a.Failed || b.Failed {
			continue
		}
		put(e.From, e.To, link{
			latency:     oneWayMs(a, b),
			bandwidth:   bottleneck(a, b),
			cost:        e.Cost,
			reliability: e.Reliability * a.Reliability * b.Reliability,
		})
	}
	for _, p := range peerings {
		u, v := index[p.Source], index[p.Target]
		put(u, v, link{
			latency:     p.LatencyMs,
			bandwidth:   p.BandwidthMbps,
			cost:        p.Cost,
			reliability: proxies[u].Reliability * proxies[v].Reliability,
		})
	}

	keys := make([][2]int, 0, len(byPair))
	for k := range byPair {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	adj := make([][]link, n)
	for _, k := range keys {
		l := byPair[k]
		l.to = k[1]
		adj[k[0]] = append(adj[k[0]], l)
		l.to = k[0]
		adj[k[1]] = append(adj[k[1]], l)
	}
	return adj
}
