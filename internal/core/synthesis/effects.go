package synthesis

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/dep2p/go-hypergrid/pkg/types"
)

const (
	// backboneUtilization 代理下行带宽中经过区域骨干的比例
	backboneUtilization = 0.3

	// congestionSpill 拥塞跨区域传播的阈值
	congestionSpill = 0.7

	// cascadeRounds 级联故障的传播轮数
	cascadeRounds = 3
)

// ============================================================================
//                              拥塞与骨干容量
// ============================================================================

// applyCongestion 模拟区域骨干上的拥塞
//
// 每个区域共享一条骨干链路，负载为区域内下行带宽之和乘以利用率再除以容量。
// 负载超过 1 时按比例压缩区域内代理的带宽（容量约束）；
// 相邻区域负载超过阈值时，经跨区域拓扑边把部分负载传播过来。
func applyCongestion(rng *rand.Rand, proxies []types.ProxyNode, topo *types.Topology, capacity float64, chars *types.MeshCharacteristics) {
	demand := make(map[string]float64)
	for i := range proxies {
		demand[proxies[i].Region] += proxies[i].Bandwidth.DownlinkMbps * backboneUtilization
	}

	regions := make([]string, 0, len(demand))
	for r := range demand {
		regions = append(regions, r)
	}
	sort.Strings(regions)

	load := make(map[string]float64, len(demand))
	for _, r := range regions {
		l := demand[r] / capacity
		if l > 1 {
			scale := 1 / l
			for i := range proxies {
				if proxies[i].Region != r {
					continue
				}
				bw := &proxies[i].Bandwidth
				bw.DownlinkMbps = round3(bw.DownlinkMbps * scale)
				bw.UplinkMbps = round3(bw.UplinkMbps * scale)
				bw.BurstMbps = round3(bw.BurstMbps * scale)
			}
			chars.Degraded = true
			chars.Degradations = append(chars.Degradations,
				fmt.Sprintf("backbone %s saturated: demand %.0f Mbps over capacity %.0f Mbps", backboneID(r), demand[r], capacity))
			l = 1
		}
		load[r] = l
	}

	for i := range proxies {
		p := &proxies[i]
		l := math.Min(1, load[p.Region]*(0.8+0.4*rng.Float64()))
		p.Latency.Congestion = types.CongestionModel{Load: round6(l)}
	}

	// 沿跨区域边传播拥塞
	for _, e := range topo.Edges {
		a, b := &proxies[e.From], &proxies[e.To]
		if a.Region == b.Region {
			continue
		}
		spill(a, load[b.Region])
		spill(b, load[a.Region])
	}

	for i := range proxies {
		c := &proxies[i].Latency.Congestion
		l := math.Min(c.Load, 0.95)
		c.QueueDelayMs = round3(proxies[i].Latency.BaselineMs * 0.1 * l * l / (1 - l))
	}
}

func spill(p *types.ProxyNode, neighborLoad float64) {
	if neighborLoad <= congestionSpill {
		return
	}
	c := &p.Latency.Congestion
	c.Load = round6(math.Min(1, c.Load+0.1*neighborLoad))
	c.Propagated = true
}

// ============================================================================
//                              故障注入
// ============================================================================

// injectFailures 按可靠性模型注入故障
//
//   - correlated：选出代理最多的 ASN，其中每个代理以 10×(1-可靠性) 的概率同时失效
//   - cascading：每个代理以 (1-可靠性) 的概率独立失效，随后沿拓扑边传播若干轮，
//     邻居的失效概率与其失效邻居占比成正比
//
// 至少保留一个存活代理。
func injectFailures(rng *rand.Rand, proxies []types.ProxyNode, topo *types.Topology, model types.ReliabilityModel, chars *types.MeshCharacteristics) {
	switch model {
	case types.ReliabilityCorrelated:
		byASN := make(map[uint32][]int)
		for i := range proxies {
			byASN[proxies[i].ASN] = append(byASN[proxies[i].ASN], i)
		}
		var worst uint32
		for asn, members := range byASN {
			if len(members) > len(byASN[worst]) || (len(members) == len(byASN[worst]) && asn < worst) {
				worst = asn
			}
		}
		failed := 0
		for _, i := range byASN[worst] {
			if rng.Float64() < 10*(1-proxies[i].Reliability) {
				proxies[i].Failed = true
				failed++
			}
		}
		chars.FailureScenarios = append(chars.FailureScenarios,
			fmt.Sprintf("correlated outage in AS%d: %d of %d proxies", worst, failed, len(byASN[worst])))

	case types.ReliabilityCascading:
		seeds := 0
		for i := range proxies {
			if rng.Float64() < 1-proxies[i].Reliability {
				proxies[i].Failed = true
				seeds++
			}
		}
		adj := topo.Adjacency()
		cascaded := 0
		for round := 0; round < cascadeRounds; round++ {
			var next []int
			for i := range proxies {
				if proxies[i].Failed || len(adj[i]) == 0 {
					continue
				}
				down := 0
				for _, v := range adj[i] {
					if proxies[v].Failed {
						down++
					}
				}
				if rng.Float64() < 0.5*float64(down)/float64(len(adj[i])) {
					next = append(next, i)
				}
			}
			if len(next) == 0 {
				break
			}
			for _, i := range next {
				proxies[i].Failed = true
			}
			cascaded += len(next)
		}
		chars.FailureScenarios = append(chars.FailureScenarios,
			fmt.Sprintf("cascading failure: %d initial, %d propagated", seeds, cascaded))

	default:
		return
	}

	live := 0
	for i := range proxies {
		if !proxies[i].Failed {
			live++
		}
	}
	if live == 0 && len(proxies) > 0 {
		best := 0
		for i := range proxies {
			if proxies[i].Reliability > proxies[best].Reliability {
				best = i
			}
		}
		proxies[best].Failed = false
	}
	for i := range proxies {
		if proxies[i].Failed {
			chars.FailedProxies++
		}
	}
}

// summarize 计算网格整体统计
func summarize(proxies []types.ProxyNode, chars *types.MeshCharacteristics) {
	if len(proxies) == 0 {
		return
	}
	var lat, bw, rel float64
	for i := range proxies {
		lat += proxies[i].Latency.BaselineMs
		bw += proxies[i].Bandwidth.DownlinkMbps
		rel += proxies[i].Reliability
	}
	n := float64(len(proxies))
	chars.MeanLatencyMs = round3(lat / n)
	chars.MeanDownlinkMbps = round3(bw / n)
	chars.MeanReliability = round6(rel / n)
}
