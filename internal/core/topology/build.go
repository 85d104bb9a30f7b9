package topology

import (
	"encoding/binary"
	"math"
	"math/rand"
	"sort"

	"github.com/spaolacci/murmur3"

	"github.com/dep2p/go-hypergrid/internal/core/geo"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

// sameRegionBias 优先连接时选择同区域目标的概率
const sameRegionBias = 0.7

// ============================================================================
//                              节点分配
// ============================================================================

// allocate 按权重分配每个区域的节点数
//
// 每个区域先取 floor(scale*w)，余数依次分给权重最大的区域，总数恰好等于 scale。
// 返回的区域按权重降序、代码升序排列。
func allocate(scale int, dist map[string]float64) ([]string, map[string]int) {
	codes := make([]string, 0, len(dist))
	for code := range dist {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if dist[codes[i]] != dist[codes[j]] {
			return dist[codes[i]] > dist[codes[j]]
		}
		return codes[i] < codes[j]
	})

	// 权重在容差内可能偏离 1，按总和归一化后分配
	sum := 0.0
	for _, code := range codes {
		sum += dist[code]
	}
	if sum <= 0 {
		sum = 1
	}

	counts := make(map[string]int, len(codes))
	total := 0
	for _, code := range codes {
		c := int(math.Floor(float64(scale) * dist[code] / sum))
		counts[code] = c
		total += c
	}
	for i := 0; total < scale; i = (i + 1) % len(codes) {
		counts[codes[i]]++
		total++
	}
	for i := len(codes) - 1; total > scale; i = (i + len(codes) - 1) % len(codes) {
		if counts[codes[i]] > 0 {
			counts[codes[i]]--
			total--
		}
	}
	return codes, counts
}

// labels 生成节点区域标签，并用 rng 打散以便各区域交错加入
func labels(rng *rand.Rand, codes []string, counts map[string]int) []string {
	var out []string
	for _, code := range codes {
		for i := 0; i < counts[code]; i++ {
			out = append(out, code)
		}
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// ============================================================================
//                              优先连接
// ============================================================================

// buildScaleFree 用 Barabási–Albert 过程构建无标度图
//
// 先构建 m+1 个节点的完全子图，之后每个新节点连接 m 个已有节点，
// 被选中概率正比于度数；同区域目标以 sameRegionBias 的概率优先。
func buildScaleFree(rng *rand.Rand, regionOf []string, m int) *graph {
	n := len(regionOf)
	g := newGraph(n)
	seed := m + 1
	if seed > n {
		seed = n
	}
	for u := 0; u < seed; u++ {
		for v := u + 1; v < seed; v++ {
			g.addEdge(u, v, types.EdgeAttachment)
		}
	}

	// 每个节点在列表中出现 degree 次，均匀抽取即按度数加权
	var global []int
	byRegion := make(map[string][]int)
	note := func(u int) {
		global = append(global, u)
		byRegion[regionOf[u]] = append(byRegion[regionOf[u]], u)
	}
	for _, k := range g.order {
		u, v := splitKey(k)
		note(u)
		note(v)
	}

	for v := seed; v < n; v++ {
		chosen := make(map[int]struct{}, m)
		targets := make([]int, 0, m)
		for attempts := 0; len(targets) < m && attempts < 64*m; attempts++ {
			pool := global
			if local := byRegion[regionOf[v]]; len(local) > 0 && rng.Float64() < sameRegionBias {
				pool = local
			}
			t := pool[rng.Intn(len(pool))]
			if _, dup := chosen[t]; dup {
				continue
			}
			chosen[t] = struct{}{}
			targets = append(targets, t)
		}
		// 抽样多次仍凑不足时按下标补齐
		for t := 0; len(targets) < m && t < v; t++ {
			if _, dup := chosen[t]; !dup {
				chosen[t] = struct{}{}
				targets = append(targets, t)
			}
		}
		for _, t := range targets {
			if g.addEdge(v, t, types.EdgeAttachment) {
				note(v)
				note(t)
			}
		}
	}
	return g
}

// addLongRange 加入 count 条长程边
//
// 每次从不同区域轮流选取起点，连接到 BFS 距离最远的节点，缩短图直径。
func addLongRange(rng *rand.Rand, g *graph, regionOf []string, count int) int {
	if g.n < 4 {
		return 0
	}
	added := 0
	lastRegion := ""
	for i := 0; i < count; i++ {
		src := rng.Intn(g.n)
		for tries := 0; tries < 8 && regionOf[src] == lastRegion; tries++ {
			src = rng.Intn(g.n)
		}
		lastRegion = regionOf[src]

		dist := g.bfs(src, nil)
		far, best := -1, 1
		for v, d := range dist {
			if d > best && !g.hasEdge(src, v) {
				far, best = v, d
			}
		}
		if far < 0 {
			continue
		}
		if g.addEdge(src, far, types.EdgeLongRange) {
			added++
		}
	}
	return added
}

// ============================================================================
//                              边属性
// ============================================================================

// edgeNoise 返回边的确定性伪随机数 [0,1)
//
// 只依赖种子与端点，与加边顺序无关。
func edgeNoise(seed uint64, u, v, salt int) float64 {
	if u > v {
		u, v = v, u
	}
	var buf [20]byte
	binary.LittleEndian.PutUint64(buf[0:], seed)
	binary.LittleEndian.PutUint32(buf[8:], uint32(u))
	binary.LittleEndian.PutUint32(buf[12:], uint32(v))
	binary.LittleEndian.PutUint32(buf[16:], uint32(salt))
	return float64(murmur3.Sum64(buf[:])>>11) / float64(1<<53)
}

// materialize 计算全部边的属性
//
// 同区域边的延迟为 2~20ms；跨区域边为区域质心间往返传播延迟加噪声。
// 带宽随端点度数增长（枢纽节点接入更粗的链路），代价与延迟和跨区域溢价相关。
func materialize(g *graph, regionOf []string, model *geo.Model, seed uint64) []types.Edge {
	keys := append([]uint64(nil), g.order...)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	edges := make([]types.Edge, 0, len(keys))
	for _, k := range keys {
		u, v := splitKey(k)
		kind := g.edges[k]

		var latency float64
		crossRegion := regionOf[u] != regionOf[v]
		if crossRegion {
			a, _ := model.Centroid(regionOf[u])
			b, _ := model.Centroid(regionOf[v])
			latency = geo.RTTMs(a, b) + 10*edgeNoise(seed, u, v, 1)
		} else {
			latency = 2 + 18*edgeNoise(seed, u, v, 1)
		}

		minDeg := math.Min(float64(g.degree(u)), float64(g.degree(v)))
		bandwidth := 1000 * (1 + math.Log2(1+minDeg)) * (0.75 + 0.5*edgeNoise(seed, u, v, 2))

		cost := 1 + latency/50
		if crossRegion {
			cost *= 1.5
		}
		if kind == types.EdgeLongRange {
			cost *= 1.2
		}

		reliability := 0.999 - 0.02*edgeNoise(seed, u, v, 3)
		if crossRegion {
			reliability -= 0.005
		}

		edges = append(edges, types.Edge{
			From:          u,
			To:            v,
			LatencyMs:     round3(latency),
			BandwidthMbps: round3(bandwidth),
			Cost:          round3(cost),
			Reliability:   round3(reliability),
			Kind:          kind,
		})
	}
	return edges
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
