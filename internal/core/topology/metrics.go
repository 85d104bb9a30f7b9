package topology

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

// ============================================================================
//                              拓扑指标
// ============================================================================

// measure 计算最终图的指标
//
// 代数连通度在最终图上重新求解；未收敛时仍使用当前 Ritz 值，并返回警告。
func measure(ctx context.Context, rng *rand.Rand, g *graph, cfg config.TopologyConfig) (types.TopologyMetrics, *types.ConvergenceWarning, error) {
	m := types.TopologyMetrics{
		NodeCount:          g.n,
		EdgeCount:          g.edgeCount(),
		DegreeDistribution: make(map[int]int),
	}
	for u := 0; u < g.n; u++ {
		m.DegreeDistribution[g.degree(u)]++
	}

	m.Diameter, m.AveragePathLength = pathStats(rng, g, cfg.ExactDistanceLimit, cfg.Landmarks)
	m.ClusteringCoefficient = clustering(g)
	if err := ctx.Err(); err != nil {
		return m, nil, err
	}

	var warn *types.ConvergenceWarning
	if g.n >= 2 {
		eig, err := lowestEigen(ctx, rng, g, 2, cfg.EigenIterations, cfg.EigenTolerance)
		if err != nil {
			return m, nil, err
		}
		m.AlgebraicConnectivity = round6(math.Max(0, eig.values[1]))
		if !eig.converged {
			warn = &types.ConvergenceWarning{
				Phase:      "algebraic-connectivity",
				Iterations: eig.iterations,
				Residual:   eig.residual,
			}
		}
	}

	m.VertexConnectivity = estimateConnectivity(rng, g, cfg.ConnectivitySamples)
	m.ResilienceScore = round6(resilience(g))
	return m, warn, nil
}

// pathStats 返回直径与平均路径长度
//
// n <= exactLimit 时对每个节点做 BFS；否则以 4*landmarks 个随机源采样。
func pathStats(rng *rand.Rand, g *graph, exactLimit, landmarks int) (int, float64) {
	if g.n < 2 {
		return 0, 0
	}
	sources := make([]int, 0, g.n)
	if g.n <= exactLimit {
		for u := 0; u < g.n; u++ {
			sources = append(sources, u)
		}
	} else {
		for _, u := range rng.Perm(g.n)[:min(g.n, 4*landmarks)] {
			sources = append(sources, u)
		}
	}

	diameter := 0
	var sum, pairs float64
	for _, s := range sources {
		for v, d := range g.bfs(s, nil) {
			if v == s || d < 0 {
				continue
			}
			if d > diameter {
				diameter = d
			}
			sum += float64(d)
			pairs++
		}
	}
	if pairs == 0 {
		return diameter, 0
	}
	return diameter, round6(sum / pairs)
}

// clustering 平均局部聚类系数
func clustering(g *graph) float64 {
	if g.n == 0 {
		return 0
	}
	total := 0.0
	for u := 0; u < g.n; u++ {
		nb := g.adj[u]
		d := len(nb)
		if d < 2 {
			continue
		}
		links := 0
		for i := 0; i < d; i++ {
			for j := i + 1; j < d; j++ {
				if g.hasEdge(nb[i], nb[j]) {
					links++
				}
			}
		}
		total += 2 * float64(links) / float64(d*(d-1))
	}
	return round6(total / float64(g.n))
}

// estimateConnectivity 点连通度估计
//
// 取最小度与采样点对最大流的较小值；完全图返回 n-1。
func estimateConnectivity(rng *rand.Rand, g *graph, samples int) int {
	if g.n < 2 || !g.connected() {
		return 0
	}
	k := g.minDegree()
	if k == g.n-1 {
		return k
	}
	if cuts, _ := cutStructure(g, nil); len(cuts) > 0 {
		return 1
	}
	for _, p := range samplePairs(rng, g, samples) {
		if flow, _ := vertexDisjoint(g, p[0], p[1], k); flow < k {
			k = flow
		}
	}
	return k
}

// resilience 移除度数最高的 max(1, n/20) 个节点后，最大连通分量占剩余节点的比例
func resilience(g *graph) float64 {
	if g.n < 2 {
		return 1
	}
	remove := g.n / 20
	if remove < 1 {
		remove = 1
	}
	byDegree := make([]int, g.n)
	for i := range byDegree {
		byDegree[i] = i
	}
	sort.SliceStable(byDegree, func(a, b int) bool { return g.degree(byDegree[a]) > g.degree(byDegree[b]) })

	removed := make([]bool, g.n)
	for _, u := range byDegree[:remove] {
		removed[u] = true
	}
	largest := 0
	for _, comp := range g.components(removed) {
		if len(comp) > largest {
			largest = len(comp)
		}
	}
	return float64(largest) / float64(g.n-remove)
}

func round6(x float64) float64 {
	return math.Round(x*1e6) / 1e6
}
