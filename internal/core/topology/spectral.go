package topology

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

// maxSpectralDims 谱嵌入的最大维度
const maxSpectralDims = 16

// partitionResult 谱分区结果
type partitionResult struct {
	assign  []int
	k       int
	fiedler []float64
	lambda2 float64
	swaps   int
	warning *types.ConvergenceWarning
}

// partitionCount 返回 ⌈√(n/2)⌉
func partitionCount(n int) int {
	k := int(math.Ceil(math.Sqrt(float64(n) / 2)))
	if k < 1 {
		k = 1
	}
	return k
}

// spectralPartition 谱分区
//
// 求解失败（预算耗尽）时退回 degreePartition，并返回 ConvergenceWarning。
func spectralPartition(ctx context.Context, rng *rand.Rand, g *graph, cfg config.TopologyConfig) (*partitionResult, error) {
	n := g.n
	k := partitionCount(n)
	res := &partitionResult{k: k}
	if n == 1 {
		res.assign = []int{0}
		res.fiedler = []float64{0}
		return res, nil
	}

	dims := k
	if dims > maxSpectralDims {
		dims = maxSpectralDims
	}
	if dims < 2 {
		dims = 2
	}

	eig, err := lowestEigen(ctx, rng, g, dims, cfg.EigenIterations, cfg.EigenTolerance)
	if err != nil {
		return nil, err
	}

	if !eig.converged {
		res.warning = &types.ConvergenceWarning{
			Phase:      "spectral-partition",
			Iterations: eig.iterations,
			Residual:   eig.residual,
		}
		var order []int
		res.assign, order = degreePartition(g, k)
		res.fiedler = make([]float64, n)
		for pos, u := range order {
			res.fiedler[u] = float64(pos)/float64(n) - 0.5
		}
	} else {
		res.lambda2 = eig.values[1]
		res.fiedler = make([]float64, n)
		for u := 0; u < n; u++ {
			d := float64(g.degree(u))
			if d == 0 {
				d = 1
			}
			res.fiedler[u] = eig.vectors[1][u] / math.Sqrt(d)
		}

		// Ng–Jordan–Weiss：行归一化的特征向量嵌入
		embed := make([][]float64, n)
		for u := 0; u < n; u++ {
			row := make([]float64, len(eig.vectors))
			for j := range eig.vectors {
				row[j] = eig.vectors[j][u]
			}
			if nrm := math.Sqrt(dot(row, row)); nrm > 0 {
				for j := range row {
					row[j] /= nrm
				}
			}
			embed[u] = row
		}
		centroids := kmeans(rng, embed, k, cfg.KMeansIterations)
		res.assign = balancedAssign(embed, centroids)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lo, hi := balanceBounds(n, k, cfg.BalanceTolerance)
	res.swaps = refine(g, res.assign, k, cfg.RefinePasses, lo, hi)
	return res, nil
}

// targetSizes 返回 k 个分区的目标大小（相差不超过 1）
func targetSizes(n, k int) []int {
	sizes := make([]int, k)
	for i := range sizes {
		sizes[i] = n / k
		if i < n%k {
			sizes[i]++
		}
	}
	return sizes
}

// balanceBounds 返回细化阶段允许的分区大小范围
func balanceBounds(n, k int, tol float64) (int, int) {
	avg := float64(n) / float64(k)
	lo := int(math.Floor(avg * (1 - tol)))
	hi := int(math.Ceil(avg * (1 + tol)))
	if lo < 1 {
		lo = 1
	}
	return lo, hi
}

// degreePartition 基于度的启发式分区
//
// 从最高度节点开始 BFS（邻居按度数降序展开），按访问顺序切成 k 段。
// 返回分配与访问顺序。
func degreePartition(g *graph, k int) ([]int, []int) {
	n := g.n
	byDegree := make([]int, n)
	for i := range byDegree {
		byDegree[i] = i
	}
	sort.SliceStable(byDegree, func(a, b int) bool { return g.degree(byDegree[a]) > g.degree(byDegree[b]) })

	seen := make([]bool, n)
	order := make([]int, 0, n)
	for _, root := range byDegree {
		if seen[root] {
			continue
		}
		seen[root] = true
		queue := []int{root}
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			order = append(order, u)
			next := append([]int(nil), g.adj[u]...)
			sort.SliceStable(next, func(a, b int) bool { return g.degree(next[a]) > g.degree(next[b]) })
			for _, v := range next {
				if !seen[v] {
					seen[v] = true
					queue = append(queue, v)
				}
			}
		}
	}

	assign := make([]int, n)
	pos := 0
	for p, size := range targetSizes(n, k) {
		for i := 0; i < size; i++ {
			assign[order[pos]] = p
			pos++
		}
	}
	return assign, order
}

// kmeans k-means++ 初始化加 Lloyd 迭代，返回质心
func kmeans(rng *rand.Rand, pts [][]float64, k, maxIter int) [][]float64 {
	n := len(pts)
	dim := len(pts[0])
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), pts[rng.Intn(n)]...))

	d2 := make([]float64, n)
	for len(centroids) < k {
		total := 0.0
		for i, p := range pts {
			best := math.Inf(1)
			for _, c := range centroids {
				if d := sqDist(p, c); d < best {
					best = d
				}
			}
			d2[i] = best
			total += best
		}
		next := rng.Intn(n)
		if total > 0 {
			x := rng.Float64() * total
			for i, d := range d2 {
				if x < d {
					next = i
					break
				}
				x -= d
			}
		}
		centroids = append(centroids, append([]float64(nil), pts[next]...))
	}

	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}
	for it := 0; it < maxIter; it++ {
		changed := false
		for i, p := range pts {
			best, bestD := 0, math.Inf(1)
			for c := range centroids {
				if d := sqDist(p, centroids[c]); d < bestD {
					best, bestD = c, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, p := range pts {
			counts[assign[i]]++
			axpy(1, p, sums[assign[i]])
		}
		for c := range centroids {
			if counts[c] == 0 {
				// 空簇用离自身质心最远的点重新播种
				far, farD := 0, -1.0
				for i, p := range pts {
					if d := sqDist(p, centroids[assign[i]]); d > farD {
						far, farD = i, d
					}
				}
				copy(centroids[c], pts[far])
				continue
			}
			for j := range sums[c] {
				centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}
	}
	return centroids
}

// balancedAssign 在容量约束下把节点分给最近的质心
//
// 所有 (节点, 质心) 对按距离升序处理，节点进入仍有容量的最近质心。
// 容量取 targetSizes，分区大小相差不超过 1。
func balancedAssign(pts [][]float64, centroids [][]float64) []int {
	n, k := len(pts), len(centroids)
	type cand struct {
		node, part int
		d          float64
	}
	cands := make([]cand, 0, n*k)
	for i, p := range pts {
		for c, cen := range centroids {
			cands = append(cands, cand{i, c, sqDist(p, cen)})
		}
	}
	sort.Slice(cands, func(a, b int) bool {
		if cands[a].d != cands[b].d {
			return cands[a].d < cands[b].d
		}
		if cands[a].node != cands[b].node {
			return cands[a].node < cands[b].node
		}
		return cands[a].part < cands[b].part
	})

	capacity := targetSizes(n, k)
	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}
	placed := 0
	for _, c := range cands {
		if placed == n {
			break
		}
		if assign[c.node] >= 0 || capacity[c.part] == 0 {
			continue
		}
		assign[c.node] = c.part
		capacity[c.part]--
		placed++
	}
	return assign
}

// refine Kernighan–Lin 式细化
//
// 每轮扫描所有节点：若单点迁移能减少割边且两侧分区大小仍在 [lo, hi] 内则直接迁移，
// 否则寻找与目标分区节点交换后割边减少最多的对象。
// 没有改进或轮数用尽时停止，返回迁移与交换次数。
func refine(g *graph, assign []int, k, passes, lo, hi int) int {
	if k < 2 {
		return 0
	}
	members := make([][]int, k)
	for u, p := range assign {
		members[p] = append(members[p], u)
	}
	conn := func(u, p int) int {
		c := 0
		for _, v := range g.adj[u] {
			if assign[v] == p {
				c++
			}
		}
		return c
	}

	swaps := 0
	for pass := 0; pass < passes; pass++ {
		improved := false
		for u := 0; u < g.n; u++ {
			a := assign[u]
			seen := make(map[int]bool)
			for _, w := range g.adj[u] {
				b := assign[w]
				if b == a || seen[b] {
					continue
				}
				seen[b] = true

				gu := conn(u, b) - conn(u, a)
				if gu > 0 && len(members[a]) > lo && len(members[b]) < hi {
					assign[u] = b
					members[a] = remove(members[a], u)
					members[b] = append(members[b], u)
					swaps++
					improved = true
					break
				}

				bestV, bestGain := -1, 0
				for _, v := range members[b] {
					gv := conn(v, a) - conn(v, b)
					gain := gu + gv
					if g.hasEdge(u, v) {
						gain -= 2
					}
					if gain > bestGain {
						bestV, bestGain = v, gain
					}
				}
				if bestV < 0 {
					continue
				}

				assign[u], assign[bestV] = b, a
				replace(members[a], u, bestV)
				replace(members[b], bestV, u)
				swaps++
				improved = true
				break
			}
		}
		if !improved {
			break
		}
	}
	return swaps
}

func remove(s []int, x int) []int {
	for i, y := range s {
		if y == x {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func replace(s []int, old, new int) {
	for i, x := range s {
		if x == old {
			s[i] = new
			return
		}
	}
}

// partitions 汇总分区与割边
func partitions(g *graph, assign []int, k int) []types.Partition {
	parts := make([]types.Partition, k)
	for p := range parts {
		parts[p].ID = p
	}
	for u, p := range assign {
		parts[p].Members = append(parts[p].Members, u)
	}
	for _, key := range g.order {
		u, v := splitKey(key)
		if assign[u] != assign[v] {
			parts[assign[u]].CutEdges++
			parts[assign[v]].CutEdges++
		}
	}
	return parts
}
