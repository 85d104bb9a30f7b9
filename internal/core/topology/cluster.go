package topology

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/dep2p/go-hypergrid/pkg/types"
)

// unit 聚类过程中的一个簇
type unit struct {
	size    float64
	members []int
}

// clusterNodes 层次聚类
//
// n <= exactLimit 时基于精确 BFS 距离，否则基于地标嵌入先做微簇预聚合。
// 之后按 Ward 准则（Lance–Williams 更新）合并，直到簇数约为 √n。
// 返回每个节点所属簇编号与簇列表。
func clusterNodes(ctx context.Context, rng *rand.Rand, g *graph, exactLimit, landmarks int) ([]int, []types.Cluster, error) {
	n := g.n
	target := int(math.Round(math.Sqrt(float64(n))))
	if target < 1 {
		target = 1
	}

	var (
		units []unit
		dist  [][]float64
	)
	if n <= exactLimit {
		units, dist = exactUnits(g)
	} else {
		units, dist = landmarkUnits(rng, g, landmarks, exactLimit)
	}

	if err := wardMerge(ctx, units, dist, target); err != nil {
		return nil, nil, err
	}

	var clusters []types.Cluster
	for _, u := range units {
		if u.size == 0 {
			continue
		}
		members := append([]int(nil), u.members...)
		sort.Ints(members)
		clusters = append(clusters, types.Cluster{Members: members})
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].Members[0] < clusters[j].Members[0] })

	assign := make([]int, n)
	for id := range clusters {
		clusters[id].ID = id
		for _, m := range clusters[id].Members {
			assign[m] = id
		}
	}
	return assign, clusters, nil
}

// exactUnits 单节点簇与精确距离
//
// 单点之间的 Ward 差异度取 d²/2，不可达节点取 n²。
func exactUnits(g *graph) ([]unit, [][]float64) {
	n := g.n
	units := make([]unit, n)
	dist := make([][]float64, n)
	for u := 0; u < n; u++ {
		units[u] = unit{size: 1, members: []int{u}}
		hops := g.bfs(u, nil)
		row := make([]float64, n)
		for v, d := range hops {
			if d < 0 {
				row[v] = float64(n * n)
				continue
			}
			row[v] = float64(d*d) / 2
		}
		dist[u] = row
	}
	return units, dist
}

// landmarkUnits 地标近似
//
// 以最高度节点为首个地标，之后依次选取距已选地标最远的节点。
// 每个节点嵌入为到各地标的跳数向量；随机选取 micro 个种子，
// 节点归入嵌入空间中最近的种子，形成微簇。
func landmarkUnits(rng *rand.Rand, g *graph, k, micro int) ([]unit, [][]float64) {
	n := g.n
	if k > n {
		k = n
	}

	first := 0
	for u := 1; u < n; u++ {
		if g.degree(u) > g.degree(first) {
			first = u
		}
	}
	nearest := make([]int, n)
	for i := range nearest {
		nearest[i] = math.MaxInt32
	}
	embed := make([][]float64, n)
	for i := range embed {
		embed[i] = make([]float64, k)
	}
	lm := first
	for j := 0; j < k; j++ {
		hops := g.bfs(lm, nil)
		next, far := lm, -1
		for v, d := range hops {
			if d < 0 {
				d = n
			}
			embed[v][j] = float64(d)
			if d < nearest[v] {
				nearest[v] = d
			}
			if nearest[v] > far {
				next, far = v, nearest[v]
			}
		}
		lm = next
	}

	perm := rng.Perm(n)
	if micro > n {
		micro = n
	}
	seeds := perm[:micro]
	units := make([]unit, micro)
	centroids := make([][]float64, micro)
	for i := range centroids {
		centroids[i] = make([]float64, k)
	}
	for v := 0; v < n; v++ {
		best, bestD := 0, math.Inf(1)
		for i, s := range seeds {
			if d := sqDist(embed[v], embed[s]); d < bestD {
				best, bestD = i, d
			}
		}
		units[best].size++
		units[best].members = append(units[best].members, v)
		for j := 0; j < k; j++ {
			centroids[best][j] += embed[v][j]
		}
	}
	for i := range units {
		if units[i].size == 0 {
			continue
		}
		for j := 0; j < k; j++ {
			centroids[i][j] /= units[i].size
		}
	}

	dist := make([][]float64, micro)
	for i := range dist {
		dist[i] = make([]float64, micro)
	}
	for i := 0; i < micro; i++ {
		for j := i + 1; j < micro; j++ {
			si, sj := units[i].size, units[j].size
			if si == 0 || sj == 0 {
				continue
			}
			d := si * sj / (si + sj) * sqDist(centroids[i], centroids[j])
			dist[i][j], dist[j][i] = d, d
		}
	}
	return units, dist
}

// wardMerge 反复合并 Ward 差异度最小的两个簇，直到剩余 target 个
//
// 被合并掉的簇 size 置 0。
func wardMerge(ctx context.Context, units []unit, dist [][]float64, target int) error {
	active := 0
	for i := range units {
		if units[i].size > 0 {
			active++
		}
	}
	for step := 0; active > target; step++ {
		if step%64 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		bi, bj, best := -1, -1, math.Inf(1)
		for i := range units {
			if units[i].size == 0 {
				continue
			}
			row := dist[i]
			for j := i + 1; j < len(units); j++ {
				if units[j].size == 0 {
					continue
				}
				if row[j] < best {
					bi, bj, best = i, j, row[j]
				}
			}
		}
		if bi < 0 {
			break
		}

		// Lance–Williams：d(k, i∪j) = ((ni+nk)d(k,i) + (nj+nk)d(k,j) - nk·d(i,j)) / (ni+nj+nk)
		ni, nj := units[bi].size, units[bj].size
		for k := range units {
			if k == bi || k == bj || units[k].size == 0 {
				continue
			}
			nk := units[k].size
			d := ((ni+nk)*dist[k][bi] + (nj+nk)*dist[k][bj] - nk*dist[bi][bj]) / (ni + nj + nk)
			dist[k][bi], dist[bi][k] = d, d
		}
		units[bi].size = ni + nj
		units[bi].members = append(units[bi].members, units[bj].members...)
		units[bj].size = 0
		units[bj].members = nil
		active--
	}
	return nil
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
