package synthesis

import (
	"container/heap"
	"context"
	"math"
	"sort"

	"github.com/dep2p/go-hypergrid/pkg/types"
)

// ============================================================================
//                              链路权重
// ============================================================================

// weigher 把多指标链路属性折算为单一权重
//
// 各指标先除以全图均值归一化：延迟与代价越小越好，带宽取倒数，
// 可靠性取 -ln(r)。
type weigher struct {
	w                          types.RoutingWeights
	latRef, bwRef, costRef, rr float64
}

func newWeigher(w types.RoutingWeights, adj [][]link) weigher {
	var lat, bw, cost, rel, n float64
	for _, ls := range adj {
		for _, l := range ls {
			lat += l.latency
			bw += l.bandwidth
			cost += l.cost
			rel += -math.Log(math.Max(l.reliability, 1e-9))
			n++
		}
	}
	ref := func(sum float64) float64 {
		if n == 0 || sum <= 0 {
			return 1
		}
		return sum / n
	}
	return weigher{w: w, latRef: ref(lat), bwRef: ref(bw), costRef: ref(cost), rr: ref(rel)}
}

func (wg weigher) weight(l link) float64 {
	bw := math.Max(l.bandwidth, 1e-6)
	return wg.w.Latency*l.latency/wg.latRef +
		wg.w.Bandwidth*wg.bwRef/bw +
		wg.w.Cost*l.cost/wg.costRef +
		wg.w.Reliability*(-math.Log(math.Max(l.reliability, 1e-9)))/wg.rr +
		1e-9
}

// ============================================================================
//                              Dijkstra
// ============================================================================

// shortestTree 单源最短路树
type shortestTree struct {
	dist []float64
	prev []int
}

// dijkstra 以 src 为源的多指标最短路
//
// 代价相同时选择下标较小的前驱，保证结果确定。
func dijkstra(adj [][]link, wg weigher, src int) shortestTree {
	n := len(adj)
	t := shortestTree{dist: make([]float64, n), prev: make([]int, n)}
	for i := range t.dist {
		t.dist[i] = math.Inf(1)
		t.prev[i] = -1
	}
	t.dist[src] = 0
	visited := make([]bool, n)

	pq := make(priorityQueue, 0)
	heap.Init(&pq)
	heap.Push(&pq, &item{node: src, priority: 0})

	for pq.Len() > 0 {
		cur := heap.Pop(&pq).(*item)
		u := cur.node
		if visited[u] {
			continue
		}
		visited[u] = true

		for _, l := range adj[u] {
			v := l.to
			if visited[v] {
				continue
			}
			nd := t.dist[u] + wg.weight(l)
			if nd < t.dist[v] || (nd == t.dist[v] && u < t.prev[v]) {
				t.dist[v] = nd
				t.prev[v] = u
				heap.Push(&pq, &item{node: v, priority: nd})
			}
		}
	}
	return t
}

// path 重建 src 到 dst 的节点序列，不可达返回 nil
func (t shortestTree) path(src, dst int) []int {
	if math.IsInf(t.dist[dst], 1) {
		return nil
	}
	var rev []int
	for x := dst; x != -1; x = t.prev[x] {
		rev = append(rev, x)
		if x == src {
			break
		}
	}
	out := make([]int, len(rev))
	for i, x := range rev {
		out[len(rev)-1-i] = x
	}
	return out
}

// item 优先队列元素
type item struct {
	node     int
	priority float64
	index    int
}

// priorityQueue 最小堆
type priorityQueue []*item

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority < pq[j].priority
	}
	return pq[i].node < pq[j].node
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x interface{}) {
	it := x.(*item)
	it.index = len(*pq)
	*pq = append(*pq, it)
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*pq = old[:n-1]
	return it
}

// ============================================================================
//                              路由表
// ============================================================================

// candidate 经由某个首跳到达目的地的路径
type candidate struct {
	hop  int
	cost float64
	path []int
}

// buildRoutingTables 为每个存活代理计算路由表
//
// 对目的地 t，源 s 的每个邻居 h 给出一条候选路径 s→h→…→t（h 到 t 的最短路不能回到 s）。
// 代价不超过最优值 (1+tolerance) 倍的候选构成等价多路径主集合（最多 maxPaths 条）；
// 首跳不在主集合中的最优候选作为备用路径。
func buildRoutingTables(ctx context.Context, proxies []types.ProxyNode, adj [][]link, weights types.RoutingWeights, tolerance float64, maxPaths int) (map[string]*types.RoutingTable, error) {
	n := len(proxies)
	wg := newWeigher(weights, adj)

	trees := make([]shortestTree, n)
	for s := 0; s < n; s++ {
		if s%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if proxies[s].Failed {
			continue
		}
		trees[s] = dijkstra(adj, wg, s)
	}

	ids := func(p []int) []string {
		out := make([]string, len(p))
		for i, x := range p {
			out[i] = proxies[x].ID
		}
		return out
	}

	tables := make(map[string]*types.RoutingTable, n)
	for s := 0; s < n; s++ {
		if proxies[s].Failed {
			continue
		}
		table := &types.RoutingTable{
			ProxyID:      proxies[s].ID,
			Destinations: make(map[string]types.RouteSet),
		}
		for t := 0; t < n; t++ {
			if t == s || proxies[t].Failed || math.IsInf(trees[s].dist[t], 1) {
				continue
			}

			var cands []candidate
			for _, l := range adj[s] {
				h := l.to
				w := wg.weight(l)
				if h == t {
					cands = append(cands, candidate{hop: h, cost: w, path: []int{s, t}})
					continue
				}
				rest := trees[h].path(h, t)
				if rest == nil || containsNode(rest, s) {
					continue
				}
				cands = append(cands, candidate{hop: h, cost: w + trees[h].dist[t], path: append([]int{s}, rest...)})
			}
			if len(cands) == 0 {
				continue
			}
			sort.SliceStable(cands, func(i, j int) bool {
				if cands[i].cost != cands[j].cost {
					return cands[i].cost < cands[j].cost
				}
				return proxies[cands[i].hop].ID < proxies[cands[j].hop].ID
			})

			best := cands[0].cost
			var set types.RouteSet
			primaryHops := make(map[int]bool)
			for _, c := range cands {
				if len(set.Primary) >= maxPaths || c.cost > best*(1+tolerance)+1e-12 {
					break
				}
				set.Primary = append(set.Primary, types.Route{Hops: ids(c.path), Cost: round6(c.cost)})
				primaryHops[c.hop] = true
			}
			for _, c := range cands {
				if !primaryHops[c.hop] {
					set.Fallback = &types.Route{Hops: ids(c.path), Cost: round6(c.cost)}
					break
				}
			}
			table.Destinations[proxies[t].ID] = set
		}
		tables[proxies[s].ID] = table
	}
	return tables, nil
}

func containsNode(p []int, x int) bool {
	for _, y := range p {
		if y == x {
			return true
		}
	}
	return false
}
