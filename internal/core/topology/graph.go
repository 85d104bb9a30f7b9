package topology

import (
	"sort"

	"github.com/dep2p/go-hypergrid/pkg/types"
)

// ============================================================================
//                              graph - 无向简单图
// ============================================================================

// graph 以整数下标表示节点的无向简单图
//
// 邻接表保持插入顺序，配合确定性的随机数保证规划结果可复现。
type graph struct {
	n     int
	adj   [][]int
	edges map[uint64]types.EdgeKind
	order []uint64
}

func newGraph(n int) *graph {
	return &graph{
		n:     n,
		adj:   make([][]int, n),
		edges: make(map[uint64]types.EdgeKind),
	}
}

func edgeKey(u, v int) uint64 {
	if u > v {
		u, v = v, u
	}
	return uint64(u)<<32 | uint64(v)
}

func splitKey(k uint64) (int, int) {
	return int(k >> 32), int(k & 0xffffffff)
}

// addEdge 添加边，自环或重复边返回 false
func (g *graph) addEdge(u, v int, kind types.EdgeKind) bool {
	if u == v {
		return false
	}
	k := edgeKey(u, v)
	if _, ok := g.edges[k]; ok {
		return false
	}
	g.edges[k] = kind
	g.order = append(g.order, k)
	g.adj[u] = append(g.adj[u], v)
	g.adj[v] = append(g.adj[v], u)
	return true
}

func (g *graph) hasEdge(u, v int) bool {
	_, ok := g.edges[edgeKey(u, v)]
	return ok
}

func (g *graph) degree(u int) int {
	return len(g.adj[u])
}

func (g *graph) edgeCount() int {
	return len(g.order)
}

func (g *graph) minDegree() int {
	if g.n == 0 {
		return 0
	}
	m := g.degree(0)
	for u := 1; u < g.n; u++ {
		if d := g.degree(u); d < m {
			m = d
		}
	}
	return m
}

// bfs 返回从 src 出发的跳数距离，不可达为 -1
//
// removed 中的节点视为不存在。
func (g *graph) bfs(src int, removed []bool) []int {
	dist := make([]int, g.n)
	for i := range dist {
		dist[i] = -1
	}
	if removed != nil && removed[src] {
		return dist
	}
	dist[src] = 0
	queue := []int{src}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range g.adj[u] {
			if dist[v] >= 0 || (removed != nil && removed[v]) {
				continue
			}
			dist[v] = dist[u] + 1
			queue = append(queue, v)
		}
	}
	return dist
}

// components 返回连通分量（每个分量内按下标升序，分量按最小下标排序）
func (g *graph) components(removed []bool) [][]int {
	seen := make([]bool, g.n)
	var comps [][]int
	for s := 0; s < g.n; s++ {
		if seen[s] || (removed != nil && removed[s]) {
			continue
		}
		var comp []int
		stack := []int{s}
		seen[s] = true
		for len(stack) > 0 {
			u := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, u)
			for _, v := range g.adj[u] {
				if seen[v] || (removed != nil && removed[v]) {
					continue
				}
				seen[v] = true
				stack = append(stack, v)
			}
		}
		sort.Ints(comp)
		comps = append(comps, comp)
	}
	return comps
}

func (g *graph) connected() bool {
	return g.n <= 1 || len(g.components(nil)) == 1
}

// commonNeighbors 统计 u 与 v 的公共邻居数
func (g *graph) commonNeighbors(u, v int) int {
	a, b := g.adj[u], g.adj[v]
	if len(a) > len(b) {
		a, b = b, a
	}
	set := make(map[int]struct{}, len(a))
	for _, x := range a {
		set[x] = struct{}{}
	}
	n := 0
	for _, y := range b {
		if _, ok := set[y]; ok {
			n++
		}
	}
	return n
}
