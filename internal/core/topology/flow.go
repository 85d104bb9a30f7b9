package topology

// ============================================================================
//                              点不相交路径（节点拆分最大流）
// ============================================================================

const flowInf = 1 << 30

// flowNet 单位容量的残量网络
//
// 原图节点 u 拆为 in=2u 与 out=2u+1，in→out 容量为 1（源汇为无穷），
// 原图的每条边 {u,v} 变为 out(u)→in(v) 与 out(v)→in(u) 两条无穷容量弧。
type flowNet struct {
	head []int
	to   []int
	next []int
	cap  []int
}

func (f *flowNet) arc(u, v, c int) {
	f.to = append(f.to, v, u)
	f.cap = append(f.cap, c, 0)
	f.next = append(f.next, f.head[u], f.head[v])
	f.head[u] = len(f.to) - 2
	f.head[v] = len(f.to) - 1
}

func newSplitNet(g *graph, s, t int) *flowNet {
	f := &flowNet{head: make([]int, 2*g.n)}
	for i := range f.head {
		f.head[i] = -1
	}
	for u := 0; u < g.n; u++ {
		c := 1
		if u == s || u == t {
			c = flowInf
		}
		f.arc(2*u, 2*u+1, c)
	}
	for _, k := range g.order {
		u, v := splitKey(k)
		f.arc(2*u+1, 2*v, flowInf)
		f.arc(2*v+1, 2*u, flowInf)
	}
	return f
}

// augment 沿一条 BFS 增广路推送一个单位流，没有增广路返回 false
func (f *flowNet) augment(src, dst int) bool {
	prev := make([]int, len(f.head))
	for i := range prev {
		prev[i] = -1
	}
	visited := make([]bool, len(f.head))
	visited[src] = true
	queue := []int{src}
	for len(queue) > 0 && !visited[dst] {
		x := queue[0]
		queue = queue[1:]
		for e := f.head[x]; e >= 0; e = f.next[e] {
			y := f.to[e]
			if f.cap[e] > 0 && !visited[y] {
				visited[y] = true
				prev[y] = e
				queue = append(queue, y)
			}
		}
	}
	if !visited[dst] {
		return false
	}
	for y := dst; y != src; {
		e := prev[y]
		f.cap[e]--
		f.cap[e^1]++
		y = f.to[e^1]
	}
	return true
}

func (f *flowNet) reachable(src int) []bool {
	seen := make([]bool, len(f.head))
	seen[src] = true
	stack := []int{src}
	for len(stack) > 0 {
		x := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for e := f.head[x]; e >= 0; e = f.next[e] {
			if y := f.to[e]; f.cap[e] > 0 && !seen[y] {
				seen[y] = true
				stack = append(stack, y)
			}
		}
	}
	return seen
}

// 最小点割中节点的归属
const (
	sideSink int8 = iota
	sideSource
	sideCut
)

// vertexDisjoint 计算 s 与 t（不相邻）之间点不相交路径数，最多计到 limit
//
// 数量不足 limit 时同时返回最小点割划分：源侧、割点、汇侧。
func vertexDisjoint(g *graph, s, t, limit int) (int, []int8) {
	f := newSplitNet(g, s, t)
	flow := 0
	for flow < limit && f.augment(2*s+1, 2*t) {
		flow++
	}
	if flow >= limit {
		return flow, nil
	}
	seen := f.reachable(2*s + 1)
	side := make([]int8, g.n)
	for u := 0; u < g.n; u++ {
		switch {
		case u == s || seen[2*u+1]:
			side[u] = sideSource
		case seen[2*u]:
			side[u] = sideCut
		}
	}
	return flow, side
}

// ============================================================================
//                              Tarjan 割点与桥
// ============================================================================

// cutStructure 返回 removed 之外子图中的割点与桥
func cutStructure(g *graph, removed []bool) ([]int, [][2]int) {
	n := g.n
	disc := make([]int, n)
	low := make([]int, n)
	isCut := make([]bool, n)
	for i := range disc {
		disc[i] = -1
	}
	var (
		bridges [][2]int
		timer   int
		visit   func(u, parent int)
	)
	visit = func(u, parent int) {
		disc[u] = timer
		low[u] = timer
		timer++
		children := 0
		for _, v := range g.adj[u] {
			if removed != nil && removed[v] {
				continue
			}
			if disc[v] < 0 {
				children++
				visit(v, u)
				if low[v] < low[u] {
					low[u] = low[v]
				}
				if parent >= 0 && low[v] >= disc[u] {
					isCut[u] = true
				}
				if low[v] > disc[u] {
					bridges = append(bridges, [2]int{u, v})
				}
			} else if v != parent && disc[v] < low[u] {
				low[u] = disc[v]
			}
		}
		if parent < 0 && children > 1 {
			isCut[u] = true
		}
	}
	for u := 0; u < n; u++ {
		if disc[u] < 0 && (removed == nil || !removed[u]) {
			visit(u, -1)
		}
	}
	var cuts []int
	for u, c := range isCut {
		if c {
			cuts = append(cuts, u)
		}
	}
	return cuts, bridges
}
