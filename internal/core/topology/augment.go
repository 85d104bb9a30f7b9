package topology

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/dep2p/go-hypergrid/pkg/types"
)

// fiedlerCandidates 每个分区参与分区间连边的候选节点数
const fiedlerCandidates = 6

// ============================================================================
//                              分区间连边
// ============================================================================

// addInterPartition 按 Fiedler 向量差值贪心加入分区间边
//
// 分区按 Fiedler 均值排序后首尾相连成环（k=2 时只有一对），每对分区之间
// 在各自 Fiedler 分量最极端的候选节点中选 (f_u - f_v)² 最大且尚未相连的一对。
func addInterPartition(g *graph, assign []int, fiedler []float64, k int) int {
	if k < 2 {
		return 0
	}
	members := make([][]int, k)
	mean := make([]float64, k)
	for u, p := range assign {
		members[p] = append(members[p], u)
		mean[p] += fiedler[u]
	}
	for p := range mean {
		if len(members[p]) > 0 {
			mean[p] /= float64(len(members[p]))
		}
	}

	order := make([]int, k)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return mean[order[i]] < mean[order[j]] })

	cands := make([][]int, k)
	for p := range members {
		ms := append([]int(nil), members[p]...)
		sort.SliceStable(ms, func(i, j int) bool {
			return math.Abs(fiedler[ms[i]]-mean[p]) > math.Abs(fiedler[ms[j]]-mean[p])
		})
		if len(ms) > fiedlerCandidates {
			ms = ms[:fiedlerCandidates]
		}
		cands[p] = ms
	}

	pairs := k
	if k == 2 {
		pairs = 1
	}
	added := 0
	for i := 0; i < pairs; i++ {
		a, b := order[i], order[(i+1)%k]
		bestU, bestV, best := -1, -1, -1.0
		for _, u := range cands[a] {
			for _, v := range cands[b] {
				if g.hasEdge(u, v) {
					continue
				}
				d := fiedler[u] - fiedler[v]
				if d*d > best {
					bestU, bestV, best = u, v, d*d
				}
			}
		}
		if bestU >= 0 && g.addEdge(bestU, bestV, types.EdgeInterPartition) {
			added++
		}
	}
	return added
}

// ============================================================================
//                              冗余加固
// ============================================================================

// reinforcer 冗余加固阶段的状态
type reinforcer struct {
	g          *graph
	rng        *rand.Rand
	target     int
	exactLimit int
	samples    int
	added      int
}

// connectivityTarget 返回 n 个节点时可达到的点连通度目标
func connectivityTarget(n, want int) int {
	if n-1 < want {
		return n - 1
	}
	return want
}

// reinforce 保证连通、最小度与最小点连通度，并为桥与割点加旁路边
func reinforce(ctx context.Context, rng *rand.Rand, g *graph, want, exactLimit, samples int) (int, error) {
	r := &reinforcer{
		g:          g,
		rng:        rng,
		target:     connectivityTarget(g.n, want),
		exactLimit: exactLimit,
		samples:    samples,
	}
	if g.n < 2 {
		return 0, nil
	}

	r.connectComponents()
	r.raiseMinDegree()
	r.bypassCuts()
	if err := ctx.Err(); err != nil {
		return r.added, err
	}

	if r.target >= 3 && g.n <= exactLimit {
		if err := r.exactTriconnect(ctx); err != nil {
			return r.added, err
		}
	}
	if r.target > 3 || (r.target == 3 && g.n > exactLimit) {
		if err := r.sampledConnect(ctx); err != nil {
			return r.added, err
		}
	}
	return r.added, nil
}

func (r *reinforcer) link(u, v int, kind types.EdgeKind) bool {
	if r.g.addEdge(u, v, kind) {
		r.added++
		return true
	}
	return false
}

// lowestDegree 返回集合中度数最小且不与 avoid 相连的节点
func (r *reinforcer) lowestDegree(set []int, avoid int) int {
	best := -1
	for _, u := range set {
		if u == avoid || (avoid >= 0 && r.g.hasEdge(u, avoid)) {
			continue
		}
		if best < 0 || r.g.degree(u) < r.g.degree(best) {
			best = u
		}
	}
	return best
}

// connectComponents 把各连通分量串成一条链
func (r *reinforcer) connectComponents() {
	comps := r.g.components(nil)
	for i := 1; i < len(comps); i++ {
		u := r.lowestDegree(comps[i-1], -1)
		v := r.lowestDegree(comps[i], -1)
		r.link(u, v, types.EdgeRedundancy)
	}
}

// raiseMinDegree 把度数低于目标的节点连到两跳内（否则任意）度数最小的非邻居
func (r *reinforcer) raiseMinDegree() {
	g := r.g
	for u := 0; u < g.n; u++ {
		for g.degree(u) < r.target {
			dist := g.bfs(u, nil)
			best := -1
			for v, d := range dist {
				if v == u || g.hasEdge(u, v) {
					continue
				}
				if best < 0 ||
					(d == 2 && dist[best] != 2) ||
					((d == 2) == (dist[best] == 2) && g.degree(v) < g.degree(best)) {
					best = v
				}
			}
			if best < 0 || !r.link(u, best, types.EdgeRedundancy) {
				break
			}
		}
	}
}

// bypassCuts 为桥与割点加入旁路边，直到图 2-连通
func (r *reinforcer) bypassCuts() {
	g := r.g
	for round := 0; round < g.n; round++ {
		cuts, bridges := cutStructure(g, nil)
		if len(cuts) == 0 && len(bridges) == 0 {
			return
		}
		changed := false
		for _, br := range bridges {
			u, v := br[0], br[1]
			a := r.lowestDegree(without(g.adj[u], v), v)
			if a >= 0 && r.link(a, v, types.EdgeBypass) {
				changed = true
				continue
			}
			b := r.lowestDegree(without(g.adj[v], u), u)
			if b >= 0 && r.link(u, b, types.EdgeBypass) {
				changed = true
			}
		}
		for _, c := range cuts {
			removed := make([]bool, g.n)
			removed[c] = true
			if r.joinComponents(removed, c) {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// joinComponents 在 removed 之外的各分量之间加旁路边，优先选择 pivot 的邻居
func (r *reinforcer) joinComponents(removed []bool, pivot int) bool {
	comps := r.g.components(removed)
	if len(comps) < 2 {
		return false
	}
	changed := false
	for i := 1; i < len(comps); i++ {
		u := r.anchor(comps[i-1], pivot)
		v := r.anchor(comps[i], pivot)
		if r.link(u, v, types.EdgeBypass) {
			changed = true
		}
	}
	return changed
}

// anchor 在分量中选择与 pivot 相邻且度数最小的节点，没有则选度数最小的节点
func (r *reinforcer) anchor(comp []int, pivot int) int {
	var near []int
	for _, u := range comp {
		if r.g.hasEdge(u, pivot) {
			near = append(near, u)
		}
	}
	if len(near) == 0 {
		near = comp
	}
	return r.lowestDegree(near, -1)
}

// exactTriconnect 精确保证 3-点连通
//
// 逐个删除节点 v，在剩余子图中找割点 a；G-{v,a} 的各分量之间补旁路边。
// 反复扫描直到一轮中没有任何改动。
func (r *reinforcer) exactTriconnect(ctx context.Context) error {
	g := r.g
	for round := 0; round < g.n; round++ {
		changed := false
		for v := 0; v < g.n; v++ {
			if v%64 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			removed := make([]bool, g.n)
			removed[v] = true
			if r.joinComponents(removed, v) {
				changed = true
			}
			cuts, _ := cutStructure(g, removed)
			for _, a := range cuts {
				removed[a] = true
				if r.joinComponents(removed, a) {
					changed = true
				}
				removed[a] = false
			}
		}
		if !changed {
			return nil
		}
	}
	return nil
}

// sampledConnect 基于采样点对的最大流提升点连通度
//
// 点对来源于度数最小的节点与随机节点；路径数不足时在最小点割两侧各取度数
// 最小的节点相连，直到该点对满足目标。
func (r *reinforcer) sampledConnect(ctx context.Context) error {
	g := r.g
	for _, pair := range samplePairs(r.rng, g, r.samples) {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, t := pair[0], pair[1]
		for tries := 0; tries < r.target; tries++ {
			if g.hasEdge(s, t) {
				break
			}
			flow, side := vertexDisjoint(g, s, t, r.target)
			if flow >= r.target {
				break
			}
			var a, b []int
			for u, sd := range side {
				switch sd {
				case sideSource:
					a = append(a, u)
				case sideSink:
					b = append(b, u)
				}
			}
			x := r.lowestDegree(a, -1)
			y := r.lowestDegree(b, x)
			if x < 0 || y < 0 || !r.link(x, y, types.EdgeRedundancy) {
				break
			}
		}
	}
	return nil
}

// samplePairs 生成不相邻的采样点对
func samplePairs(rng *rand.Rand, g *graph, count int) [][2]int {
	if g.n < 3 {
		return nil
	}
	byDegree := make([]int, g.n)
	for i := range byDegree {
		byDegree[i] = i
	}
	sort.SliceStable(byDegree, func(a, b int) bool { return g.degree(byDegree[a]) < g.degree(byDegree[b]) })

	var pairs [][2]int
	for i := 0; i < count*4 && len(pairs) < count; i++ {
		var s int
		if i%2 == 0 {
			s = byDegree[(i/2)%len(byDegree)]
		} else {
			s = rng.Intn(g.n)
		}
		t := rng.Intn(g.n)
		if s == t || g.hasEdge(s, t) {
			continue
		}
		pairs = append(pairs, [2]int{s, t})
	}
	return pairs
}

func without(s []int, x int) []int {
	out := make([]int, 0, len(s))
	for _, y := range s {
		if y != x {
			out = append(out, y)
		}
	}
	return out
}
