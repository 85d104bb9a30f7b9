package topology

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spaolacci/murmur3"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/core/geo"
	"github.com/dep2p/go-hypergrid/internal/core/workerpool"
	"github.com/dep2p/go-hypergrid/internal/util/flight"
	"github.com/dep2p/go-hypergrid/internal/util/logger"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

var log = logger.Logger("topology")

// weightTolerance 区域权重之和允许的偏差
const weightTolerance = 0.01

// PlanResult 异步规划结果
type PlanResult struct {
	Topology *types.Topology
	Err      error
}

// Planner 拓扑规划器
//
// 并发安全。相同 (scale, distribution) 的结果缓存在 LRU 中，
// 并发的相同请求只计算一次。
type Planner struct {
	cfg   config.TopologyConfig
	geo   *geo.Model
	pool  *workerpool.Pool
	cache *lru.Cache[string, *types.Topology]
	group flight.Group

	// afterPhase 每个阶段结束时调用，测试用
	afterPhase func(ctx context.Context, phase int)

	closed atomic.Bool
}

// NewPlanner 创建规划器
//
// pool 为 nil 时 PlanAsync 在独立 goroutine 中执行。
func NewPlanner(cfg config.TopologyConfig, model *geo.Model, pool *workerpool.Pool) (*Planner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("topology config: %w", err)
	}
	if model == nil {
		model = geo.New(geo.DefaultCacheSize)
	}
	cache, err := lru.New[string, *types.Topology](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Planner{cfg: cfg, geo: model, pool: pool, cache: cache}, nil
}

// Geo 返回规划器使用的地理参考模型
func (p *Planner) Geo() *geo.Model {
	return p.geo
}

// Close 关闭规划器并清空缓存
func (p *Planner) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		p.cache.Purge()
	}
	return nil
}

// ============================================================================
//                              请求校验与键
// ============================================================================

// validateRequest 校验规模与区域分布
func (p *Planner) validateRequest(scale int, dist map[string]float64) error {
	if scale <= 0 {
		return types.NewValidationError("scale", "must be positive, got %d", scale)
	}
	if len(dist) == 0 {
		return types.NewValidationError("distribution", "must not be empty")
	}
	sum := 0.0
	for code, w := range dist {
		if math.IsNaN(w) || w < 0 {
			return types.NewValidationError("distribution", "weight of %q is negative", code)
		}
		if _, ok := p.geo.Region(code); !ok {
			return types.NewValidationError("distribution", "unknown region %q", code)
		}
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance {
		return types.NewValidationError("distribution", "weights sum to %.4f, want 1", sum)
	}
	return nil
}

// TopologyKey 返回 (scale, distribution) 的确定性键与派生种子
func TopologyKey(scale int, dist map[string]float64) (string, int64) {
	codes := make([]string, 0, len(dist))
	for code := range dist {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var b strings.Builder
	fmt.Fprintf(&b, "%d", scale)
	for _, code := range codes {
		fmt.Fprintf(&b, "|%s=%.6f", code, dist[code])
	}
	h1, h2 := murmur3.Sum128([]byte(b.String()))
	return fmt.Sprintf("%016x%016x", h1, h2), int64(h1 & math.MaxInt64)
}

// ============================================================================
//                              规划
// ============================================================================

// PlanTopology 规划候选拓扑
//
// 校验失败返回 ValidationError；ctx 取消时返回 ctx.Err()。
// 特征值求解未收敛不会失败，而是返回 Quality=degraded 的结果。
func (p *Planner) PlanTopology(ctx context.Context, scale int, dist map[string]float64) (*types.Topology, error) {
	if p.closed.Load() {
		return nil, ErrPlannerClosed
	}
	if err := p.validateRequest(scale, dist); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, seed := TopologyKey(scale, dist)
	if topo, ok := p.cache.Get(key); ok {
		return topo, nil
	}

	// 所有等待的调用方都取消后，共享计算在下一个阶段边界放弃
	v, err := p.group.Do(ctx, key, func(ctx context.Context) (any, error) {
		if topo, ok := p.cache.Get(key); ok {
			return topo, nil
		}
		topo, err := p.plan(ctx, key, seed, scale, dist)
		if err != nil {
			return nil, err
		}
		p.cache.Add(key, topo)
		return topo, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Topology), nil
}

// phaseDone 阶段边界：检查取消
func (p *Planner) phaseDone(ctx context.Context, phase int) error {
	if p.afterPhase != nil {
		p.afterPhase(ctx, phase)
	}
	return ctx.Err()
}

// planJob 在工作池上执行的规划任务
type planJob struct {
	planner *Planner
	scale   int
	dist    map[string]float64
}

func (j planJob) Run(ctx context.Context) (any, error) {
	return j.planner.PlanTopology(ctx, j.scale, j.dist)
}

// PlanAsync 在工作池上异步规划，结果通道只发送一次
func (p *Planner) PlanAsync(ctx context.Context, scale int, dist map[string]float64) <-chan PlanResult {
	out := make(chan PlanResult, 1)
	job := planJob{planner: p, scale: scale, dist: copyDist(dist)}

	if p.pool == nil {
		go func() {
			defer close(out)
			v, err := job.Run(ctx)
			topo, _ := v.(*types.Topology)
			out <- PlanResult{Topology: topo, Err: err}
		}()
		return out
	}

	go func() {
		defer close(out)
		topo, err := workerpool.Await[*types.Topology](ctx, mustSubmit(ctx, p.pool, job))
		out <- PlanResult{Topology: topo, Err: err}
	}()
	return out
}

// mustSubmit 提交任务，失败时返回携带错误的结果通道
func mustSubmit(ctx context.Context, pool *workerpool.Pool, job workerpool.Job) <-chan workerpool.Result {
	ch, err := pool.Submit(ctx, job)
	if err != nil {
		failed := make(chan workerpool.Result, 1)
		failed <- workerpool.Result{Err: err}
		close(failed)
		return failed
	}
	return ch
}

func copyDist(dist map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(dist))
	for k, v := range dist {
		out[k] = v
	}
	return out
}

// plan 执行全部规划阶段
func (p *Planner) plan(ctx context.Context, key string, seed int64, scale int, dist map[string]float64) (*types.Topology, error) {
	start := time.Now()
	rng := rand.New(rand.NewSource(seed))
	topo := &types.Topology{
		Key:          key,
		Scale:        scale,
		Distribution: copyDist(dist),
		Quality:      types.QualityOK,
		CreatedAt:    start,
	}

	// 1. 构建
	codes, counts := allocate(scale, dist)
	regionOf := labels(rng, codes, counts)
	g := buildScaleFree(rng, regionOf, p.cfg.AttachmentEdges)
	addLongRange(rng, g, regionOf, int(math.Ceil(math.Log2(float64(max(scale, 2))))))
	if err := p.phaseDone(ctx, 1); err != nil {
		return nil, err
	}

	// 2. 层次聚类
	clusterOf, clusters, err := clusterNodes(ctx, rng, g, p.cfg.ExactDistanceLimit, p.cfg.Landmarks)
	if err != nil {
		return nil, err
	}
	if err := p.phaseDone(ctx, 2); err != nil {
		return nil, err
	}

	// 3. 谱分区
	part, err := spectralPartition(ctx, rng, g, p.cfg)
	if err != nil {
		return nil, err
	}
	if part.warning != nil {
		topo.Quality = types.QualityDegraded
		topo.Warnings = append(topo.Warnings, part.warning.Error())
		log.Warn("谱分区未收敛，退回度启发式分区",
			"key", key,
			"iterations", part.warning.Iterations,
			"residual", part.warning.Residual)
	}
	if err := p.phaseDone(ctx, 3); err != nil {
		return nil, err
	}

	// 4. 连通度优化
	addInterPartition(g, part.assign, part.fiedler, part.k)

	// 5. 冗余加固
	if _, err := reinforce(ctx, rng, g, p.cfg.MinVertexConnectivity, p.cfg.ExactDistanceLimit, p.cfg.ConnectivitySamples); err != nil {
		return nil, err
	}
	if err := p.phaseDone(ctx, 5); err != nil {
		return nil, err
	}

	// 6. 指标
	metrics, warn, err := measure(ctx, rng, g, p.cfg)
	if err != nil {
		return nil, err
	}
	if warn != nil {
		topo.Warnings = append(topo.Warnings, warn.Error())
	}
	topo.Metrics = metrics

	topo.Nodes = make([]types.PlannedNode, g.n)
	for u := 0; u < g.n; u++ {
		topo.Nodes[u] = types.PlannedNode{
			Index:     u,
			Region:    regionOf[u],
			Degree:    g.degree(u),
			Cluster:   clusterOf[u],
			Partition: part.assign[u],
		}
	}
	topo.Edges = materialize(g, regionOf, p.geo, uint64(seed))
	topo.Clusters = clusters
	topo.Partitions = partitions(g, part.assign, part.k)

	log.Debug("拓扑规划完成",
		"key", key,
		"nodes", g.n,
		"edges", g.edgeCount(),
		"partitions", part.k,
		"swaps", part.swaps,
		"quality", topo.Quality,
		"elapsed", time.Since(start))
	return topo, nil
}
