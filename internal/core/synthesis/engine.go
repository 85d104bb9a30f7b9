package synthesis

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/core/geo"
	"github.com/dep2p/go-hypergrid/internal/core/topology"
	"github.com/dep2p/go-hypergrid/internal/core/workerpool"
	"github.com/dep2p/go-hypergrid/internal/util/flight"
	"github.com/dep2p/go-hypergrid/internal/util/logger"
	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

var log = logger.Logger("synthesis")

// MeshResult 异步合成结果
type MeshResult struct {
	Mesh *types.ProxyMesh
	Err  error
}

// Engine 代理网格合成引擎
//
// 并发安全。合成结果按需求键缓存；当前网格以原子指针发布，
// 读取方总是看到完整的一代网格。
type Engine struct {
	cfg     config.SynthesisConfig
	planner *topology.Planner
	geo     *geo.Model
	pool    *workerpool.Pool
	cache   *lru.Cache[string, *types.ProxyMesh]
	group   flight.Group
	current atomic.Pointer[types.ProxyMesh]
	emitter pkgif.Emitter

	closed atomic.Bool
}

var _ pkgif.MeshSource = (*Engine)(nil)

// NewEngine 创建合成引擎
//
// bus 为 nil 时 Publish 只更新当前网格，不发送事件。
func NewEngine(cfg config.SynthesisConfig, planner *topology.Planner, pool *workerpool.Pool, bus pkgif.EventBus) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("synthesis config: %w", err)
	}
	if planner == nil {
		return nil, fmt.Errorf("synthesis: planner is required")
	}
	cache, err := lru.New[string, *types.ProxyMesh](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:     cfg,
		planner: planner,
		geo:     planner.Geo(),
		pool:    pool,
		cache:   cache,
	}
	if bus != nil {
		em, err := bus.Emitter(new(types.MeshPublished), pkgif.Stateful())
		if err != nil {
			return nil, fmt.Errorf("synthesis: create emitter: %w", err)
		}
		e.emitter = em
	}
	return e, nil
}

// Close 关闭引擎
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.cache.Purge()
	if e.emitter != nil {
		return e.emitter.Close()
	}
	return nil
}

// ============================================================================
//                              发布
// ============================================================================

// Current 返回当前已发布的网格
func (e *Engine) Current() *types.ProxyMesh {
	return e.current.Load()
}

// Publish 发布网格并发送 MeshPublished 事件
func (e *Engine) Publish(mesh *types.ProxyMesh) {
	if mesh == nil {
		return
	}
	e.current.Store(mesh)
	if e.emitter != nil {
		if err := e.emitter.Emit(types.MeshPublished{Mesh: mesh}); err != nil {
			log.Debug("发送网格发布事件失败", "key", mesh.Key, "err", err)
		}
	}
	log.Info("网格已发布",
		"key", mesh.Key,
		"proxies", len(mesh.Proxies),
		"peerings", len(mesh.Peerings),
		"degraded", mesh.Characteristics.Degraded)
}

// ============================================================================
//                              合成
// ============================================================================

// SynthesizeMesh 按需求合成网格
//
// 需求非法时返回 ValidationError；库存不足不会失败，而是记录在 Characteristics 中。
func (e *Engine) SynthesizeMesh(ctx context.Context, req types.MeshRequirements) (*types.ProxyMesh, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	req = normalize(req, e.cfg)
	if err := validate(req, e.geo); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := MeshKey(req)
	if mesh, ok := e.cache.Get(key); ok {
		return mesh, nil
	}

	v, err := e.group.Do(ctx, key, func(ctx context.Context) (any, error) {
		if mesh, ok := e.cache.Get(key); ok {
			return mesh, nil
		}
		mesh, err := e.synthesize(ctx, req, key)
		if err != nil {
			return nil, err
		}
		e.cache.Add(key, mesh)
		return mesh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.ProxyMesh), nil
}

// synthesizeJob 在工作池上执行的合成任务
type synthesizeJob struct {
	engine *Engine
	req    types.MeshRequirements
}

func (j synthesizeJob) Run(ctx context.Context) (any, error) {
	return j.engine.SynthesizeMesh(ctx, j.req)
}

// SynthesizeAsync 在工作池上异步合成
func (e *Engine) SynthesizeAsync(ctx context.Context, req types.MeshRequirements) <-chan MeshResult {
	out := make(chan MeshResult, 1)
	job := synthesizeJob{engine: e, req: req}
	go func() {
		defer close(out)
		if e.pool == nil {
			v, err := job.Run(ctx)
			mesh, _ := v.(*types.ProxyMesh)
			out <- MeshResult{Mesh: mesh, Err: err}
			return
		}
		ch, err := e.pool.Submit(ctx, job)
		if err != nil {
			out <- MeshResult{Err: err}
			return
		}
		mesh, err := workerpool.Await[*types.ProxyMesh](ctx, ch)
		out <- MeshResult{Mesh: mesh, Err: err}
	}()
	return out
}

// synthesize 执行一次完整合成
func (e *Engine) synthesize(ctx context.Context, req types.MeshRequirements, key string) (*types.ProxyMesh, error) {
	start := time.Now()
	topo, err := e.planner.PlanTopology(ctx, req.ProxyCount, req.Regions)
	if err != nil {
		return nil, fmt.Errorf("plan topology: %w", err)
	}

	rng := rand.New(rand.NewSource(meshSeed(req, key)))
	proxies, chars, err := buildProxies(rng, e.geo, topo, req, key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	applyCongestion(rng, proxies, topo, e.cfg.BackboneCapacityMbps, &chars)
	injectFailures(rng, proxies, topo, req.ReliabilityModel, &chars)
	summarize(proxies, &chars)

	peerings := selectPeerings(proxies, req.MaxPeers)
	adj := buildLinks(proxies, topo, peerings)
	tables, err := buildRoutingTables(ctx, proxies, adj, req.Weights, req.ECMPTolerance, e.cfg.MaxECMPPaths)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, ErrEmptyMesh
	}

	mesh := &types.ProxyMesh{
		Key:             key,
		Requirements:    req,
		Proxies:         proxies,
		Topology:        topo,
		Peerings:        peerings,
		RoutingTables:   tables,
		Characteristics: chars,
		CreatedAt:       time.Now(),
	}
	log.Debug("网格合成完成",
		"key", key,
		"proxies", len(proxies),
		"peerings", len(peerings),
		"failed", chars.FailedProxies,
		"elapsed", time.Since(start))
	return mesh, nil
}
