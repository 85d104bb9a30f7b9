package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"

	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

// Assigner 为会话分配代理
//
// 从当前网格中选择负载最低的存活代理，优先满足区域亲和；
// 没有已发布的网格时按需合成一个并发布。
type Assigner struct {
	mesh         pkgif.MeshSource
	regions      []string
	defaultCount int

	mu   sync.Mutex
	load map[string]int
}

// NewAssigner 创建分配器
//
// regions 为按需合成网格时使用的区域，权重均等。
func NewAssigner(mesh pkgif.MeshSource, regions []string, defaultCount int) *Assigner {
	return &Assigner{
		mesh:         mesh,
		regions:      append([]string(nil), regions...),
		defaultCount: defaultCount,
		load:         make(map[string]int),
	}
}

// Assign 为会话定义选择代理
func (a *Assigner) Assign(ctx context.Context, def types.SessionDefinition) ([]string, error) {
	mesh, err := a.currentMesh(ctx, def)
	if err != nil {
		return nil, err
	}

	candidates := liveProxies(mesh, def.RegionAffinity)
	if len(candidates) == 0 && def.RegionAffinity != "" {
		candidates = liveProxies(mesh, "")
	}
	if len(candidates) == 0 {
		return nil, ErrNoProxies
	}

	n := min(max(def.Replicas, 1), len(candidates))

	a.mu.Lock()
	defer a.mu.Unlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		li, lj := a.load[candidates[i]], a.load[candidates[j]]
		if li != lj {
			return li < lj
		}
		return candidates[i] < candidates[j]
	})
	out := append([]string(nil), candidates[:n]...)
	for _, id := range out {
		a.load[id]++
	}
	return out, nil
}

// Release 释放会话占用的代理
func (a *Assigner) Release(ids []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range ids {
		if a.load[id] <= 1 {
			delete(a.load, id)
			continue
		}
		a.load[id]--
	}
}

func (a *Assigner) reserve(ids []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range ids {
		a.load[id]++
	}
}

// Load 返回代理当前承载的会话数
func (a *Assigner) Load(proxyID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.load[proxyID]
}

func (a *Assigner) currentMesh(ctx context.Context, def types.SessionDefinition) (*types.ProxyMesh, error) {
	if mesh := a.mesh.Current(); mesh != nil {
		return mesh, nil
	}

	regions := a.regions
	if def.RegionAffinity != "" {
		regions = []string{strings.ToUpper(def.RegionAffinity)}
	}
	if len(regions) == 0 {
		return nil, ErrNoProxies
	}
	req := types.MeshRequirements{
		ProxyCount: a.defaultCount,
		Regions:    make(map[string]float64, len(regions)),
	}
	for _, r := range regions {
		req.Regions[r] = 1
	}
	req.Seed = int64(murmur3.Sum64([]byte(strings.Join(regions, ","))) >> 1)

	log.Info("没有已发布的网格，按需合成", "regions", regions, "proxies", req.ProxyCount)
	mesh, err := a.mesh.SynthesizeMesh(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("store: synthesize mesh for assignment: %w", err)
	}
	a.mesh.Publish(mesh)
	return mesh, nil
}

// liveProxies 返回未故障的代理 ID，region 为空表示不限区域
func liveProxies(mesh *types.ProxyMesh, region string) []string {
	var out []string
	for i := range mesh.Proxies {
		p := &mesh.Proxies[i]
		if p.Failed {
			continue
		}
		if region != "" && !strings.EqualFold(p.Region, region) {
			continue
		}
		out = append(out, p.ID)
	}
	return out
}

// ============================================================================
//                              会话层钩子
// ============================================================================

// Create 创建会话：分配 ID 与代理，状态为 draft
func (s *Store) Create(ctx context.Context, def types.SessionDefinition, writer string) (types.SessionRecord, error) {
	if err := s.checkWrite(ctx); err != nil {
		return types.SessionRecord{}, err
	}
	if def.Replicas < 0 {
		return types.SessionRecord{}, types.NewValidationError("definition.replicas", "must not be negative")
	}

	rec := types.SessionRecord{
		ID:         uuid.NewString(),
		Definition: def,
		State:      types.StateDraft,
		WriterID:   writer,
	}
	if s.assigner != nil {
		proxies, err := s.assigner.Assign(ctx, def)
		if err != nil {
			return types.SessionRecord{}, err
		}
		rec.ProxyIDs = proxies
	}

	out, err := s.upsert(ctx, rec)
	if err != nil && s.assigner != nil {
		s.assigner.Release(rec.ProxyIDs)
	}
	return out, err
}

// Scale 调整副本数并重新分配代理，状态为 scaling
func (s *Store) Scale(ctx context.Context, id string, replicas int, writer string) (types.SessionRecord, error) {
	if err := s.checkWrite(ctx); err != nil {
		return types.SessionRecord{}, err
	}
	if replicas < 0 {
		return types.SessionRecord{}, types.NewValidationError("replicas", "must not be negative")
	}
	cur, ok := s.Get(id)
	if !ok {
		return types.SessionRecord{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	next := cur.Clone()
	next.Definition.Replicas = replicas
	next.State = types.StateScaling
	next.WriterID = writer
	next.Timestamp = 0

	if s.assigner != nil {
		s.assigner.Release(cur.ProxyIDs)
		proxies, err := s.assigner.Assign(ctx, next.Definition)
		if err != nil {
			s.assigner.reserve(cur.ProxyIDs)
			return types.SessionRecord{}, err
		}
		next.ProxyIDs = proxies
	}
	return s.upsert(ctx, next)
}
