package synthesis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/core/eventbus"
	"github.com/dep2p/go-hypergrid/internal/core/topology"
	"github.com/dep2p/go-hypergrid/internal/core/workerpool"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

func newTestEngine(t *testing.T, bus *eventbus.Bus) *Engine {
	t.Helper()
	planner, err := topology.NewPlanner(config.DefaultTopologyConfig(), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = planner.Close() })

	var e *Engine
	if bus != nil {
		e, err = NewEngine(config.DefaultSynthesisConfig(), planner, nil, bus)
	} else {
		e, err = NewEngine(config.DefaultSynthesisConfig(), planner, nil, nil)
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestSynthesizeMesh_SameSeedSameIDs(t *testing.T) {
	req := types.MeshRequirements{Seed: 7, ProxyCount: 10, Regions: map[string]float64{"EU": 1}}

	a, err := newTestEngine(t, nil).SynthesizeMesh(context.Background(), req)
	require.NoError(t, err)
	b, err := newTestEngine(t, nil).SynthesizeMesh(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, a.Proxies, 10)
	assert.Equal(t, a.ProxyIDs(), b.ProxyIDs())
	assert.Equal(t, a.Peerings, b.Peerings)
	assert.Equal(t, a.RoutingTables, b.RoutingTables)

	for _, id := range a.ProxyIDs() {
		assert.True(t, strings.HasPrefix(id, "px-eu-"), id)
	}
}

func TestSynthesizeMesh_DifferentSeed(t *testing.T) {
	e := newTestEngine(t, nil)
	a, err := e.SynthesizeMesh(context.Background(), types.MeshRequirements{Seed: 1, ProxyCount: 12, Regions: map[string]float64{"NA": 1}})
	require.NoError(t, err)
	b, err := e.SynthesizeMesh(context.Background(), types.MeshRequirements{Seed: 2, ProxyCount: 12, Regions: map[string]float64{"NA": 1}})
	require.NoError(t, err)
	assert.NotEqual(t, a.Key, b.Key)
	assert.NotEqual(t, a.ProxyIDs(), b.ProxyIDs())
}

func TestSynthesizeMesh_ProfilesAndRouting(t *testing.T) {
	e := newTestEngine(t, nil)
	mesh, err := e.SynthesizeMesh(context.Background(), types.MeshRequirements{
		Seed:       11,
		ProxyCount: 30,
		Regions:    map[string]float64{"EU": 0.5, "AS": 0.5},
	})
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, p := range mesh.Proxies {
		assert.False(t, ids[p.ID], "duplicate id %s", p.ID)
		ids[p.ID] = true
		assert.Greater(t, p.Latency.BaselineMs, 0.0)
		assert.Greater(t, p.Bandwidth.DownlinkMbps, 0.0)
		assert.LessOrEqual(t, p.Bandwidth.UplinkMbps, p.Bandwidth.DownlinkMbps)
		assert.True(t, p.Reliability > 0 && p.Reliability <= 1)
		assert.Len(t, p.Latency.RegionRTT, 7)
		assert.NotEmpty(t, p.Protocols)
	}
	assert.Equal(t, 15, mesh.Characteristics.Regions["EU"].Allocated)
	assert.Equal(t, 15, mesh.Characteristics.Regions["AS"].Allocated)

	seen := make(map[[2]string]bool)
	for _, pr := range mesh.Peerings {
		assert.Less(t, pr.Source, pr.Target)
		key := [2]string{pr.Source, pr.Target}
		assert.False(t, seen[key], "duplicate peering")
		seen[key] = true
	}
	for _, p := range mesh.Proxies {
		assert.LessOrEqual(t, len(p.LocalNetwork.PeeringPoints), mesh.Requirements.MaxPeers)
	}

	// 拓扑 3-连通，任意两点都可达
	require.Len(t, mesh.RoutingTables, 30)
	for src, table := range mesh.RoutingTables {
		assert.Len(t, table.Destinations, 29, src)
		for dst, set := range table.Destinations {
			require.NotEmpty(t, set.Primary)
			best := set.Primary[0].Cost
			first := make(map[string]bool)
			for _, r := range set.Primary {
				assert.Equal(t, src, r.Hops[0])
				assert.Equal(t, dst, r.Hops[len(r.Hops)-1])
				assert.LessOrEqual(t, r.Cost, best*(1+mesh.Requirements.ECMPTolerance)+1e-6)
				first[r.FirstHop()] = true
			}
			if set.Fallback != nil {
				assert.False(t, first[set.Fallback.FirstHop()], "fallback shares a primary first hop")
				assert.GreaterOrEqual(t, set.Fallback.Cost, best)
			}
		}
	}
}

func TestSynthesizeMesh_CapacityAbsorbed(t *testing.T) {
	e := newTestEngine(t, nil)
	inv, err := e.geo.Inventory("OC")
	require.NoError(t, err)

	mesh, err := e.SynthesizeMesh(context.Background(), types.MeshRequirements{
		Seed:       3,
		ProxyCount: inv.Locations + 5,
		Regions:    map[string]float64{"OC": 1},
	})
	require.NoError(t, err)
	assert.True(t, mesh.Characteristics.Degraded)
	require.NotEmpty(t, mesh.Characteristics.Degradations)
	assert.Contains(t, strings.Join(mesh.Characteristics.Degradations, ";"), "capacity")
	assert.Len(t, mesh.Proxies, inv.Locations+5)
}

func TestSynthesizeMesh_ReliabilityModels(t *testing.T) {
	e := newTestEngine(t, nil)
	for _, model := range []types.ReliabilityModel{types.ReliabilityCorrelated, types.ReliabilityCascading} {
		mesh, err := e.SynthesizeMesh(context.Background(), types.MeshRequirements{
			Seed:             5,
			ProxyCount:       40,
			Regions:          map[string]float64{"NA": 0.5, "SA": 0.5},
			ReliabilityModel: model,
		})
		require.NoError(t, err, model)
		require.Len(t, mesh.Characteristics.FailureScenarios, 1)

		failed := 0
		for _, p := range mesh.Proxies {
			if p.Failed {
				failed++
				_, ok := mesh.RoutingTables[p.ID]
				assert.False(t, ok, "failed proxy has a routing table")
			}
		}
		assert.Equal(t, failed, mesh.Characteristics.FailedProxies)
		assert.Less(t, failed, len(mesh.Proxies))
	}
}

func TestSynthesizeMesh_Validation(t *testing.T) {
	e := newTestEngine(t, nil)
	tests := []struct {
		name string
		req  types.MeshRequirements
	}{
		{"no proxies", types.MeshRequirements{Regions: map[string]float64{"EU": 1}}},
		{"no regions", types.MeshRequirements{ProxyCount: 3}},
		{"bad sum", types.MeshRequirements{ProxyCount: 3, Regions: map[string]float64{"EU": 0.3}}},
		{"unknown model", types.MeshRequirements{ProxyCount: 3, Regions: map[string]float64{"EU": 1}, ReliabilityModel: "chaos"}},
		{"negative weight", types.MeshRequirements{ProxyCount: 3, Regions: map[string]float64{"EU": 1},
			Weights: types.RoutingWeights{Latency: -1, Cost: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.SynthesizeMesh(context.Background(), tt.req)
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}
}

func TestEngine_PublishEmitsEvent(t *testing.T) {
	bus := eventbus.NewBus()
	defer bus.Close()
	e := newTestEngine(t, bus)

	sub, err := bus.Subscribe(new(types.MeshPublished))
	require.NoError(t, err)
	defer sub.Close()

	assert.Nil(t, e.Current())
	mesh, err := e.SynthesizeMesh(context.Background(), types.MeshRequirements{Seed: 1, ProxyCount: 8, Regions: map[string]float64{"ME": 1}})
	require.NoError(t, err)
	e.Publish(mesh)
	assert.Same(t, mesh, e.Current())

	select {
	case ev := <-sub.Out():
		assert.Same(t, mesh, ev.(types.MeshPublished).Mesh)
	case <-time.After(time.Second):
		t.Fatal("no MeshPublished event")
	}
}

func TestSynthesizeAsync(t *testing.T) {
	pool := workerpool.New(2)
	defer pool.Close()

	planner, err := topology.NewPlanner(config.DefaultTopologyConfig(), nil, pool)
	require.NoError(t, err)
	e, err := NewEngine(config.DefaultSynthesisConfig(), planner, pool, nil)
	require.NoError(t, err)
	defer e.Close()

	res := <-e.SynthesizeAsync(context.Background(), types.MeshRequirements{Seed: 9, ProxyCount: 6, Regions: map[string]float64{"AF": 1}})
	require.NoError(t, res.Err)
	assert.Len(t, res.Mesh.Proxies, 6)

	cached, err := e.SynthesizeMesh(context.Background(), types.MeshRequirements{Seed: 9, ProxyCount: 6, Regions: map[string]float64{"AF": 1}})
	require.NoError(t, err)
	assert.Same(t, res.Mesh, cached)
}

func TestMeshKey_Normalized(t *testing.T) {
	cfg := config.DefaultSynthesisConfig()
	a := normalize(types.MeshRequirements{Seed: 1, ProxyCount: 5, Regions: map[string]float64{"EU": 1}}, cfg)
	b := normalize(types.MeshRequirements{Seed: 1, ProxyCount: 5, Regions: map[string]float64{"EU": 1},
		Weights: cfg.Weights, MaxPeers: cfg.MaxPeers, Protocols: []string{"socks5", "https", "http"}}, cfg)
	assert.Equal(t, MeshKey(a), MeshKey(b))
}

// 调用方超时后共享合成放弃，不写缓存
func TestSynthesizeMesh_AbandonedWhenCallerLeaves(t *testing.T) {
	if testing.Short() {
		t.Skip("大规模合成")
	}
	e := newTestEngine(t, nil)
	req := types.MeshRequirements{Seed: 5, ProxyCount: 1500, Regions: map[string]float64{"NA": 0.5, "EU": 0.5}}
	key := MeshKey(normalize(req, e.cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.SynthesizeMesh(ctx, req)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.Eventually(t, func() bool { return e.group.Running() == 0 }, 30*time.Second, 5*time.Millisecond)
	_, cached := e.cache.Get(key)
	assert.False(t, cached)
}
