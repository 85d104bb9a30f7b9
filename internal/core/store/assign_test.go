package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-hypergrid/pkg/types"
)

// fakeMesh 内存网格源
type fakeMesh struct {
	mu          sync.Mutex
	current     *types.ProxyMesh
	synthesized []types.MeshRequirements
	err         error
}

func (f *fakeMesh) Current() *types.ProxyMesh {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeMesh) SynthesizeMesh(_ context.Context, req types.MeshRequirements) (*types.ProxyMesh, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synthesized = append(f.synthesized, req)
	if f.err != nil {
		return nil, f.err
	}
	var mesh types.ProxyMesh
	for r := range req.Regions {
		for i := 0; i < req.ProxyCount; i++ {
			mesh.Proxies = append(mesh.Proxies, types.ProxyNode{ID: r + "-" + string(rune('a'+i)), Region: r})
		}
	}
	return &mesh, nil
}

func (f *fakeMesh) Publish(mesh *types.ProxyMesh) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = mesh
}

func testMesh() *types.ProxyMesh {
	return &types.ProxyMesh{
		Key: "test",
		Proxies: []types.ProxyNode{
			{ID: "eu-1", Region: "EU"},
			{ID: "eu-2", Region: "EU"},
			{ID: "eu-3", Region: "EU", Failed: true},
			{ID: "us-1", Region: "US"},
		},
	}
}

func TestAssigner_RegionAffinityAndLoad(t *testing.T) {
	a := NewAssigner(&fakeMesh{current: testMesh()}, nil, 4)
	ctx := context.Background()

	got, err := a.Assign(ctx, types.SessionDefinition{Replicas: 1, RegionAffinity: "eu"})
	require.NoError(t, err)
	assert.Equal(t, []string{"eu-1"}, got)

	got, err = a.Assign(ctx, types.SessionDefinition{Replicas: 1, RegionAffinity: "eu"})
	require.NoError(t, err)
	assert.Equal(t, []string{"eu-2"}, got)

	// 故障代理不会被选中
	got, err = a.Assign(ctx, types.SessionDefinition{Replicas: 5, RegionAffinity: "EU"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"eu-1", "eu-2"}, got)
	assert.Equal(t, 2, a.Load("eu-1"))

	a.Release([]string{"eu-1", "eu-1"})
	assert.Zero(t, a.Load("eu-1"))

	// 没有匹配区域时退回全部区域
	got, err = a.Assign(ctx, types.SessionDefinition{Replicas: 1, RegionAffinity: "AP"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestAssigner_SynthesizesOnDemand(t *testing.T) {
	mesh := &fakeMesh{}
	a := NewAssigner(mesh, []string{"EU", "US"}, 2)
	ctx := context.Background()

	got, err := a.Assign(ctx, types.SessionDefinition{Replicas: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	require.Len(t, mesh.synthesized, 1)
	assert.Equal(t, 2, mesh.synthesized[0].ProxyCount)
	assert.NotNil(t, mesh.Current())

	// 已发布后不再合成
	_, err = a.Assign(ctx, types.SessionDefinition{Replicas: 1})
	require.NoError(t, err)
	assert.Len(t, mesh.synthesized, 1)
}

func TestAssigner_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewAssigner(&fakeMesh{}, nil, 2).Assign(ctx, types.SessionDefinition{})
	assert.ErrorIs(t, err, ErrNoProxies)

	boom := errors.New("boom")
	_, err = NewAssigner(&fakeMesh{err: boom}, []string{"EU"}, 2).Assign(ctx, types.SessionDefinition{})
	assert.ErrorIs(t, err, boom)

	dead := &types.ProxyMesh{Proxies: []types.ProxyNode{{ID: "x", Region: "EU", Failed: true}}}
	_, err = NewAssigner(&fakeMesh{current: dead}, nil, 2).Assign(ctx, types.SessionDefinition{})
	assert.ErrorIs(t, err, ErrNoProxies)
}

func TestStore_CreateAndScale(t *testing.T) {
	ctx := context.Background()
	a := NewAssigner(&fakeMesh{current: testMesh()}, nil, 4)
	s := newTestStore(t, testConfig(), WithAssigner(a))

	rec, err := s.Create(ctx, types.SessionDefinition{Target: "t", Replicas: 1, RegionAffinity: "EU"}, "ops")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, types.StateDraft, rec.State)
	assert.Equal(t, "ops", rec.WriterID)
	assert.Equal(t, []string{"eu-1"}, rec.ProxyIDs)

	stored, ok := s.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, rec, stored)

	scaled, err := s.Scale(ctx, rec.ID, 2, "ops")
	require.NoError(t, err)
	assert.Equal(t, types.StateScaling, scaled.State)
	assert.Equal(t, 2, scaled.Definition.Replicas)
	assert.ElementsMatch(t, []string{"eu-1", "eu-2"}, scaled.ProxyIDs)
	assert.Greater(t, scaled.Timestamp, int64(0))
	assert.Equal(t, 1, a.Load("eu-1"))

	_, err = s.Scale(ctx, rec.ID, -1, "ops")
	assert.ErrorIs(t, err, types.ErrValidation)
	_, err = s.Scale(ctx, "missing", 1, "ops")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, s.Delete(ctx, rec.ID, "ops"))
	assert.Zero(t, a.Load("eu-1"))
	assert.Zero(t, a.Load("eu-2"))
}

func TestStore_CreateWithoutAssigner(t *testing.T) {
	cfg := testConfig()
	s := newTestStore(t, cfg)

	rec, err := s.Create(context.Background(), types.SessionDefinition{Target: "t"}, "")
	require.NoError(t, err)
	assert.Empty(t, rec.ProxyIDs)
	assert.Equal(t, cfg.WriterID, rec.WriterID)
}
