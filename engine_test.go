package hypergrid

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/core/eventbus"
	"github.com/dep2p/go-hypergrid/internal/core/storage"
	"github.com/dep2p/go-hypergrid/internal/core/store"
	"github.com/dep2p/go-hypergrid/internal/core/telemetry"
	"github.com/dep2p/go-hypergrid/internal/protocol/stream"
	"github.com/dep2p/go-hypergrid/internal/protocol/wire"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Storage.Backend = config.BackendMemory
	cfg.Transport.ListenAddr = "127.0.0.1:0"
	return cfg
}

func startEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	eng, err := New(append([]Option{WithConfig(testConfig())}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { _ = eng.Stop(context.Background()) })
	return eng
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Store.WriterID = ""
	_, err := New(WithConfig(cfg))
	assert.Error(t, err)

	_, err = New(WithConfig(nil))
	assert.Error(t, err)
}

func TestEngine_Accessors(t *testing.T) {
	eng, err := New(WithConfig(testConfig()), WithListenAddr(""))
	require.NoError(t, err)
	defer eng.Stop(context.Background())

	assert.NotNil(t, eng.Store())
	assert.NotNil(t, eng.Planner())
	assert.NotNil(t, eng.Synthesizer())
	assert.NotNil(t, eng.Telemetry())
	assert.NotNil(t, eng.Hub())
	assert.NotNil(t, eng.Render())
	assert.NotNil(t, eng.Geo())
	assert.NotNil(t, eng.EventBus())
	assert.Empty(t, eng.Addr())
}

func TestEngine_StartStop(t *testing.T) {
	eng, err := New(WithConfig(testConfig()))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	assert.ErrorIs(t, eng.Start(ctx), ErrAlreadyStarted)
	assert.NotEmpty(t, eng.Addr())

	require.NoError(t, eng.Stop(ctx))
	require.NoError(t, eng.Stop(ctx))
	assert.ErrorIs(t, eng.Start(ctx), ErrEngineClosed)
}

func TestEngine_CreateAssignsFromPublishedMesh(t *testing.T) {
	ctx := context.Background()
	eng := startEngine(t)

	mesh, err := eng.Synthesizer().SynthesizeMesh(ctx, types.MeshRequirements{
		Seed:       7,
		ProxyCount: 10,
		Regions:    map[string]float64{"EU": 1},
	})
	require.NoError(t, err)
	eng.Synthesizer().Publish(mesh)

	rec, err := eng.Store().Create(ctx, types.SessionDefinition{
		Target:         "https://example.com",
		RegionAffinity: "EU",
		Replicas:       2,
	}, "")
	require.NoError(t, err)
	assert.Len(t, rec.ProxyIDs, 2)
	assert.Equal(t, eng.Config().Store.WriterID, rec.WriterID)

	got, ok := eng.Store().Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, rec.ProxyIDs, got.ProxyIDs)
}

func TestEngine_ObserverReceivesSnapshotAndMesh(t *testing.T) {
	ctx := context.Background()
	eng := startEngine(t)
	require.NoError(t, eng.Store().Upsert(ctx, types.SessionRecord{
		ID:         "s1",
		Definition: types.SessionDefinition{Target: "https://s1.example", Replicas: 1},
		State:      types.StateSteady,
	}))

	url := "ws://" + eng.Addr() + eng.Config().Transport.Path
	c, err := stream.NewClient(url, eng.Config().Transport)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Connect(ctx))

	ev := nextEnvelope(t, c)
	require.Equal(t, wire.EventSnapshot, ev.Type)
	var snap wire.SnapshotPayload
	require.NoError(t, ev.Decode(&snap))
	require.Len(t, snap.Sessions, 1)
	assert.Equal(t, "s1", snap.Sessions[0].ID)

	mesh, err := eng.Synthesizer().SynthesizeMesh(ctx, types.MeshRequirements{
		Seed:       3,
		ProxyCount: 8,
		Regions:    map[string]float64{"NA": 1},
	})
	require.NoError(t, err)
	eng.Synthesizer().Publish(mesh)

	ev = nextEnvelope(t, c)
	require.Equal(t, wire.EventMeshUpdate, ev.Type)
	var summary types.MeshSummary
	require.NoError(t, ev.Decode(&summary))
	assert.Equal(t, mesh.Key, summary.Key)
	assert.Equal(t, 8, summary.Proxies)
}

// 超过压缩阈值的快照以压缩帧送达默认客户端
func TestEngine_ObserverReceivesCompressedSnapshot(t *testing.T) {
	ctx := context.Background()
	eng := startEngine(t)
	for i := 0; i < 20; i++ {
		require.NoError(t, eng.Store().Upsert(ctx, types.SessionRecord{
			ID:         fmt.Sprintf("s%02d", i),
			Definition: types.SessionDefinition{Target: fmt.Sprintf("https://s%02d.example/landing", i), Replicas: 1},
			State:      types.StateSteady,
		}))
	}

	url := "ws://" + eng.Addr() + eng.Config().Transport.Path
	c, err := stream.NewClient(url, eng.Config().Transport)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Connect(ctx))

	ev := nextEnvelope(t, c)
	require.Equal(t, wire.EventSnapshot, ev.Type)
	require.Greater(t, len(ev.Payload), eng.Config().Compression.MinSize)

	var snap wire.SnapshotPayload
	require.NoError(t, ev.Decode(&snap))
	require.Len(t, snap.Sessions, 20)
	assert.Equal(t, "s00", snap.Sessions[0].ID)
	assert.Equal(t, "s19", snap.Sessions[19].ID)
}

func TestEngine_MetricsEndpoint(t *testing.T) {
	eng := startEngine(t)

	resp, err := http.Get("http://" + eng.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "hypergrid_telemetry")
}

func nextEnvelope(t *testing.T, c *stream.Client) *wire.Envelope {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Envelope != nil {
				return ev.Envelope
			}
		case <-timeout:
			t.Fatal("等待观察通道消息超时")
		}
	}
}

// 存储收到的指标样本转发给遥测
func TestBindTelemetry_SamplesReachTelemetry(t *testing.T) {
	cfg := testConfig()
	cfg.Transport.ListenAddr = ""

	var (
		s   *store.Store
		tel *telemetry.Telemetry
	)
	app := fxtest.New(t,
		fx.Supply(cfg),
		eventbus.Module(),
		compressionModule(),
		storage.Module(),
		store.Module(),
		telemetry.Module(),
		fx.Invoke(bindTelemetry),
		fx.Populate(&s, &tel),
		fx.NopLogger,
	)
	app.RequireStart()
	defer app.RequireStop()

	report, err := s.Merge(context.Background(), []types.MergeEntry{
		types.SampleEntry(types.MetricSample{SessionID: "s1", LatencyMs: 40, Throughput: 10, ErrorRate: 0.01, Timestamp: 1000}),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Samples)

	tel.FoldNow()
	agg, ok := tel.Session("s1")
	require.True(t, ok)
	assert.InDelta(t, 40, agg.LatencyMs, 1e-6)
}
