package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/core/eventbus"
	"github.com/dep2p/go-hypergrid/internal/core/store"
	"github.com/dep2p/go-hypergrid/internal/protocol/wire"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

func hubTestConfig() config.TransportConfig {
	cfg := config.DefaultTransportConfig()
	cfg.ListenAddr = ""
	cfg.HeartbeatInterval = config.Duration(200 * time.Millisecond)
	cfg.HeartbeatTimeout = config.Duration(2 * time.Second)
	cfg.ReconnectBase = config.Duration(20 * time.Millisecond)
	cfg.ReconnectMax = config.Duration(100 * time.Millisecond)
	cfg.MaxReconnectAttempts = 1
	return cfg
}

func steady(id, writer string, ts int64) types.SessionRecord {
	return types.SessionRecord{
		ID:         id,
		Definition: types.SessionDefinition{Target: "https://" + id + ".example", Replicas: 1},
		State:      types.StateSteady,
		WriterID:   writer,
		Version:    1,
		Timestamp:  ts,
	}
}

type hubFixture struct {
	bus   *eventbus.Bus
	store *store.Store
	hub   *Hub
	url   string
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	bus := eventbus.NewBus()
	t.Cleanup(func() { _ = bus.Close() })

	st, err := store.New(config.DefaultStoreConfig(), store.WithEventBus(bus))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	hub, err := NewHub(hubTestConfig(), st, WithEventBus(bus))
	require.NoError(t, err)
	require.NoError(t, hub.Start())

	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { _ = hub.Close() })

	return &hubFixture{
		bus:   bus,
		store: st,
		hub:   hub,
		url:   "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

func (f *hubFixture) dial(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(f.url, hubTestConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Connect(context.Background()))
	return c
}

// nextData 返回下一个携带信封的事件
func nextData(t *testing.T, c *Client) Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Envelope != nil {
				return ev
			}
		case <-timeout:
			t.Fatal("等待数据事件超时")
		}
	}
}

func TestHub_SnapshotThenDeltas(t *testing.T) {
	ctx := context.Background()
	f := newHubFixture(t)
	require.NoError(t, f.store.Upsert(ctx, steady("s0", "x", 100)))

	c := f.dial(t)

	ev := nextData(t, c)
	require.Equal(t, EventSnapshot, ev.Kind)
	var snap wire.SnapshotPayload
	require.NoError(t, ev.Envelope.Decode(&snap))
	require.Len(t, snap.Sessions, 1)
	assert.Equal(t, "s0", snap.Sessions[0].ID)
	assert.Equal(t, uint64(1), ev.Envelope.Seq)

	require.Eventually(t, func() bool { return f.hub.Observers() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, f.store.Upsert(ctx, steady("s1", "x", 100)))
	ev = nextData(t, c)
	require.Equal(t, EventUpdate, ev.Kind)
	assert.Equal(t, wire.EventSessionCreated, ev.Envelope.Type)
	assert.Equal(t, uint64(2), ev.Envelope.Seq)
	var rec types.SessionRecord
	require.NoError(t, ev.Envelope.Decode(&rec))
	assert.Equal(t, "s1", rec.ID)

	require.NoError(t, f.store.Delete(ctx, "s1", "x"))
	ev = nextData(t, c)
	assert.Equal(t, wire.EventSessionDeleted, ev.Envelope.Type)
	var tomb types.Tombstone
	require.NoError(t, ev.Envelope.Decode(&tomb))
	assert.Equal(t, "s1", tomb.ID)
}

func TestHub_MergesInboundDeltas(t *testing.T) {
	ctx := context.Background()
	f := newHubFixture(t)
	require.NoError(t, f.store.Upsert(ctx, steady("s1", "x", 100)))

	c := f.dial(t)
	require.Equal(t, EventSnapshot, nextData(t, c).Kind)

	// 时间戳相同，写入方 ID 更大者胜出
	require.NoError(t, c.Send(wire.EventSessionUpdated, steady("s1", "y", 100)))
	require.Eventually(t, func() bool {
		rec, ok := f.store.Get("s1")
		return ok && rec.WriterID == "y"
	}, 2*time.Second, 5*time.Millisecond)

	// 落后的写入被忽略
	require.NoError(t, c.Send(wire.EventSessionUpdated, steady("s1", "a", 99)))
	require.NoError(t, c.Send(wire.EventSessionUpdated, steady("s2", "z", 5)))
	require.Eventually(t, func() bool {
		_, ok := f.store.Get("s2")
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	rec, _ := f.store.Get("s1")
	assert.Equal(t, "y", rec.WriterID)
	require.Eventually(t, func() bool { return f.hub.Stats().Merged == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_BadFramesCounted(t *testing.T) {
	f := newHubFixture(t)
	c := f.dial(t)
	require.Equal(t, EventSnapshot, nextData(t, c).Kind)

	// 截断的指标负载
	require.NoError(t, c.Send(wire.EventSessionMetrics, []byte{0x01}))
	require.Eventually(t, func() bool { return f.hub.Stats().BadFrames == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.hub.Observers())
}

func TestHub_CloseDisconnectsObservers(t *testing.T) {
	f := newHubFixture(t)
	c := f.dial(t)
	require.Equal(t, EventSnapshot, nextData(t, c).Kind)

	require.NoError(t, f.hub.Close())
	assert.Zero(t, f.hub.Observers())

	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Kind == EventDisconnected {
				return
			}
		case <-timeout:
			t.Fatal("客户端未断开")
		}
	}
}

func TestHub_RejectsAfterClose(t *testing.T) {
	f := newHubFixture(t)
	require.NoError(t, f.hub.Close())

	rec := httptest.NewRecorder()
	f.hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.ErrorIs(t, f.hub.Start(), ErrClosed)
}

func TestObserver_OverflowRequestsSnapshot(t *testing.T) {
	cfg := hubTestConfig()
	cfg.ObserverQueueSize = 2
	st, err := store.New(config.DefaultStoreConfig())
	require.NoError(t, err)
	defer st.Close()

	h, err := NewHub(cfg, st)
	require.NoError(t, err)
	defer h.Close()

	o := newObserver(h, 1, nil, "test")
	for i := 0; i < 3; i++ {
		env, err := wire.NewEnvelope(wire.EventSessionUpdated, 0, int64(i), nil)
		require.NoError(t, err)
		o.enqueue(env)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	require.Equal(t, 2, o.pending.count())
	assert.Equal(t, int64(1), o.pending.peek(0).Timestamp)
	assert.Equal(t, int64(2), o.pending.peek(1).Timestamp)
	assert.True(t, o.resync)
	assert.Equal(t, uint64(1), h.Stats().Dropped)
	assert.Equal(t, uint64(1), h.Stats().Resyncs)
}

func TestEnvelopeRing(t *testing.T) {
	r := newEnvelopeRing(3)
	for i := 0; i < 3; i++ {
		assert.False(t, r.push(wire.Envelope{Seq: uint64(i)}))
	}
	// 持续溢出时底层数组不增长
	for i := 3; i < 100; i++ {
		assert.True(t, r.push(wire.Envelope{Seq: uint64(i)}))
	}
	assert.Equal(t, 3, r.count())
	assert.Len(t, r.buf, 3)

	for _, want := range []uint64{97, 98, 99} {
		env, ok := r.pop()
		require.True(t, ok)
		assert.Equal(t, want, env.Seq)
	}
	_, ok := r.pop()
	assert.False(t, ok)

	r.push(wire.Envelope{Seq: 1, Payload: []byte{1}})
	r.reset()
	assert.Zero(t, r.count())
	assert.Nil(t, r.buf[0].Payload)
}

func TestToMessage(t *testing.T) {
	rec := steady("s1", "x", 10)

	typ, payload, ok := toMessage(types.SessionChanged{Kind: types.ChangeDeleted, Record: rec})
	require.True(t, ok)
	assert.Equal(t, wire.EventSessionDeleted, typ)
	assert.Equal(t, types.Tombstone{ID: "s1", WriterID: "x", Version: 1, Timestamp: 10}, payload)

	_, _, ok = toMessage(types.MetricsFolded{})
	assert.False(t, ok)

	typ, payload, ok = toMessage(types.MetricsFolded{Changed: []types.SessionAggregate{{SessionID: "s1", LatencyMs: 12}}})
	require.True(t, ok)
	assert.Equal(t, wire.EventSessionMetrics, typ)
	require.Len(t, payload, 1)

	_, _, ok = toMessage("unrelated")
	assert.False(t, ok)
}

func TestNewHub_RequiresStore(t *testing.T) {
	_, err := NewHub(hubTestConfig(), nil)
	assert.ErrorIs(t, err, ErrNoSessionStore)
}
