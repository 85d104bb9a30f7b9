package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/core/compression"
	"github.com/dep2p/go-hypergrid/internal/protocol/wire"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

// ============================================================================
//                              测试连接
// ============================================================================

type fakeConn struct {
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once

	mu        sync.Mutex
	written   [][]byte
	failAfter int // 成功写入这么多帧后写失败，<0 表示不失败
}

func newFakeConn(failAfter int) *fakeConn {
	return &fakeConn{
		inbound:   make(chan []byte, 16),
		closed:    make(chan struct{}),
		failAfter: failAfter,
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.inbound:
		return websocket.BinaryMessage, data, nil
	case <-f.closed:
		return 0, nil, io.EOF
	}
}

func (f *fakeConn) WriteMessage(mt int, data []byte) error {
	if mt != websocket.BinaryMessage {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.closed:
		return io.ErrClosedPipe
	default:
	}
	if f.failAfter >= 0 && len(f.written) >= f.failAfter {
		return errors.New("broken pipe")
	}
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) SetReadLimit(int64)               {}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

// frames 返回已写出的非心跳帧
func (f *fakeConn) frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]byte
	for _, w := range f.written {
		if !wire.IsHeartbeat(w) {
			out = append(out, w)
		}
	}
	return out
}

// fakeDialer 依次返回给定连接，用完后拨号失败
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	calls atomic.Int32
}

func (d *fakeDialer) dial(context.Context, string) (Conn, error) {
	d.calls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}

func testTransportConfig() config.TransportConfig {
	cfg := config.DefaultTransportConfig()
	cfg.HeartbeatInterval = config.Duration(time.Second)
	cfg.HeartbeatTimeout = config.Duration(3 * time.Second)
	cfg.ReconnectBase = config.Duration(100 * time.Millisecond)
	cfg.ReconnectMax = config.Duration(time.Second)
	cfg.MaxReconnectAttempts = 2
	cfg.SendQueueSize = 8
	cfg.WriteTimeout = 0
	return cfg
}

func newTestClient(t *testing.T, d *fakeDialer, mock *clock.Mock) *Client {
	t.Helper()
	c, err := NewClient("ws://test/stream", testTransportConfig(),
		WithDialer(d.dial), WithClientClock(mock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// waitEvent 等待指定类型的事件，空闲时调用 advance 推进时间
func waitEvent(t *testing.T, c *Client, kind EventKind, advance func()) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			require.True(t, ok, "事件通道已关闭")
			if ev.Kind == kind {
				return ev
			}
		case <-time.After(10 * time.Millisecond):
			if advance != nil {
				advance()
			}
		case <-deadline:
			t.Fatalf("等待 %s 事件超时", kind)
		}
	}
}

func seqs(t *testing.T, frames [][]byte) []uint64 {
	t.Helper()
	codec := wire.NewCodec(nil, 0)
	out := make([]uint64, 0, len(frames))
	for _, f := range frames {
		env, err := codec.Decode(f)
		require.NoError(t, err)
		out = append(out, env.Seq)
	}
	return out
}

// ============================================================================
//                              测试
// ============================================================================

func TestBackoff(t *testing.T) {
	base, limit := 100*time.Millisecond, time.Second
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{40, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(base, limit, tt.attempt), "attempt %d", tt.attempt)
	}
	assert.Zero(t, Backoff(0, limit, 3))
}

func TestClient_FlushesQueuedInOrder(t *testing.T) {
	conn := newFakeConn(-1)
	d := &fakeDialer{conns: []*fakeConn{conn}}
	c := newTestClient(t, d, clock.NewMock())

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Send(wire.EventSessionUpdated, types.SessionRecord{ID: "s", WriterID: "w"}))
	}
	assert.Equal(t, 3, c.Pending())

	require.NoError(t, c.Connect(context.Background()))
	waitEvent(t, c, EventConnected, nil)

	require.Eventually(t, func() bool { return len(conn.frames()) == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []uint64{1, 2, 3}, seqs(t, conn.frames()))
	assert.Zero(t, c.Pending())
}

func TestClient_RequeuesAfterWriteFailure(t *testing.T) {
	first := newFakeConn(1)
	second := newFakeConn(-1)
	d := &fakeDialer{conns: []*fakeConn{first, second}}
	mock := clock.NewMock()
	c := newTestClient(t, d, mock)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Send(wire.EventSessionUpdated, types.SessionRecord{ID: "s", WriterID: "w"}))
	}
	require.NoError(t, c.Connect(context.Background()))

	ev := waitEvent(t, c, EventDisconnected, nil)
	assert.ErrorIs(t, ev.Err, types.ErrTransport)

	waitEvent(t, c, EventConnected, func() { mock.Add(100 * time.Millisecond) })
	require.Eventually(t, func() bool { return len(second.frames()) == 2 }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []uint64{1}, seqs(t, first.frames()))
	assert.Equal(t, []uint64{2, 3}, seqs(t, second.frames()))
}

func TestClient_HeartbeatTimeoutReconnects(t *testing.T) {
	first := newFakeConn(-1)
	second := newFakeConn(-1)
	d := &fakeDialer{conns: []*fakeConn{first, second}}
	mock := clock.NewMock()
	c := newTestClient(t, d, mock)

	require.NoError(t, c.Connect(context.Background()))
	waitEvent(t, c, EventConnected, nil)

	ev := waitEvent(t, c, EventDisconnected, func() { mock.Add(time.Second) })
	assert.ErrorIs(t, ev.Err, ErrHeartbeatTimeout)

	// 超时前已发出心跳
	first.mu.Lock()
	heartbeats := len(first.written)
	first.mu.Unlock()
	assert.Positive(t, heartbeats)
	assert.Empty(t, first.frames())

	waitEvent(t, c, EventConnected, func() { mock.Add(100 * time.Millisecond) })
	assert.Equal(t, int32(2), d.calls.Load())
}

func TestClient_ReconnectExhausted(t *testing.T) {
	d := &fakeDialer{}
	mock := clock.NewMock()
	c := newTestClient(t, d, mock)

	require.NoError(t, c.Connect(context.Background()))
	ev := waitEvent(t, c, EventReconnectExhausted, func() { mock.Add(time.Second) })
	assert.ErrorIs(t, ev.Err, types.ErrReconnectExhausted)
	assert.Equal(t, 2, ev.Attempt)
	// 首次拨号加两次重连
	assert.Equal(t, int32(3), d.calls.Load())

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return !c.running
	}, 2*time.Second, 5*time.Millisecond)

	// 再次 Connect 重新开始
	require.NoError(t, c.Connect(context.Background()))
	ev = waitEvent(t, c, EventError, nil)
	assert.ErrorIs(t, ev.Err, types.ErrTransport)
	assert.Equal(t, 0, ev.Attempt)
}

func TestClient_QueueFull(t *testing.T) {
	c := newTestClient(t, &fakeDialer{}, clock.NewMock())
	for i := 0; i < testTransportConfig().SendQueueSize; i++ {
		require.NoError(t, c.Send(wire.EventHeartbeat, nil))
	}
	assert.ErrorIs(t, c.Send(wire.EventHeartbeat, nil), ErrQueueFull)
}

func TestClient_BadFrameKeepsConnection(t *testing.T) {
	conn := newFakeConn(-1)
	c := newTestClient(t, &fakeDialer{conns: []*fakeConn{conn}}, clock.NewMock())

	require.NoError(t, c.Connect(context.Background()))
	waitEvent(t, c, EventConnected, nil)

	conn.inbound <- []byte{0x01, 0x02, 0x03}
	ev := waitEvent(t, c, EventError, nil)
	assert.ErrorIs(t, ev.Err, types.ErrTransport)

	env, err := wire.NewEnvelope(wire.EventSnapshot, 1, 1000, wire.SnapshotPayload{
		Sessions: []types.SessionRecord{{ID: "s1", WriterID: "w", State: types.StateSteady}},
	})
	require.NoError(t, err)
	frame, err := wire.NewCodec(nil, 0).Encode(env)
	require.NoError(t, err)
	conn.inbound <- wire.Heartbeat[:]
	conn.inbound <- frame

	ev = waitEvent(t, c, EventSnapshot, nil)
	require.NotNil(t, ev.Envelope)
	var snap wire.SnapshotPayload
	require.NoError(t, ev.Envelope.Decode(&snap))
	require.Len(t, snap.Sessions, 1)
	assert.Equal(t, "s1", snap.Sessions[0].ID)
}

// 默认客户端按魔数解压压缩帧
func TestClient_DecodesCompressedFrame(t *testing.T) {
	conn := newFakeConn(-1)
	c := newTestClient(t, &fakeDialer{conns: []*fakeConn{conn}}, clock.NewMock())

	require.NoError(t, c.Connect(context.Background()))
	waitEvent(t, c, EventConnected, nil)

	sessions := make([]types.SessionRecord, 0, 40)
	for i := 0; i < 40; i++ {
		sessions = append(sessions, types.SessionRecord{
			ID:         fmt.Sprintf("session-%02d", i),
			WriterID:   "w",
			Definition: types.SessionDefinition{Target: fmt.Sprintf("https://target-%02d.example/path", i), Replicas: 2},
			State:      types.StateSteady,
		})
	}
	env, err := wire.NewEnvelope(wire.EventSnapshot, 1, 1000, wire.SnapshotPayload{Sessions: sessions})
	require.NoError(t, err)

	comp := compression.Default()
	defer comp.Close()
	frame, err := wire.NewCodec(comp, 0).Encode(env)
	require.NoError(t, err)
	require.Equal(t, wire.MagicCompressed, frame[0])
	conn.inbound <- frame

	ev := waitEvent(t, c, EventSnapshot, nil)
	require.NotNil(t, ev.Envelope)
	var snap wire.SnapshotPayload
	require.NoError(t, ev.Envelope.Decode(&snap))
	require.Len(t, snap.Sessions, 40)
	assert.Equal(t, "session-39", snap.Sessions[39].ID)
}

func TestClient_Close(t *testing.T) {
	conn := newFakeConn(-1)
	c, err := NewClient("ws://test/stream", testTransportConfig(),
		WithDialer((&fakeDialer{conns: []*fakeConn{conn}}).dial), WithClientClock(clock.NewMock()))
	require.NoError(t, err)

	require.NoError(t, c.Connect(context.Background()))
	waitEvent(t, c, EventConnected, nil)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	select {
	case <-conn.closed:
	default:
		t.Fatal("连接未关闭")
	}
	for range c.Events() {
	}
	assert.ErrorIs(t, c.Send(wire.EventHeartbeat, nil), ErrClosed)
	assert.ErrorIs(t, c.Connect(context.Background()), ErrClosed)
}

func TestNewClient_InvalidConfig(t *testing.T) {
	cfg := testTransportConfig()
	cfg.MaxReconnectAttempts = 0
	_, err := NewClient("ws://test", cfg)
	assert.Error(t, err)
}
