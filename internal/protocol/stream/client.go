package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/core/compression"
	"github.com/dep2p/go-hypergrid/internal/protocol/wire"
	"github.com/dep2p/go-hypergrid/internal/util/logger"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

var log = logger.Logger("stream")

// eventBuffer 客户端事件通道容量
const eventBuffer = 256

// ClientOption 客户端选项
type ClientOption func(*Client)

// WithDialer 设置拨号函数
func WithDialer(d Dialer) ClientOption {
	return func(c *Client) { c.dial = d }
}

// WithClientClock 设置时钟
func WithClientClock(clk clock.Clock) ClientOption {
	return func(c *Client) { c.clock = clk }
}

// WithCodec 设置帧编解码器
func WithCodec(codec *wire.Codec) ClientOption {
	return func(c *Client) { c.codec = codec }
}

// Client 观察通道客户端
type Client struct {
	cfg   config.TransportConfig
	url   string
	codec *wire.Codec
	// ownComp 未指定编解码器时客户端自建的压缩器，Close 时释放
	ownComp *compression.Codec
	dial  Dialer
	clock clock.Clock

	events chan Event
	wake   chan struct{}
	seq    atomic.Uint64

	mu      sync.Mutex
	queue   []wire.Envelope
	running bool
	cancel  context.CancelFunc
	closed  bool
	wg      sync.WaitGroup

	lastRecv atomic.Int64
}

// NewClient 创建客户端
func NewClient(url string, cfg config.TransportConfig, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}
	c := &Client{
		cfg:    cfg,
		url:    url,
		dial:   WebsocketDialer(nil),
		clock:  clock.New(),
		events: make(chan Event, eventBuffer),
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.codec == nil {
		// 帧魔数决定是否解压，接收端必须始终具备解压能力
		c.ownComp = compression.Default()
		c.codec = wire.NewCodec(c.ownComp, int(cfg.MaxFrameSize))
	}
	return c, nil
}

// Events 返回事件通道，Close 后关闭
func (c *Client) Events() <-chan Event {
	return c.events
}

// Connect 启动连接循环
//
// 已在运行时直接返回；重连耗尽后再次调用会重新开始。
// 连接结果通过 Events 报告。
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.running {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.running = true
	c.cancel = cancel
	c.wg.Add(1)
	go c.run(runCtx)
	return nil
}

// Send 发送消息
//
// 未连接时消息留在队列中，重连后按顺序发出。
func (c *Client) Send(typ string, payload any) error {
	env, err := wire.NewEnvelope(typ, c.seq.Add(1), c.clock.Now().UnixMilli(), payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if len(c.queue) >= c.cfg.SendQueueSize {
		c.mu.Unlock()
		return ErrQueueFull
	}
	c.queue = append(c.queue, env)
	c.mu.Unlock()

	c.signal()
	return nil
}

// Pending 返回排队中的消息数
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Close 停止重连并关闭连接
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	c.wg.Wait()
	close(c.events)
	if c.ownComp != nil {
		return c.ownComp.Close()
	}
	return nil
}

func (c *Client) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		log.Warn("客户端事件通道已满，丢弃事件", "kind", ev.Kind.String())
	}
}

// ============================================================================
//                              连接循环
// ============================================================================

func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	attempt := 0
	for {
		conn, err := c.dial(ctx, c.url)
		if err == nil {
			attempt = 0
			c.emit(Event{Kind: EventConnected})
			log.Info("观察通道已连接", "url", c.url)

			err = c.serve(ctx, conn)
			c.emit(Event{Kind: EventDisconnected, Err: err})
			log.Info("观察通道已断开", "url", c.url, "error", err)
		} else if ctx.Err() == nil {
			c.emit(Event{Kind: EventError, Err: types.NewTransportError("dial", err), Attempt: attempt})
		}
		if ctx.Err() != nil {
			return
		}

		if attempt >= c.cfg.MaxReconnectAttempts {
			c.emit(Event{Kind: EventReconnectExhausted, Attempt: attempt, Err: types.ErrReconnectExhausted})
			log.Warn("重连次数耗尽", "url", c.url, "attempts", attempt)
			return
		}
		delay := Backoff(c.cfg.ReconnectBase.Duration(), c.cfg.ReconnectMax.Duration(), attempt)
		attempt++
		log.Debug("等待重连", "url", c.url, "attempt", attempt, "delay", delay)

		timer := c.clock.Timer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// serve 在一条连接上收发，直到连接失败或 ctx 结束
func (c *Client) serve(ctx context.Context, conn Conn) error {
	conn.SetReadLimit(c.cfg.MaxFrameSize)
	c.lastRecv.Store(c.clock.Now().UnixNano())

	readErr := make(chan error, 1)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		readErr <- c.readLoop(conn)
	}()
	defer func() {
		_ = conn.Close()
		<-readDone
	}()

	ticker := c.clock.Ticker(c.cfg.HeartbeatInterval.Duration())
	defer ticker.Stop()

	if err := c.flush(conn); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return ctx.Err()
		case err := <-readErr:
			return err
		case <-c.wake:
			if err := c.flush(conn); err != nil {
				return err
			}
		case <-ticker.C:
			idle := c.clock.Now().Sub(time.Unix(0, c.lastRecv.Load()))
			if idle > c.cfg.HeartbeatTimeout.Duration() {
				return ErrHeartbeatTimeout
			}
			if err := c.write(conn, wire.Heartbeat[:]); err != nil {
				return err
			}
		}
	}
}

// flush 按 FIFO 顺序发送排队的消息，失败的消息放回队首
func (c *Client) flush(conn Conn) error {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return nil
		}
		env := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		frame, err := c.codec.Encode(env)
		if err != nil {
			// 无法编码的消息无法重试
			c.emit(Event{Kind: EventError, Err: err})
			continue
		}
		if err := c.write(conn, frame); err != nil {
			c.mu.Lock()
			c.queue = append([]wire.Envelope{env}, c.queue...)
			c.mu.Unlock()
			return types.NewTransportError("write", err)
		}
	}
}

func (c *Client) write(conn Conn, data []byte) error {
	if err := conn.SetWriteDeadline(writeDeadline(c.cfg.WriteTimeout.Duration())); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

// writeDeadline timeout 为 0 表示不设截止时间
func writeDeadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

// readLoop 读取帧并转为事件；坏帧丢弃，连接保持
func (c *Client) readLoop(conn Conn) error {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return types.NewTransportError("read", err)
		}
		c.lastRecv.Store(c.clock.Now().UnixNano())

		if mt != websocket.BinaryMessage || wire.IsHeartbeat(data) {
			continue
		}
		env, err := c.codec.Decode(data)
		if err != nil {
			log.Debug("丢弃无法解码的帧", "error", err)
			c.emit(Event{Kind: EventError, Err: err})
			continue
		}
		kind, ok := kindOf(env.Type)
		if !ok {
			log.Debug("忽略未知事件", "type", env.Type)
			continue
		}
		c.emit(Event{Kind: kind, Envelope: &env})
	}
}
