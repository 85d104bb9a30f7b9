package stream

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dep2p/go-hypergrid/internal/protocol/wire"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

// Observer Hub 端的一个观察方连接
//
// 出站消息进入有界队列，由 writeLoop 单独写出；队列满时丢弃最旧的消息
// 并标记补发快照。
type Observer struct {
	hub    *Hub
	id     uint64
	conn   *websocket.Conn
	remote string

	mu      sync.Mutex
	pending *envelopeRing
	resync  bool
	wake    chan struct{}

	done      chan struct{}
	closeOnce sync.Once
	seq       uint64
}

func newObserver(h *Hub, id uint64, conn *websocket.Conn, remote string) *Observer {
	return &Observer{
		hub:     h,
		id:      id,
		conn:    conn,
		remote:  remote,
		pending: newEnvelopeRing(h.cfg.ObserverQueueSize),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (o *Observer) signal() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// enqueue 放入出站队列，满时丢弃最旧的消息
func (o *Observer) enqueue(env wire.Envelope) {
	o.mu.Lock()
	if o.pending.push(env) {
		o.hub.dropped.Add(1)
		if !o.resync {
			o.resync = true
			o.hub.resyncs.Add(1)
			log.Debug("观察方跟不上，稍后补发快照", "observer", o.id)
		}
	}
	o.mu.Unlock()
	o.signal()
}

// requestSnapshot 在下一次写出时先发送完整快照
func (o *Observer) requestSnapshot() {
	o.mu.Lock()
	o.resync = true
	o.mu.Unlock()
	o.signal()
}

func (o *Observer) writeLoop() {
	defer o.hub.wg.Done()
	defer o.close()

	ticker := o.hub.clock.Ticker(o.hub.cfg.HeartbeatInterval.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-o.done:
			return
		case <-o.wake:
			if err := o.flush(); err != nil {
				log.Debug("写入观察方失败", "observer", o.id, "error", err)
				return
			}
		case <-ticker.C:
			if err := o.write(wire.Heartbeat[:]); err != nil {
				log.Debug("发送心跳失败", "observer", o.id, "error", err)
				return
			}
		}
	}
}

// flush 写出队列；需要补发快照时丢弃已排队的增量并先发快照
func (o *Observer) flush() error {
	for {
		o.mu.Lock()
		if o.resync {
			o.resync = false
			o.pending.reset()
			o.mu.Unlock()

			env, err := wire.NewEnvelope(wire.EventSnapshot, 0, o.hub.clock.Now().UnixMilli(), o.hub.Snapshot())
			if err != nil {
				return err
			}
			if err := o.send(env); err != nil {
				return err
			}
			continue
		}
		env, ok := o.pending.pop()
		o.mu.Unlock()
		if !ok {
			return nil
		}

		if err := o.send(env); err != nil {
			return err
		}
	}
}

func (o *Observer) send(env wire.Envelope) error {
	o.seq++
	env.Seq = o.seq
	frame, err := o.hub.codec.Encode(env)
	if err != nil {
		// 无法编码的消息丢弃，连接保持
		log.Warn("编码消息失败", "observer", o.id, "type", env.Type, "error", err)
		return nil
	}
	return o.write(frame)
}

func (o *Observer) write(frame []byte) error {
	if err := o.conn.SetWriteDeadline(writeDeadline(o.hub.cfg.WriteTimeout.Duration())); err != nil {
		return err
	}
	return o.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (o *Observer) readLoop() {
	defer o.hub.wg.Done()
	defer o.close()

	timeout := o.hub.cfg.HeartbeatTimeout.Duration()
	o.conn.SetReadLimit(o.hub.cfg.MaxFrameSize)
	_ = o.conn.SetReadDeadline(time.Now().Add(timeout))

	for {
		mt, data, err := o.conn.ReadMessage()
		if err != nil {
			log.Debug("观察方读取结束", "observer", o.id, "error", err)
			return
		}
		_ = o.conn.SetReadDeadline(time.Now().Add(timeout))

		if mt != websocket.BinaryMessage || wire.IsHeartbeat(data) {
			continue
		}
		env, err := o.hub.codec.Decode(data)
		if err != nil {
			o.hub.badFrames.Add(1)
			log.Debug("丢弃观察方的坏帧", "observer", o.id, "error", err)
			continue
		}
		o.handle(env)
	}
}

// handle 把观察方上行的增量合并进存储
func (o *Observer) handle(env wire.Envelope) {
	var entries []types.MergeEntry
	switch env.Type {
	case wire.EventSessionCreated, wire.EventSessionUpdated:
		var rec types.SessionRecord
		if err := env.Decode(&rec); err != nil {
			o.hub.badFrames.Add(1)
			return
		}
		entries = append(entries, types.UpsertEntry(rec))
	case wire.EventSessionDeleted:
		var tomb types.Tombstone
		if err := env.Decode(&tomb); err != nil {
			o.hub.badFrames.Add(1)
			return
		}
		entries = append(entries, types.TombstoneEntry(tomb))
	case wire.EventSessionMetrics:
		records, err := env.Metrics()
		if err != nil {
			o.hub.badFrames.Add(1)
			return
		}
		for _, r := range records {
			entries = append(entries, types.SampleEntry(r.Sample(env.Timestamp)))
		}
	default:
		log.Debug("忽略观察方消息", "observer", o.id, "type", env.Type)
		return
	}

	report, err := o.hub.store.Merge(o.hub.ctx, entries)
	o.hub.merged.Add(uint64(report.Applied))
	if err != nil {
		log.Warn("合并观察方增量失败", "observer", o.id, "type", env.Type, "error", err)
	}
	if report.Invalid > 0 {
		log.Debug("观察方增量无效", "observer", o.id, "type", env.Type, "invalid", report.Invalid)
	}
}

func (o *Observer) close() {
	o.closeOnce.Do(func() {
		close(o.done)
		_ = o.conn.Close()
		o.hub.remove(o)
		log.Info("观察方已断开", "observer", o.id)
	})
}
