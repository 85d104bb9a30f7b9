package eventbus

import (
	"reflect"
	"sync"
	"sync/atomic"

	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
)

// ============================================================================
//                              Subscription
// ============================================================================

// Subscription 订阅
type Subscription struct {
	topic     *topic
	name      string
	out       chan any
	dropped   atomic.Uint64
	closeOnce sync.Once
}

var _ pkgif.Subscription = (*Subscription)(nil)

// Out 返回事件通道
func (s *Subscription) Out() <-chan any {
	return s.out
}

// Dropped 返回丢弃的事件数
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close 取消订阅
//
// 先从主题移除，之后不会再有投递，因此可以安全关闭通道。
func (s *Subscription) Close() error {
	s.topic.remove(s)
	s.closeChan()
	return nil
}

func (s *Subscription) closeChan() {
	s.closeOnce.Do(func() {
		close(s.out)
	})
}

// ============================================================================
//                              Emitter
// ============================================================================

// Emitter 事件发射器
type Emitter struct {
	bus    *Bus
	topic  *topic
	closed atomic.Bool
}

var _ pkgif.Emitter = (*Emitter)(nil)

// Emit 投递事件
//
// event 的动态类型必须与 Emitter 创建时的类型一致。
func (e *Emitter) Emit(event any) error {
	if e.closed.Load() || e.bus.closed.Load() {
		return ErrClosed
	}
	if reflect.TypeOf(event) != e.topic.typ {
		return ErrTypeMismatch
	}
	e.topic.dispatch(event)
	return nil
}

// Close 关闭发射器
func (e *Emitter) Close() error {
	e.closed.Store(true)
	return nil
}
