package eventbus

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-hypergrid/internal/util/logger"
	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
)

var log = logger.Logger("eventbus")

// ============================================================================
//                              错误定义
// ============================================================================

var (
	// ErrClosed 发射器或总线已关闭
	ErrClosed = errors.New("eventbus: closed")
	// ErrInvalidEventType 无效的事件类型
	ErrInvalidEventType = errors.New("eventbus: invalid event type")
	// ErrNonPointerType 事件类型必须以指针形式传入
	ErrNonPointerType = errors.New("eventbus: event type must be a pointer")
	// ErrTypeMismatch 发射的事件与发射器类型不符
	ErrTypeMismatch = errors.New("eventbus: event type mismatch")
)

// defaultBuffer 默认订阅缓冲区
const defaultBuffer = 64

// ============================================================================
//                              Bus
// ============================================================================

// Bus 事件总线
type Bus struct {
	mu     sync.RWMutex
	topics map[reflect.Type]*topic
	closed atomic.Bool
}

var _ pkgif.EventBus = (*Bus)(nil)

// topic 单个事件类型的订阅者列表
type topic struct {
	mu       sync.Mutex
	typ      reflect.Type
	subs     []*Subscription
	keepLast bool
	last     any
	hasLast  bool
}

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{topics: make(map[reflect.Type]*topic)}
}

// elemType 解析 new(T) 形式的类型参数
func elemType(eventType any) (reflect.Type, error) {
	if eventType == nil {
		return nil, ErrInvalidEventType
	}
	typ := reflect.TypeOf(eventType)
	if typ.Kind() != reflect.Ptr {
		return nil, ErrNonPointerType
	}
	return typ.Elem(), nil
}

// topicFor 获取或创建主题
func (b *Bus) topicFor(typ reflect.Type) *topic {
	b.mu.RLock()
	t, ok := b.topics[typ]
	b.mu.RUnlock()
	if ok {
		return t
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok = b.topics[typ]; ok {
		return t
	}
	t = &topic{typ: typ}
	b.topics[typ] = t
	return t
}

// Subscribe 订阅事件
func (b *Bus) Subscribe(eventType any, opts ...pkgif.SubscriptionOpt) (pkgif.Subscription, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	typ, err := elemType(eventType)
	if err != nil {
		return nil, err
	}

	settings := pkgif.SubscriptionSettings{Buffer: defaultBuffer}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.Buffer <= 0 {
		settings.Buffer = defaultBuffer
	}

	t := b.topicFor(typ)
	sub := &Subscription{
		topic: t,
		name:  settings.Name,
		out:   make(chan any, settings.Buffer),
	}

	t.mu.Lock()
	t.subs = append(t.subs, sub)
	if t.keepLast && t.hasLast {
		sub.out <- t.last
	}
	t.mu.Unlock()

	return sub, nil
}

// Emitter 获取发射器
func (b *Bus) Emitter(eventType any, opts ...pkgif.EmitterOpt) (pkgif.Emitter, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	typ, err := elemType(eventType)
	if err != nil {
		return nil, err
	}

	var settings pkgif.EmitterSettings
	for _, opt := range opts {
		opt(&settings)
	}

	t := b.topicFor(typ)
	if settings.Stateful {
		t.mu.Lock()
		t.keepLast = true
		t.mu.Unlock()
	}
	return &Emitter{bus: b, topic: t}, nil
}

// Close 关闭总线与全部订阅
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.mu.Lock()
	topics := b.topics
	b.topics = make(map[reflect.Type]*topic)
	b.mu.Unlock()

	for _, t := range topics {
		t.mu.Lock()
		subs := t.subs
		t.subs = nil
		t.mu.Unlock()
		for _, s := range subs {
			s.closeChan()
		}
	}
	return nil
}

// Subscribers 返回指定类型的订阅者数量
func (b *Bus) Subscribers(eventType any) int {
	typ, err := elemType(eventType)
	if err != nil {
		return 0
	}
	b.mu.RLock()
	t, ok := b.topics[typ]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// ============================================================================
//                              投递
// ============================================================================

// dispatch 同步投递到当前全部订阅者
func (t *topic) dispatch(event any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.keepLast {
		t.last = event
		t.hasLast = true
	}

	for _, sub := range t.subs {
		select {
		case sub.out <- event:
		default:
			dropped := sub.dropped.Add(1)
			// 每 100 次告警一次
			if dropped%100 == 1 {
				log.Warn("subscriber buffer full, dropping events",
					"type", t.typ.String(),
					"subscriber", sub.name,
					"dropped", dropped)
			}
		}
	}
}

// remove 移除订阅者
func (t *topic) remove(sub *Subscription) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.subs {
		if s == sub {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			return true
		}
	}
	return false
}
