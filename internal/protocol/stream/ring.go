package stream

import "github.com/dep2p/go-hypergrid/internal/protocol/wire"

// envelopeRing 固定容量的信封环形队列
//
// 底层数组在创建时分配一次，溢出时覆盖最旧的元素。
type envelopeRing struct {
	buf  []wire.Envelope
	head int
	size int
}

func newEnvelopeRing(capacity int) *envelopeRing {
	if capacity < 1 {
		capacity = 1
	}
	return &envelopeRing{buf: make([]wire.Envelope, capacity)}
}

// push 追加元素；队列已满时覆盖最旧的元素并返回 true
func (r *envelopeRing) push(env wire.Envelope) bool {
	if r.size == len(r.buf) {
		r.buf[r.head] = env
		r.head = (r.head + 1) % len(r.buf)
		return true
	}
	r.buf[(r.head+r.size)%len(r.buf)] = env
	r.size++
	return false
}

// pop 取出最旧的元素
func (r *envelopeRing) pop() (wire.Envelope, bool) {
	if r.size == 0 {
		return wire.Envelope{}, false
	}
	env := r.buf[r.head]
	// 释放负载引用
	r.buf[r.head] = wire.Envelope{}
	r.head = (r.head + 1) % len(r.buf)
	r.size--
	return env, true
}

// peek 返回第 i 个元素（0 为最旧）
func (r *envelopeRing) peek(i int) wire.Envelope {
	return r.buf[(r.head+i)%len(r.buf)]
}

func (r *envelopeRing) count() int {
	return r.size
}

// reset 清空队列
func (r *envelopeRing) reset() {
	clear(r.buf)
	r.head = 0
	r.size = 0
}
