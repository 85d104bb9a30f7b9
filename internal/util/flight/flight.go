// Package flight 提供可取消的重复请求合并
//
// 在 singleflight 之上为每个键维护一个共享上下文与等待者计数：
// 相同键的并发调用只执行一次计算；最后一个等待者离开时取消共享上下文，
// 计算据此放弃剩余工作，之后的调用重新开始计算。
package flight

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"
)

// maxRejoin 加入的计算被放弃后重新发起的次数上限
const maxRejoin = 3

// Func 共享计算，ctx 在所有调用方都离开后取消
type Func func(ctx context.Context) (any, error)

// Group 可取消的请求合并组，零值可用
type Group struct {
	sf singleflight.Group

	mu      sync.Mutex
	calls   map[string]*call
	running int
}

type call struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Do 执行或加入 key 对应的计算
//
// 调用方的 ctx 取消时立即返回 ctx.Err()；若它是最后一个等待者，
// 共享计算随之取消。
func (g *Group) Do(ctx context.Context, key string, fn Func) (any, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := g.join(ctx, key)

		ch := g.sf.DoChan(key, func() (any, error) {
			g.mu.Lock()
			g.running++
			g.mu.Unlock()
			defer g.finish(key, c)
			return fn(c.ctx)
		})

		select {
		case <-ctx.Done():
			g.leave(key, c)
			return nil, ctx.Err()
		case res := <-ch:
			g.leave(key, c)
			if res.Err != nil && ctx.Err() == nil && isCancel(res.Err) && attempt < maxRejoin {
				// 加入的计算被其他调用方放弃，重新开始
				continue
			}
			return res.Val, res.Err
		}
	}
}

// Waiters 返回 key 当前的等待者数量
func (g *Group) Waiters(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.calls[key]; ok {
		return c.waiters
	}
	return 0
}

// Running 返回正在执行的计算数量，包括已取消但尚未返回的
func (g *Group) Running() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

func (g *Group) join(ctx context.Context, key string) *call {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls == nil {
		g.calls = make(map[string]*call)
	}
	c, ok := g.calls[key]
	if !ok {
		// 共享上下文保留首个调用方的值，不继承其取消
		cctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &call{ctx: cctx, cancel: cancel}
		g.calls[key] = c
	}
	c.waiters++
	return c
}

func (g *Group) leave(key string, c *call) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c.waiters--
	if c.waiters > 0 {
		return
	}
	c.cancel()
	if g.calls[key] == c {
		// 已取消的计算不再被新调用方加入
		delete(g.calls, key)
		g.sf.Forget(key)
	}
}

func (g *Group) finish(key string, c *call) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running--
	if g.calls[key] == c {
		delete(g.calls, key)
	}
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
