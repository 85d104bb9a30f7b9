// Package workerpool 提供有界计算工作池
//
// 拓扑规划、网格合成与渲染派发都是 CPU 密集型任务，统一提交到这里执行，
// 与 I/O 处理的 goroutine 隔离。任务是实现 Job 接口的值，不捕获共享可变状态。
package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/dep2p/go-hypergrid/internal/util/logger"
)

var log = logger.Logger("workerpool")

var (
	// ErrClosed 工作池已关闭
	ErrClosed = errors.New("workerpool: closed")
	// ErrNilJob 提交了空任务
	ErrNilJob = errors.New("workerpool: nil job")
)

// Job 可在工作池上执行的任务
type Job interface {
	Run(ctx context.Context) (any, error)
}

// Result 任务结果
type Result struct {
	Value any
	Err   error
}

// Stats 工作池统计
type Stats struct {
	Size      int
	Running   int64
	Submitted uint64
	Completed uint64
	Failed    uint64
}

// Pool 有界工作池
type Pool struct {
	size int
	sem  *semaphore.Weighted

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	running   atomic.Int64
	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
}

// New 创建工作池
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		size: size,
		sem:  semaphore.NewWeighted(int64(size)),
	}
}

// Submit 提交任务
//
// 没有空闲槽位时阻塞，直到获得槽位或 ctx 结束。
// 返回的通道恰好收到一个结果后关闭。
func (p *Pool) Submit(ctx context.Context, job Job) (<-chan Result, error) {
	if job == nil {
		return nil, ErrNilJob
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrClosed
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.wg.Done()
		return nil, err
	}

	p.submitted.Add(1)
	p.running.Add(1)
	out := make(chan Result, 1)

	go func() {
		defer func() {
			p.running.Add(-1)
			p.sem.Release(1)
			p.wg.Done()
			close(out)
		}()

		res := p.run(ctx, job)
		if res.Err != nil {
			p.failed.Add(1)
		}
		p.completed.Add(1)
		out <- res
	}()

	return out, nil
}

// run 执行任务并把 panic 转为错误
func (p *Pool) run(ctx context.Context, job Job) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", "panic", r)
			res = Result{Err: errors.New("workerpool: job panicked")}
		}
	}()
	v, err := job.Run(ctx)
	return Result{Value: v, Err: err}
}

// Do 同步执行任务
func (p *Pool) Do(ctx context.Context, job Job) (any, error) {
	ch, err := p.Submit(ctx, job)
	if err != nil {
		return nil, err
	}
	select {
	case res := <-ch:
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stats 返回统计
func (p *Pool) Stats() Stats {
	return Stats{
		Size:      p.size,
		Running:   p.running.Load(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Size 返回槽位数
func (p *Pool) Size() int {
	return p.size
}

// Close 拒绝新任务并等待在途任务完成
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
	log.Debug("worker pool closed", "completed", p.completed.Load())
	return nil
}

// Await 等待结果并断言类型
func Await[T any](ctx context.Context, ch <-chan Result) (T, error) {
	var zero T
	select {
	case res, ok := <-ch:
		if !ok {
			return zero, ErrClosed
		}
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Value.(T)
		if !ok {
			return zero, errors.New("workerpool: unexpected result type")
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
