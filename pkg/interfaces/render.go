package interfaces

import (
	"context"

	"github.com/dep2p/go-hypergrid/pkg/types"
)

// RenderJob 渲染任务
type RenderJob struct {
	SessionID string
	Target    string
	ProxyIDs  []string
}

// RenderPool 外部渲染工作池
//
// 核心只负责派发任务，结果通过回调返回。
type RenderPool interface {
	Dispatch(ctx context.Context, job RenderJob) error
}

// RenderCallback 渲染工作池的回调
//
// Frame 与 Sample 二选一。
type RenderCallback struct {
	SessionID string
	Frame     []byte
	Sample    *types.MetricSample
}

// MetricsSink 指标样本接收方
type MetricsSink interface {
	Ingest(sample types.MetricSample)
}
