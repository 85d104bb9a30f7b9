package interfaces

import (
	"context"

	"github.com/dep2p/go-hypergrid/pkg/types"
)

// SessionStore 会话层钩子
//
// 外部管理层（REST / 批量创建等）通过这些方法操作会话，核心不实现 HTTP 路由。
type SessionStore interface {
	Upsert(ctx context.Context, record types.SessionRecord) error
	Get(id string) (types.SessionRecord, bool)
	List() []types.SessionRecord
	Merge(ctx context.Context, entries []types.MergeEntry) (types.MergeReport, error)
	Create(ctx context.Context, def types.SessionDefinition, writer string) (types.SessionRecord, error)
	Scale(ctx context.Context, id string, replicas int, writer string) (types.SessionRecord, error)
	Delete(ctx context.Context, id, writer string) error
}

// MeshSource 网格提供方
type MeshSource interface {
	// Current 返回当前已发布的网格，未发布时返回 nil
	Current() *types.ProxyMesh

	// SynthesizeMesh 按需求合成网格
	SynthesizeMesh(ctx context.Context, req types.MeshRequirements) (*types.ProxyMesh, error)

	// Publish 发布网格为当前网格
	Publish(mesh *types.ProxyMesh)
}
