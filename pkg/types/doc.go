// Package types 定义 hypergrid 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 hypergrid 内部包。
// 所有类型都是值类型或发布后不可变的结构，用于在各模块间传递数据。
//
// # 文件组织
//
//   - topology.go - Topology, Edge, Cluster, Partition, TopologyMetrics
//   - proxy.go    - ProxyNode 及其延迟、带宽、本地网络画像
//   - mesh.go     - ProxyMesh, PeeringRelationship, RoutingTable, MeshRequirements
//   - session.go  - SessionRecord, SessionDefinition, LifecycleState
//   - entries.go  - MergeEntry（会话写入 / 墓碑 / 指标样本 的标签联合）
//   - events.go   - 事件总线上流转的事件类型
//   - errors.go   - 公共错误类型
//
// # 不可变性
//
// Topology 与 ProxyMesh 一经发布即不可修改，可以在所有读者之间按指针共享。
// 需要修改时应重新规划 / 重新合成，产出新的对象。
package types
