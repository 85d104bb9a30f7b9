// Package interfaces 定义 hypergrid 与外部协作方之间的接口
//
// 核心只依赖这里的抽象：
//
//   - EventBus      进程内事件总线（存储 / 遥测 / 网格发布 → 流式传输）
//   - DurableLog    持久化追加日志与快照
//   - Compressor    可插拔压缩能力
//   - RenderPool    外部渲染工作池
//   - SessionStore  会话层钩子（供外部管理层调用）
//   - MeshSource    当前网格的提供方（供会话分配使用）
//   - MetricsSink   指标样本接收方
//
// 具体实现位于 internal/ 下，测试中可以替换为内存实现。
package interfaces
