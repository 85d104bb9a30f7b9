// Package telemetry 聚合渲染工作池上报的会话指标
//
// 样本经 Ingest 进入有界缓冲区，由折叠循环周期性地合并为：
//   - 每会话聚合：延迟、吞吐、错误率的指数加权平均，样本数与最后上报时间
//   - 全局聚合：会话数、均值与有界窗口上的 p95 延迟
//
// 每次折叠发布 MetricsFolded 事件，只携带本轮发生变化的会话。
// 错误率超过阈值的会话通过回调报告给会话存储。
//
// # 指标
//
// 遥测在独立的 Prometheus Registry 上注册收集器：
//
//	hypergrid_telemetry_samples_total
//	hypergrid_telemetry_samples_dropped_total
//	hypergrid_telemetry_fold_duration_seconds
//	hypergrid_telemetry_sessions
//	hypergrid_telemetry_latency_ms
package telemetry
