// Package render 把会话派发给外部渲染工作池并接收其回调
//
// 派发任务进入有界队列，由工作池并发执行；回调中的指标样本转交遥测，
// 帧只计数并记录最后到达时间，内容不保存。回调按会话限流。
package render
