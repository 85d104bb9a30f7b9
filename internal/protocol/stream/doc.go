// Package stream 实现观察通道的两端
//
// Client 是观察方：维持一条长连接，断开期间发送的消息在本地排队，
// 重连后按 FIFO 顺序发出；发送中途失败的消息放回队首。
// 心跳超时触发重连，重连间隔按 base × 2^n 增长并封顶，
// 超过最大次数后发出 reconnect-exhausted，直到再次 Connect。
//
// Hub 是服务端：每个 websocket 连接对应一个 Observer，
// 先发送完整快照，再转发事件总线上的会话、指标与网格增量。
// 观察方跟不上时丢弃最旧的增量，并在之后补发一次快照。
package stream
