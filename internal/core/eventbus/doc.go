// Package eventbus 实现进程内事件总线
//
// 事件以具体类型为主题。存储发布 SessionChanged，遥测发布 MetricsFolded，
// 网格发布 MeshPublished；流式传输的 Hub 订阅一次，再扇出给每个观察者。
//
// # 投递语义
//
// Emit 在调用方 goroutine 内同步完成一次投递：对当前每个订阅者
// 做一次非阻塞发送。订阅者缓冲区满时该事件对该订阅者丢弃并计数，
// 发射方永远不会被慢消费者阻塞。
//
//	bus := eventbus.NewBus()
//	sub, _ := bus.Subscribe(new(types.SessionChanged), eventbus.BufSize(256))
//	defer sub.Close()
//
//	em, _ := bus.Emitter(new(types.SessionChanged))
//	defer em.Close()
//	em.Emit(types.SessionChanged{Kind: types.ChangeCreated, Record: rec})
package eventbus
