// Package wire 定义观察通道的二进制帧格式
//
// 每个二进制帧的第一个字节是魔数：
//
//	0xB0 | msgpack(Envelope)
//	0xB1 | algo | uvarint(原始长度) | compress(msgpack(Envelope))
//
// 接收方依据魔数自行判断是否压缩，不需要额外的协商标志。
// 心跳是固定的 4 字节哨兵 FF 48 42 00，不经过信封编码。
//
// session/metrics 的负载使用定长记录布局（全部小端、无填充）：
//
//	uint32 count
//	count × { uint16 idLen | id | float32 latency | float32 throughput | float32 errorRate }
package wire
