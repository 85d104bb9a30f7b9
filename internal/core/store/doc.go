// Package store 实现会话状态存储
//
// 记录分布在固定数量的分片中，每个分片是定长槽位数组：
//
//	shard = murmur3(id).h1 mod Shards
//	slot  = murmur3(id).h2 mod SlotsPerShard，冲突时线性探测
//
// 槽位布局：
//
//	+--------+-------+------+----------------------+
//	| len:4  | flags | algo | payload (msgpack)    |
//	+--------+-------+------+----------------------+
//
// len 为小端 uint32，0 表示空槽；flags bit0 表示 payload 已压缩，
// algo 为压缩算法标签。分片没有空槽时写入返回 ShardFullError，
// 已有记录永远不会被淘汰。
//
// 并发写入按最后写入者胜出规则合并（时间戳大者胜，相等时写入方 ID
// 字典序大者胜），因此任意顺序、任意重复地合并同一组条目，
// 各副本的可见状态一致。
//
// 每个分片有独立的互斥锁与存在性过滤器，过滤器与槽位在同一临界区内更新。
package store
