// Package storage 提供会话存储的持久化日志后端
//
// 后端按 config.StorageConfig.Backend 选择：
//
//	memory  BadgerDB 内存模式，进程退出即丢失
//	badger  BadgerDB 落盘，位于 DataDir/hypergrid.db
//	redis   Redis 有序集合
//
// 三种后端都实现 interfaces.DurableLog。
package storage
