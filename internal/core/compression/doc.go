// Package compression 实现可插拔压缩能力
//
// 支持的算法与线上标签：
//
//	none(0)  s2(1)  zstd(2)  gzip(3)
//
// Select 按负载大小挑选算法：小于 MinSize 不压缩，小于 FastThreshold 用 s2，
// 其余用 zstd。阈值来自配置，只影响压缩率与耗时。
package compression
