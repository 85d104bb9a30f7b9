// Package geo 提供静态地理参考模型
//
// 内置数据集包含区域质心、城市（国家、坐标、等级、人口权重）
// 与 ASN（运营商、类型、服务区域、带宽上限、基础可靠性）。
// 合成引擎通过它做加权采样与坐标查询。
//
// 所有采样函数接收调用方提供的 *rand.Rand，数据集本身是有序切片，
// 同一种子总是得到相同的采样结果。
//
// 区域级派生索引按区域代码缓存在 LRU 中。
package geo
