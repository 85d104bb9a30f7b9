package interfaces

// Algorithm 压缩算法标签
//
// 标签值会写入线上帧与存储槽位头部，取值不可更改。
type Algorithm uint8

const (
	AlgoNone Algorithm = 0
	AlgoS2   Algorithm = 1
	AlgoZstd Algorithm = 2
	AlgoGzip Algorithm = 3
)

// String 返回算法名称
func (a Algorithm) String() string {
	switch a {
	case AlgoNone:
		return "none"
	case AlgoS2:
		return "s2"
	case AlgoZstd:
		return "zstd"
	case AlgoGzip:
		return "gzip"
	default:
		return "unknown"
	}
}

// Compressor 可插拔压缩能力
type Compressor interface {
	// Compress 按提示压缩，返回实际使用的算法
	//
	// 压缩后不比原文小时，实现可以返回原文与 AlgoNone。
	Compress(data []byte, hint Algorithm) ([]byte, Algorithm, error)

	// Decompress 按算法标签解压
	Decompress(data []byte, algo Algorithm) ([]byte, error)

	// Select 根据负载大小选择算法
	Select(size int) Algorithm
}
