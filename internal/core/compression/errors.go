package compression

import "errors"

var (
	// ErrUnknownAlgorithm 未知算法标签
	ErrUnknownAlgorithm = errors.New("compression: unknown algorithm")

	// ErrCorrupt 数据损坏，无法解压
	ErrCorrupt = errors.New("compression: corrupt input")
)
