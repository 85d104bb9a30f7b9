package wire

import "errors"

var (
	// ErrEmptyFrame 空帧
	ErrEmptyFrame = errors.New("wire: empty frame")
	// ErrBadMagic 未知魔数
	ErrBadMagic = errors.New("wire: unknown magic byte")
	// ErrFrameTooLarge 帧超过大小上限
	ErrFrameTooLarge = errors.New("wire: frame too large")
	// ErrTruncated 帧或负载被截断
	ErrTruncated = errors.New("wire: truncated")
	// ErrLengthMismatch 解压后长度与头部不符
	ErrLengthMismatch = errors.New("wire: decompressed length mismatch")
	// ErrNoCompressor 收到压缩帧但没有压缩能力
	ErrNoCompressor = errors.New("wire: compressed frame without compressor")
)
