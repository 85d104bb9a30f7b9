package wire

import (
	"fmt"

	"github.com/multiformats/go-varint"

	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

// 帧魔数
const (
	MagicRaw        byte = 0xB0
	MagicCompressed byte = 0xB1
)

// DefaultMaxFrameSize 默认帧大小上限
const DefaultMaxFrameSize = 4 << 20

// Codec 帧编解码器
//
// comp 为 nil 时只编码原始帧，收到压缩帧返回错误。
type Codec struct {
	comp     pkgif.Compressor
	maxFrame int
}

// NewCodec 创建编解码器，maxFrame <= 0 时使用默认上限
func NewCodec(comp pkgif.Compressor, maxFrame int) *Codec {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	return &Codec{comp: comp, maxFrame: maxFrame}
}

// Encode 编码信封为帧
//
// 压缩算法由压缩能力按序列化大小选择；压缩无收益时输出原始帧。
func (c *Codec) Encode(env Envelope) ([]byte, error) {
	raw, err := Marshal(&env)
	if err != nil {
		return nil, types.NewTransportError("encode", err)
	}
	if len(raw) > c.maxFrame {
		return nil, types.NewTransportError("encode", fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(raw)))
	}

	if c.comp != nil {
		if algo := c.comp.Select(len(raw)); algo != pkgif.AlgoNone {
			out, used, err := c.comp.Compress(raw, algo)
			if err == nil && used != pkgif.AlgoNone && len(out) < len(raw) {
				frame := make([]byte, 0, 2+varint.UvarintSize(uint64(len(raw)))+len(out))
				frame = append(frame, MagicCompressed, byte(used))
				frame = append(frame, varint.ToUvarint(uint64(len(raw)))...)
				return append(frame, out...), nil
			}
		}
	}

	frame := make([]byte, 0, 1+len(raw))
	frame = append(frame, MagicRaw)
	return append(frame, raw...), nil
}

// Decode 解码帧为信封
func (c *Codec) Decode(frame []byte) (Envelope, error) {
	raw, err := c.unwrap(frame)
	if err != nil {
		return Envelope{}, types.NewTransportError("decode", err)
	}
	var env Envelope
	if err := Unmarshal(raw, &env); err != nil {
		return Envelope{}, types.NewTransportError("decode", err)
	}
	return env, nil
}

// Compressed 判断帧是否为压缩帧
func Compressed(frame []byte) bool {
	return len(frame) > 0 && frame[0] == MagicCompressed
}

func (c *Codec) unwrap(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, ErrEmptyFrame
	}
	if len(frame) > c.maxFrame+16 {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
	}

	switch frame[0] {
	case MagicRaw:
		return frame[1:], nil
	case MagicCompressed:
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrBadMagic, frame[0])
	}

	if len(frame) < 3 {
		return nil, fmt.Errorf("%w: compressed header", ErrTruncated)
	}
	if c.comp == nil {
		return nil, ErrNoCompressor
	}
	algo := pkgif.Algorithm(frame[1])
	size, n, err := varint.FromUvarint(frame[2:])
	if err != nil {
		return nil, fmt.Errorf("%w: length header: %v", ErrTruncated, err)
	}
	if size > uint64(c.maxFrame) {
		return nil, fmt.Errorf("%w: declares %d bytes", ErrFrameTooLarge, size)
	}
	raw, err := c.comp.Decompress(frame[2+n:], algo)
	if err != nil {
		return nil, err
	}
	if uint64(len(raw)) != size {
		return nil, fmt.Errorf("%w: header %d, got %d", ErrLengthMismatch, size, len(raw))
	}
	return raw, nil
}
