package compression

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"

	"github.com/dep2p/go-hypergrid/config"
	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
)

// Codec 压缩能力实现
//
// zstd 编解码器创建代价较高，Codec 持有一对共享实例；
// EncodeAll / DecodeAll 可并发调用。
type Codec struct {
	cfg config.CompressionConfig

	encOnce sync.Once
	enc     *zstd.Encoder
	encErr  error

	decOnce sync.Once
	dec     *zstd.Decoder
	decErr  error
}

var _ pkgif.Compressor = (*Codec)(nil)

// New 创建压缩器
func New(cfg config.CompressionConfig) *Codec {
	return &Codec{cfg: cfg}
}

// Default 使用默认配置创建压缩器
func Default() *Codec {
	return New(config.DefaultCompressionConfig())
}

// Select 按大小选择算法
func (c *Codec) Select(size int) pkgif.Algorithm {
	switch {
	case size < c.cfg.MinSize:
		return pkgif.AlgoNone
	case size < c.cfg.FastThreshold:
		return pkgif.AlgoS2
	default:
		return pkgif.AlgoZstd
	}
}

// Compress 按提示压缩
//
// 压缩结果不小于原文时返回原文与 AlgoNone。
func (c *Codec) Compress(data []byte, hint pkgif.Algorithm) ([]byte, pkgif.Algorithm, error) {
	var (
		out []byte
		err error
	)
	switch hint {
	case pkgif.AlgoNone:
		return data, pkgif.AlgoNone, nil
	case pkgif.AlgoS2:
		out = s2.Encode(nil, data)
	case pkgif.AlgoZstd:
		var enc *zstd.Encoder
		if enc, err = c.encoder(); err == nil {
			out = enc.EncodeAll(data, nil)
		}
	case pkgif.AlgoGzip:
		out, err = gzipCompress(data)
	default:
		return nil, pkgif.AlgoNone, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, hint)
	}
	if err != nil {
		return nil, pkgif.AlgoNone, err
	}
	if len(out) >= len(data) {
		return data, pkgif.AlgoNone, nil
	}
	return out, hint, nil
}

// Decompress 按标签解压
func (c *Codec) Decompress(data []byte, algo pkgif.Algorithm) ([]byte, error) {
	switch algo {
	case pkgif.AlgoNone:
		return data, nil
	case pkgif.AlgoS2:
		out, err := s2.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("%w: s2: %v", ErrCorrupt, err)
		}
		return out, nil
	case pkgif.AlgoZstd:
		dec, err := c.decoder()
		if err != nil {
			return nil, err
		}
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
		}
		return out, nil
	case pkgif.AlgoGzip:
		return gzipDecompress(data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, algo)
	}
}

// Auto 按大小选择算法并压缩
func (c *Codec) Auto(data []byte) ([]byte, pkgif.Algorithm, error) {
	return c.Compress(data, c.Select(len(data)))
}

// Close 释放 zstd 资源
func (c *Codec) Close() error {
	if c.enc != nil {
		_ = c.enc.Close()
	}
	if c.dec != nil {
		c.dec.Close()
	}
	return nil
}

func (c *Codec) encoder() (*zstd.Encoder, error) {
	c.encOnce.Do(func() {
		c.enc, c.encErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstdLevel(c.cfg.ZstdLevel)))
	})
	return c.enc, c.encErr
}

func (c *Codec) decoder() (*zstd.Decoder, error) {
	c.decOnce.Do(func() {
		c.dec, c.decErr = zstd.NewReader(nil)
	})
	return c.dec, c.decErr
}

func zstdLevel(name string) zstd.EncoderLevel {
	switch name {
	case "fastest":
		return zstd.SpeedFastest
	case "better":
		return zstd.SpeedBetterCompression
	case "best":
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %v", ErrCorrupt, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: gzip: %v", ErrCorrupt, err)
	}
	return out, nil
}
