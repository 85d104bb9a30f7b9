package store

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

// encoded 待写入槽位的记录
type encoded struct {
	flags byte
	algo  byte
	body  []byte
}

// recordCodec 记录编解码
//
// 序列化结果超过 threshold 时尝试压缩；压缩无收益时保持原文。
type recordCodec struct {
	comp      pkgif.Compressor
	threshold int
}

func (c recordCodec) encode(rec types.SessionRecord) (encoded, error) {
	raw, err := msgpack.Marshal(&rec)
	if err != nil {
		return encoded{}, fmt.Errorf("store: encode %q: %w", rec.ID, err)
	}
	if c.comp == nil || len(raw) <= c.threshold {
		return encoded{body: raw}, nil
	}

	hint := c.comp.Select(len(raw))
	if hint == pkgif.AlgoNone {
		hint = pkgif.AlgoS2
	}
	out, algo, err := c.comp.Compress(raw, hint)
	if err != nil || algo == pkgif.AlgoNone || len(out) >= len(raw) {
		return encoded{body: raw}, nil
	}
	return encoded{flags: flagCompressed, algo: byte(algo), body: out}, nil
}

func (c recordCodec) decode(flags, algo byte, body []byte) (types.SessionRecord, error) {
	raw := body
	if flags&flagCompressed != 0 {
		if c.comp == nil {
			return types.SessionRecord{}, fmt.Errorf("%w: compressed slot without compressor", ErrCorruptSlot)
		}
		var err error
		raw, err = c.comp.Decompress(body, pkgif.Algorithm(algo))
		if err != nil {
			return types.SessionRecord{}, fmt.Errorf("%w: %v", ErrCorruptSlot, err)
		}
	}
	var rec types.SessionRecord
	if err := msgpack.Unmarshal(raw, &rec); err != nil {
		return types.SessionRecord{}, fmt.Errorf("%w: %v", ErrCorruptSlot, err)
	}
	return rec, nil
}
