package wire

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/dep2p/go-hypergrid/pkg/types"
)

// Envelope 线上信封
type Envelope struct {
	Type      string `msgpack:"t"`
	Seq       uint64 `msgpack:"s"`
	Timestamp int64  `msgpack:"ts"`
	Payload   []byte `msgpack:"p,omitempty"`
}

// SnapshotPayload 快照负载：全部会话与当前网格摘要
type SnapshotPayload struct {
	Sessions []types.SessionRecord `msgpack:"sessions"`
	Mesh     *types.MeshSummary    `msgpack:"mesh,omitempty"`
	Global   types.GlobalAggregate `msgpack:"global"`
}

// Marshal 以确定的字节序列编码值，map 按键排序
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal 解码值
func Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

// NewEnvelope 编码负载并构造信封
func NewEnvelope(typ string, seq uint64, ts int64, payload any) (Envelope, error) {
	env := Envelope{Type: typ, Seq: seq, Timestamp: ts}
	switch p := payload.(type) {
	case nil:
	case []byte:
		env.Payload = p
	case []MetricRecord:
		data, err := EncodeMetrics(p)
		if err != nil {
			return Envelope{}, err
		}
		env.Payload = data
	default:
		data, err := Marshal(p)
		if err != nil {
			return Envelope{}, fmt.Errorf("wire: encode %s payload: %w", typ, err)
		}
		env.Payload = data
	}
	return env, nil
}

// Decode 把 msgpack 负载解码到 v
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: %s has no payload", ErrTruncated, e.Type)
	}
	if err := Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("wire: decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Metrics 解码 session/metrics 负载
func (e Envelope) Metrics() ([]MetricRecord, error) {
	return DecodeMetrics(e.Payload)
}
