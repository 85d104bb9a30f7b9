package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/core/compression"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

func testSessions(n int) []types.SessionRecord {
	out := make([]types.SessionRecord, n)
	for i := range out {
		out[i] = types.SessionRecord{
			ID:         "session-" + string(rune('a'+i%26)),
			Definition: types.SessionDefinition{Target: "https://example.com/site", Replicas: 2},
			ProxyIDs:   []string{"px-eu-0001", "px-us-0002"},
			State:      types.StateSteady,
			WriterID:   "w1",
			Version:    uint64(i + 1),
			Timestamp:  1_700_000_000_000 + int64(i),
		}
	}
	return out
}

func testFrames(t *testing.T) map[string]Envelope {
	t.Helper()
	snapshot, err := NewEnvelope(EventSnapshot, 1, 1_700_000_000_000, SnapshotPayload{
		Sessions: testSessions(40),
		Mesh:     &types.MeshSummary{Key: "k", Proxies: 10, Regions: map[string]int{"US": 5, "EU": 5}},
	})
	require.NoError(t, err)

	delta, err := NewEnvelope(EventSessionUpdated, 2, 1_700_000_000_001, testSessions(1)[0])
	require.NoError(t, err)

	metrics, err := NewEnvelope(EventSessionMetrics, 3, 1_700_000_000_002, []MetricRecord{
		{ID: "a", LatencyMs: 12.5, Throughput: 100, ErrorRate: 0.01},
		{ID: "会话-b", LatencyMs: 3, Throughput: 0, ErrorRate: 1},
	})
	require.NoError(t, err)

	return map[string]Envelope{"snapshot": snapshot, "delta": delta, "metrics": metrics}
}

func TestCodec_RoundTrip(t *testing.T) {
	compressing := compression.New(config.CompressionConfig{MinSize: 64, FastThreshold: 1024, ZstdLevel: "default"})
	defer compressing.Close()

	codecs := map[string]*Codec{
		"raw":        NewCodec(nil, 0),
		"compressed": NewCodec(compressing, 0),
	}
	for codecName, codec := range codecs {
		for frameName, env := range testFrames(t) {
			t.Run(codecName+"/"+frameName, func(t *testing.T) {
				frame, err := codec.Encode(env)
				require.NoError(t, err)

				decoded, err := codec.Decode(frame)
				require.NoError(t, err)
				assert.Equal(t, env, decoded)

				again, err := codec.Encode(decoded)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(frame, again))
			})
		}
	}
}

func TestCodec_MagicSelection(t *testing.T) {
	comp := compression.New(config.CompressionConfig{MinSize: 64, FastThreshold: 1024, ZstdLevel: "default"})
	defer comp.Close()
	codec := NewCodec(comp, 0)
	frames := testFrames(t)

	big, err := codec.Encode(frames["snapshot"])
	require.NoError(t, err)
	assert.Equal(t, MagicCompressed, big[0])
	assert.True(t, Compressed(big))

	small, err := codec.Encode(Envelope{Type: EventSessionDeleted, Seq: 9})
	require.NoError(t, err)
	assert.Equal(t, MagicRaw, small[0])

	// 压缩帧只有带压缩能力的一方才能解码
	_, err = NewCodec(nil, 0).Decode(big)
	assert.ErrorIs(t, err, ErrNoCompressor)
	assert.ErrorIs(t, err, types.ErrTransport)
}

func TestCodec_DecodeErrors(t *testing.T) {
	codec := NewCodec(compression.Default(), 64)

	cases := map[string]struct {
		frame []byte
		err   error
	}{
		"empty":     {nil, ErrEmptyFrame},
		"magic":     {[]byte{0x01, 0x02}, ErrBadMagic},
		"short":     {[]byte{MagicCompressed, 1}, ErrTruncated},
		"oversized": {append([]byte{MagicCompressed, 1}, 0xFF, 0xFF, 0x03), ErrFrameTooLarge},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decode(tc.frame)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.err)
			assert.ErrorIs(t, err, types.ErrTransport)
		})
	}

	_, err := codec.Decode([]byte{MagicRaw, 0xC1})
	assert.ErrorIs(t, err, types.ErrTransport)
}

func TestCodec_EncodeTooLarge(t *testing.T) {
	codec := NewCodec(nil, 32)
	_, err := codec.Encode(Envelope{Type: EventSnapshot, Payload: make([]byte, 64)})
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestMetrics_Layout(t *testing.T) {
	data, err := EncodeMetrics([]MetricRecord{{ID: "ab", LatencyMs: 1, Throughput: 2, ErrorRate: 0.5}})
	require.NoError(t, err)

	want := []byte{
		1, 0, 0, 0, // count
		2, 0, 'a', 'b', // id
		0x00, 0x00, 0x80, 0x3F, // 1.0
		0x00, 0x00, 0x00, 0x40, // 2.0
		0x00, 0x00, 0x00, 0x3F, // 0.5
	}
	assert.Equal(t, want, data)

	records, err := DecodeMetrics(data)
	require.NoError(t, err)
	assert.Equal(t, []MetricRecord{{ID: "ab", LatencyMs: 1, Throughput: 2, ErrorRate: 0.5}}, records)

	empty, err := EncodeMetrics(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, empty)
}

func TestMetrics_DecodeRejectsMalformed(t *testing.T) {
	data, err := EncodeMetrics([]MetricRecord{{ID: "abc"}})
	require.NoError(t, err)

	for i := 0; i < len(data); i++ {
		_, err := DecodeMetrics(data[:i])
		assert.ErrorIs(t, err, ErrTruncated, "prefix %d", i)
	}
	_, err = DecodeMetrics(append(data, 0))
	assert.Error(t, err)
}

func TestHeartbeat(t *testing.T) {
	assert.True(t, IsHeartbeat([]byte{0xFF, 0x48, 0x42, 0x00}))
	assert.False(t, IsHeartbeat([]byte{0xFF, 0x48, 0x42}))
	assert.False(t, IsHeartbeat([]byte{MagicRaw, 0x48, 0x42, 0x00}))
}

func TestEnvelope_Decode(t *testing.T) {
	frames := testFrames(t)

	var snap SnapshotPayload
	require.NoError(t, frames["snapshot"].Decode(&snap))
	assert.Len(t, snap.Sessions, 40)
	assert.Equal(t, 5, snap.Mesh.Regions["EU"])

	records, err := frames["metrics"].Metrics()
	require.NoError(t, err)
	assert.Equal(t, "会话-b", records[1].ID)

	var rec types.SessionRecord
	assert.ErrorIs(t, Envelope{Type: EventSessionDeleted}.Decode(&rec), ErrTruncated)
}
