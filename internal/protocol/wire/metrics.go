package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dep2p/go-hypergrid/pkg/types"
)

// metricFixedSize 每条记录除 ID 外的字节数
const metricFixedSize = 2 + 4 + 4 + 4

// MetricRecord session/metrics 中的一条记录
type MetricRecord struct {
	ID         string
	LatencyMs  float32
	Throughput float32
	ErrorRate  float32
}

// MetricRecordFromAggregate 由会话聚合生成记录
func MetricRecordFromAggregate(agg types.SessionAggregate) MetricRecord {
	return MetricRecord{
		ID:         agg.SessionID,
		LatencyMs:  float32(agg.LatencyMs),
		Throughput: float32(agg.Throughput),
		ErrorRate:  float32(agg.ErrorRate),
	}
}

// Sample 转换为指标样本
func (r MetricRecord) Sample(ts int64) types.MetricSample {
	return types.MetricSample{
		SessionID:  r.ID,
		LatencyMs:  r.LatencyMs,
		Throughput: r.Throughput,
		ErrorRate:  r.ErrorRate,
		Timestamp:  ts,
	}
}

// EncodeMetrics 编码定长记录布局
func EncodeMetrics(records []MetricRecord) ([]byte, error) {
	size := 4
	for _, r := range records {
		if len(r.ID) > math.MaxUint16 {
			return nil, fmt.Errorf("wire: metric id too long (%d bytes)", len(r.ID))
		}
		size += metricFixedSize + len(r.ID)
	}

	out := make([]byte, 0, size)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(records)))
	for _, r := range records {
		out = binary.LittleEndian.AppendUint16(out, uint16(len(r.ID)))
		out = append(out, r.ID...)
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(r.LatencyMs))
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(r.Throughput))
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(r.ErrorRate))
	}
	return out, nil
}

// DecodeMetrics 解码定长记录布局，拒绝截断与多余字节
func DecodeMetrics(data []byte) ([]MetricRecord, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: metrics header", ErrTruncated)
	}
	count := binary.LittleEndian.Uint32(data)
	data = data[4:]
	if uint64(count)*metricFixedSize > uint64(len(data)) {
		return nil, fmt.Errorf("%w: %d metric records in %d bytes", ErrTruncated, count, len(data))
	}

	out := make([]MetricRecord, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(data) < 2 {
			return nil, fmt.Errorf("%w: metric record %d", ErrTruncated, i)
		}
		n := int(binary.LittleEndian.Uint16(data))
		data = data[2:]
		if len(data) < n+12 {
			return nil, fmt.Errorf("%w: metric record %d", ErrTruncated, i)
		}
		r := MetricRecord{ID: string(data[:n])}
		data = data[n:]
		r.LatencyMs = math.Float32frombits(binary.LittleEndian.Uint32(data[0:]))
		r.Throughput = math.Float32frombits(binary.LittleEndian.Uint32(data[4:]))
		r.ErrorRate = math.Float32frombits(binary.LittleEndian.Uint32(data[8:]))
		data = data[12:]
		out = append(out, r)
	}
	if len(data) != 0 {
		return nil, fmt.Errorf("wire: %d trailing bytes after metric records", len(data))
	}
	return out, nil
}
