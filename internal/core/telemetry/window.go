package telemetry

import (
	"math"
	"sort"
)

// latencyWindow 最近 N 个延迟样本的环形窗口
type latencyWindow struct {
	values []float64
	next   int
	full   bool
}

func newLatencyWindow(size int) *latencyWindow {
	return &latencyWindow{values: make([]float64, size)}
}

func (w *latencyWindow) add(v float64) {
	w.values[w.next] = v
	w.next++
	if w.next == len(w.values) {
		w.next = 0
		w.full = true
	}
}

func (w *latencyWindow) len() int {
	if w.full {
		return len(w.values)
	}
	return w.next
}

// quantile 最近邻秩分位数，窗口为空时返回 0
func (w *latencyWindow) quantile(q float64) float64 {
	n := w.len()
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, w.values[:n])
	sort.Float64s(sorted)

	rank := int(math.Ceil(q*float64(n))) - 1
	rank = min(max(rank, 0), n-1)
	return sorted[rank]
}
