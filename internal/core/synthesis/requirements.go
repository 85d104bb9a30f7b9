package synthesis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/dep2p/go-hypergrid/config"
	"github.com/dep2p/go-hypergrid/internal/core/geo"
	"github.com/dep2p/go-hypergrid/pkg/types"
)

// normalize 用配置补全需求中未设置的字段
func normalize(req types.MeshRequirements, cfg config.SynthesisConfig) types.MeshRequirements {
	out := req
	out.Regions = make(map[string]float64, len(req.Regions))
	for k, v := range req.Regions {
		out.Regions[k] = v
	}
	if out.ReliabilityModel == "" {
		out.ReliabilityModel = types.ReliabilityNone
	}
	if len(out.Protocols) == 0 {
		out.Protocols = append([]string(nil), cfg.Protocols...)
	} else {
		out.Protocols = append([]string(nil), req.Protocols...)
	}
	sort.Strings(out.Protocols)
	if out.Weights == (types.RoutingWeights{}) {
		out.Weights = cfg.Weights
	}
	if out.MaxPeers == 0 {
		out.MaxPeers = cfg.MaxPeers
	}
	if out.ECMPTolerance == 0 {
		out.ECMPTolerance = cfg.ECMPTolerance
	}
	return out
}

// validate 校验补全后的需求
func validate(req types.MeshRequirements, model *geo.Model) error {
	if req.ProxyCount <= 0 {
		return types.NewValidationError("proxy_count", "must be positive, got %d", req.ProxyCount)
	}
	if len(req.Regions) == 0 {
		return types.NewValidationError("regions", "must not be empty")
	}
	sum := 0.0
	for code, w := range req.Regions {
		if math.IsNaN(w) || w < 0 {
			return types.NewValidationError("regions", "weight of %q is negative", code)
		}
		if _, ok := model.Region(code); !ok {
			return types.NewValidationError("regions", "unknown region %q", code)
		}
		sum += w
	}
	if math.Abs(sum-1) > 0.01 {
		return types.NewValidationError("regions", "weights sum to %.4f, want 1", sum)
	}

	switch req.ReliabilityModel {
	case types.ReliabilityNone, types.ReliabilityCorrelated, types.ReliabilityCascading:
	default:
		return types.NewValidationError("reliability_model", "unknown model %q", req.ReliabilityModel)
	}

	w := req.Weights
	if w.Latency < 0 || w.Bandwidth < 0 || w.Cost < 0 || w.Reliability < 0 {
		return types.NewValidationError("weights", "must be non-negative")
	}
	if w.Latency+w.Bandwidth+w.Cost+w.Reliability <= 0 {
		return types.NewValidationError("weights", "must have a positive sum")
	}
	if req.MaxPeers < 1 {
		return types.NewValidationError("max_peers", "must be at least 1")
	}
	if req.ECMPTolerance < 0 || req.ECMPTolerance > 1 {
		return types.NewValidationError("ecmp_tolerance", "must be within [0,1]")
	}
	for _, p := range req.Protocols {
		if strings.TrimSpace(p) == "" {
			return types.NewValidationError("protocols", "must not contain empty names")
		}
	}
	return nil
}

// MeshKey 返回需求的确定性键
//
// 需求应先经过补全，使默认值与显式写出的相同值得到同一个键。
func MeshKey(req types.MeshRequirements) string {
	codes := make([]string, 0, len(req.Regions))
	for code := range req.Regions {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var b strings.Builder
	fmt.Fprintf(&b, "seed=%d|count=%d|model=%s", req.Seed, req.ProxyCount, req.ReliabilityModel)
	for _, code := range codes {
		fmt.Fprintf(&b, "|%s=%.6f", code, req.Regions[code])
	}
	w := req.Weights
	fmt.Fprintf(&b, "|w=%.4f,%.4f,%.4f,%.4f|peers=%d|ecmp=%.4f|proto=%s",
		w.Latency, w.Bandwidth, w.Cost, w.Reliability,
		req.MaxPeers, req.ECMPTolerance, strings.Join(req.Protocols, ","))

	h1, h2 := murmur3.Sum128([]byte(b.String()))
	return fmt.Sprintf("%016x%016x", h1, h2)
}

// meshSeed 从需求种子与键派生伪随机数种子
func meshSeed(req types.MeshRequirements, key string) int64 {
	return int64((uint64(req.Seed) ^ murmur3.Sum64([]byte(key))) & math.MaxInt64)
}
