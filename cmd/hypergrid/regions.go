package main

import (
	"fmt"
	"strconv"
	"strings"
)

// parseRegions 解析 "EU=2,NA=1" 形式的区域权重；省略权重时为 1
func parseRegions(s string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, weight, found := strings.Cut(part, "=")
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			return nil, fmt.Errorf("区域代码为空: %q", part)
		}
		w := 1.0
		if found {
			v, err := strconv.ParseFloat(strings.TrimSpace(weight), 64)
			if err != nil || v <= 0 {
				return nil, fmt.Errorf("区域 %s 的权重无效: %q", code, weight)
			}
			w = v
		}
		out[code] = w
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("没有指定区域")
	}
	return out, nil
}
