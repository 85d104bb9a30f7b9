package stream

import "time"

// Backoff 返回第 attempt 次重连前的等待时间：base × 2^attempt，不超过 limit
func Backoff(base, limit time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		if d >= limit/2 {
			return limit
		}
		d *= 2
	}
	return min(d, limit)
}
