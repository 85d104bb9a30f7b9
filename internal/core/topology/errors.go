package topology

import "errors"

var (
	// ErrPlannerClosed 规划器已关闭
	ErrPlannerClosed = errors.New("topology: planner closed")
)
