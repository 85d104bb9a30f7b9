package config

import "errors"

// TopologyConfig 拓扑规划配置
type TopologyConfig struct {
	// CacheSize 拓扑 LRU 缓存容量
	CacheSize int `json:"cache_size" yaml:"cache_size"`

	// AttachmentEdges 优先连接时每个新节点的边数 m
	AttachmentEdges int `json:"attachment_edges" yaml:"attachment_edges"`

	// ExactDistanceLimit 使用精确全源 BFS 的最大节点数，超过后使用地标近似
	ExactDistanceLimit int `json:"exact_distance_limit" yaml:"exact_distance_limit"`

	// Landmarks 地标数量
	Landmarks int `json:"landmarks" yaml:"landmarks"`

	// EigenIterations 特征向量子空间迭代上限
	EigenIterations int `json:"eigen_iterations" yaml:"eigen_iterations"`

	// EigenTolerance 收敛阈值
	EigenTolerance float64 `json:"eigen_tolerance" yaml:"eigen_tolerance"`

	// KMeansIterations k-means 迭代上限
	KMeansIterations int `json:"kmeans_iterations" yaml:"kmeans_iterations"`

	// RefinePasses Kernighan-Lin 细化轮数
	RefinePasses int `json:"refine_passes" yaml:"refine_passes"`

	// BalanceTolerance 分区大小容差
	BalanceTolerance float64 `json:"balance_tolerance" yaml:"balance_tolerance"`

	// MinVertexConnectivity 目标最小点连通度
	MinVertexConnectivity int `json:"min_vertex_connectivity" yaml:"min_vertex_connectivity"`

	// ConnectivitySamples 点连通度估计的采样对数
	ConnectivitySamples int `json:"connectivity_samples" yaml:"connectivity_samples"`
}

// DefaultTopologyConfig 返回默认拓扑配置
func DefaultTopologyConfig() TopologyConfig {
	return TopologyConfig{
		CacheSize:             64,
		AttachmentEdges:       3,
		ExactDistanceLimit:    512,
		Landmarks:             16,
		EigenIterations:       500,
		EigenTolerance:        1e-4,
		KMeansIterations:      50,
		RefinePasses:          8,
		BalanceTolerance:      0.10,
		MinVertexConnectivity: 3,
		ConnectivitySamples:   48,
	}
}

// Validate 验证拓扑配置
func (c *TopologyConfig) Validate() error {
	if c.CacheSize <= 0 {
		return errors.New("cache_size must be positive")
	}
	if c.AttachmentEdges < 1 {
		return errors.New("attachment_edges must be at least 1")
	}
	if c.Landmarks < 1 {
		return errors.New("landmarks must be at least 1")
	}
	if c.EigenIterations < 1 || c.KMeansIterations < 1 {
		return errors.New("iteration budgets must be positive")
	}
	if c.EigenTolerance <= 0 {
		return errors.New("eigen_tolerance must be positive")
	}
	if c.BalanceTolerance < 0 || c.BalanceTolerance >= 1 {
		return errors.New("balance_tolerance must be within [0,1)")
	}
	if c.MinVertexConnectivity < 1 {
		return errors.New("min_vertex_connectivity must be at least 1")
	}
	return nil
}
