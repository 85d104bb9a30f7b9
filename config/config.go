// Package config 提供 hypergrid 的统一配置
//
// 主 Config 结构体嵌入全部子配置，每个子配置在独立文件中定义，
// 提供 DefaultXxxConfig() 与 Validate()。
//
// 使用示例：
//
//	// 默认配置
//	cfg := config.NewConfig()
//	cfg.Store.Shards = 128
//
//	// 从文件加载（按扩展名识别 JSON / YAML）
//	cfg, err := config.Load("hypergrid.yaml")
//
//	// 加载 .env 后应用 HYPERGRID_* 环境变量覆盖
//	err = config.LoadEnv(cfg, ".env")
package config

import "fmt"

// Config 完整配置
type Config struct {
	// Topology 拓扑规划
	Topology TopologyConfig `json:"topology" yaml:"topology"`

	// Synthesis 网格合成
	Synthesis SynthesisConfig `json:"synthesis" yaml:"synthesis"`

	// Store 会话存储
	Store StoreConfig `json:"store" yaml:"store"`

	// Storage 持久化日志后端
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Transport 流式传输
	Transport TransportConfig `json:"transport" yaml:"transport"`

	// Telemetry 遥测折叠
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	// Render 渲染派发
	Render RenderConfig `json:"render" yaml:"render"`

	// Worker 计算工作池
	Worker WorkerConfig `json:"worker" yaml:"worker"`

	// Compression 压缩
	Compression CompressionConfig `json:"compression" yaml:"compression"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Topology:    DefaultTopologyConfig(),
		Synthesis:   DefaultSynthesisConfig(),
		Store:       DefaultStoreConfig(),
		Storage:     DefaultStorageConfig(),
		Transport:   DefaultTransportConfig(),
		Telemetry:   DefaultTelemetryConfig(),
		Render:      DefaultRenderConfig(),
		Worker:      DefaultWorkerConfig(),
		Compression: DefaultCompressionConfig(),
	}
}

// Validate 验证全部子配置
func (c *Config) Validate() error {
	validators := []struct {
		name string
		fn   func() error
	}{
		{"topology", c.Topology.Validate},
		{"synthesis", c.Synthesis.Validate},
		{"store", c.Store.Validate},
		{"storage", c.Storage.Validate},
		{"transport", c.Transport.Validate},
		{"telemetry", c.Telemetry.Validate},
		{"render", c.Render.Validate},
		{"worker", c.Worker.Validate},
		{"compression", c.Compression.Validate},
	}
	for _, v := range validators {
		if err := v.fn(); err != nil {
			return fmt.Errorf("config %s: %w", v.name, err)
		}
	}
	return nil
}
