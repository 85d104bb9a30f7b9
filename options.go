package hypergrid

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/dep2p/go-hypergrid/config"
	pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	config     *config.Config
	renderPool pkgif.RenderPool
	listenAddr *string
	envFiles   []string
	loadEnv    bool
	fxOptions  []fx.Option
}

// WithConfig 使用给定配置，未设置时使用 config.NewConfig()
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return fmt.Errorf("config cannot be nil")
		}
		o.config = cfg
		return nil
	}
}

// WithConfigFile 从 JSON / YAML 文件加载配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		o.config = cfg
		return nil
	}
}

// WithEnv 在配置之上加载 .env 文件并应用 HYPERGRID_* 环境变量
func WithEnv(files ...string) Option {
	return func(o *options) error {
		o.loadEnv = true
		o.envFiles = append(o.envFiles, files...)
		return nil
	}
}

// WithListenAddr 设置观察通道监听地址，空字符串表示不启动 HTTP 服务
func WithListenAddr(addr string) Option {
	return func(o *options) error {
		o.listenAddr = &addr
		return nil
	}
}

// WithRenderPool 注入外部渲染池
func WithRenderPool(pool pkgif.RenderPool) Option {
	return func(o *options) error {
		o.renderPool = pool
		return nil
	}
}

// WithFxOptions 追加自定义 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}

// resolve 合成最终配置
func (o *options) resolve() (*config.Config, error) {
	cfg := o.config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if o.loadEnv {
		if err := config.LoadEnv(cfg, o.envFiles...); err != nil {
			return nil, err
		}
	}
	if o.listenAddr != nil {
		cfg.Transport.ListenAddr = *o.listenAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
