// Package hypergrid 提供 HyperGrid 核心的入口
//
// New 组装全部内部模块并返回 Engine：
//
//	eng, err := hypergrid.New(
//	    hypergrid.WithConfigFile("hypergrid.yaml"),
//	    hypergrid.WithListenAddr(":8080"),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := eng.Start(ctx); err != nil {
//	    return err
//	}
//	defer eng.Stop(context.Background())
//
//	rec, err := eng.Store().Create(ctx, types.SessionDefinition{
//	    Target:         "https://example.com",
//	    RegionAffinity: "EU",
//	    Replicas:       2,
//	}, "")
//
// 组件之间通过事件总线传递增量：存储发布会话变更，遥测发布指标折叠结果，
// 合成引擎发布新网格，观察通道 Hub 订阅后扇出给每个观察方。
package hypergrid
