// Package badger 实现基于 BadgerDB 的存储引擎
//
// 支持落盘与纯内存两种模式；落盘模式下后台周期执行值日志 GC。
//
//	eng, err := badger.New(engine.DefaultConfig("/data/hypergrid.db"))
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
//
//	if err := eng.Put([]byte("key"), []byte("value")); err != nil {
//	    return err
//	}
//	value, err := eng.Get([]byte("key"))
package badger
