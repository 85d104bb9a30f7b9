package eventbus

import pkgif "github.com/dep2p/go-hypergrid/pkg/interfaces"

// BufSize 设置订阅缓冲区大小
func BufSize(size int) pkgif.SubscriptionOpt {
	return pkgif.BufSize(size)
}

// Named 设置订阅名称
func Named(name string) pkgif.SubscriptionOpt {
	return pkgif.Named(name)
}

// Stateful 设置发射器为有状态模式
func Stateful() pkgif.EmitterOpt {
	return pkgif.Stateful()
}
