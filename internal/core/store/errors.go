package store

import "errors"

var (
	// ErrStoreClosed 存储已关闭
	ErrStoreClosed = errors.New("store: closed")

	// ErrRecordTooLarge 序列化后的记录超过槽位容量
	ErrRecordTooLarge = errors.New("store: record exceeds slot size")

	// ErrSessionNotFound 会话不存在或已删除
	ErrSessionNotFound = errors.New("store: session not found")

	// ErrNoProxies 当前网格中没有可分配的代理
	ErrNoProxies = errors.New("store: no proxies available")

	// ErrCorruptSlot 槽位数据损坏
	ErrCorruptSlot = errors.New("store: corrupt slot")
)

// IsNotFound 检查是否为会话不存在错误
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}
