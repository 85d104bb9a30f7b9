package store

import (
	"encoding/binary"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/spaolacci/murmur3"
)

const (
	// slotHeaderSize 槽位头部：4 字节长度 + 1 字节标志 + 1 字节算法
	slotHeaderSize = 6

	flagCompressed byte = 1 << 0
)

// location 一个 ID 的分片与初始槽位
type location struct {
	shard int
	home  int
}

// locate 计算 ID 的分片与初始槽位
func locate(id string, shards, slots int) location {
	h1, h2 := murmur3.Sum128([]byte(id))
	return location{
		shard: int(h1 % uint64(shards)),
		home:  int(h2 % uint64(slots)),
	}
}

// ============================================================================
//                              shard
// ============================================================================

// shard 定长槽位分片
//
// data 为全部槽位的连续字节；ids / homes / deletedAt 与槽位一一对应，
// 用于探测时匹配 ID、清理时重新散列与查找过期墓碑，避免解码记录。
// 所有字段只在持有 mu 时访问。
type shard struct {
	mu       sync.Mutex
	index    int
	slotSize int

	data      []byte
	ids       []string
	homes     []int
	deletedAt []int64

	used   int
	filter *bloom.BloomFilter
}

func newShard(index, slots, slotSize int, fpRate float64) *shard {
	return &shard{
		index:     index,
		slotSize:  slotSize,
		data:      make([]byte, slots*slotSize),
		ids:       make([]string, slots),
		homes:     make([]int, slots),
		deletedAt: make([]int64, slots),
		filter:    bloom.NewWithEstimates(uint(slots), fpRate),
	}
}

// capacity 单个槽位可容纳的最大负载
func (sh *shard) capacity() int {
	return sh.slotSize - slotHeaderSize
}

// probe 从 home 开始线性探测
//
// 找到 ID 时 found 为 true；否则返回探测序列中的第一个空槽。
// 探测完整个分片仍无结果时 ok 为 false。
func (sh *shard) probe(id string, home int) (idx int, found, ok bool) {
	n := len(sh.ids)
	for i := 0; i < n; i++ {
		j := (home + i) % n
		switch sh.ids[j] {
		case id:
			return j, true, true
		case "":
			return j, false, true
		}
	}
	return -1, false, false
}

// lookup 查找已存在的 ID
func (sh *shard) lookup(id string, home int) (int, bool) {
	idx, found, _ := sh.probe(id, home)
	return idx, found
}

// payload 返回槽位的标志、算法与负载（负载引用内部缓冲区）
func (sh *shard) payload(idx int) (flags, algo byte, body []byte, err error) {
	off := idx * sh.slotSize
	n := int(binary.LittleEndian.Uint32(sh.data[off:]))
	if n == 0 || n > sh.capacity() {
		return 0, 0, nil, ErrCorruptSlot
	}
	return sh.data[off+4], sh.data[off+5], sh.data[off+slotHeaderSize : off+slotHeaderSize+n], nil
}

// write 写入槽位并更新过滤器
func (sh *shard) write(idx int, id string, home int, deletedAt int64, flags, algo byte, body []byte) {
	off := idx * sh.slotSize
	slot := sh.data[off : off+sh.slotSize]
	binary.LittleEndian.PutUint32(slot, uint32(len(body)))
	slot[4] = flags
	slot[5] = algo
	n := copy(slot[slotHeaderSize:], body)
	clear(slot[slotHeaderSize+n:])

	if sh.ids[idx] == "" {
		sh.used++
	}
	sh.ids[idx] = id
	sh.homes[idx] = home
	sh.deletedAt[idx] = deletedAt
	sh.filter.AddString(id)
}

// clearSlot 清空槽位
func (sh *shard) clearSlot(idx int) {
	off := idx * sh.slotSize
	clear(sh.data[off : off+sh.slotSize])
	if sh.ids[idx] != "" {
		sh.used--
	}
	sh.ids[idx] = ""
	sh.homes[idx] = 0
	sh.deletedAt[idx] = 0
}

// move 把槽位 from 的内容移动到空槽 to
func (sh *shard) move(from, to int) {
	src := from * sh.slotSize
	dst := to * sh.slotSize
	copy(sh.data[dst:dst+sh.slotSize], sh.data[src:src+sh.slotSize])
	sh.ids[to] = sh.ids[from]
	sh.homes[to] = sh.homes[from]
	sh.deletedAt[to] = sh.deletedAt[from]
	sh.used++
	sh.clearSlot(from)
}

// remove 释放槽位并把后续探测簇中的记录前移
//
// 线性探测不使用删除标记，释放后必须保证簇中每条记录
// 仍可从其初始槽位连续探测到。
func (sh *shard) remove(idx int) {
	n := len(sh.ids)
	sh.clearSlot(idx)

	hole := idx
	for j := (idx + 1) % n; sh.ids[j] != ""; j = (j + 1) % n {
		if cyclicBetween(sh.homes[j], hole, j) {
			sh.move(j, hole)
			hole = j
		}
	}
}

// cyclicBetween 判断 i 是否位于循环区间 [from, to)
func cyclicBetween(from, i, to int) bool {
	if from <= to {
		return from <= i && i < to
	}
	return i >= from || i < to
}

// maybeContains 过滤器预检
func (sh *shard) maybeContains(id string) bool {
	return sh.filter.TestString(id)
}
