package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocate_Deterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("id-%d", i)
		a := locate(id, 7, 13)
		assert.Equal(t, a, locate(id, 7, 13))
		assert.True(t, a.shard >= 0 && a.shard < 7)
		assert.True(t, a.home >= 0 && a.home < 13)
	}
}

func TestCyclicBetween(t *testing.T) {
	assert.True(t, cyclicBetween(2, 2, 5))
	assert.True(t, cyclicBetween(2, 4, 5))
	assert.False(t, cyclicBetween(2, 5, 5))
	assert.False(t, cyclicBetween(2, 1, 5))

	// 区间跨越末尾
	assert.True(t, cyclicBetween(6, 7, 1))
	assert.True(t, cyclicBetween(6, 0, 1))
	assert.False(t, cyclicBetween(6, 3, 1))
}

func TestShard_ProbeWriteRemove(t *testing.T) {
	sh := newShard(0, 4, 32, 0.01)
	body := []byte("payload")

	// 三条记录都以槽位 3 为初始位置，探测回绕
	for i, id := range []string{"a", "b", "c"} {
		idx, found, ok := sh.probe(id, 3)
		require.True(t, ok)
		require.False(t, found)
		assert.Equal(t, (3+i)%4, idx)
		sh.write(idx, id, 3, 0, 0, 0, body)
	}
	sh.write(2, "d", 2, 0, 0, 0, body)

	_, _, ok := sh.probe("e", 0)
	assert.False(t, ok, "full shard")

	sh.remove(3)
	assert.Equal(t, 3, sh.used)

	// b 与 c 前移，d 留在初始槽位
	assert.Equal(t, "b", sh.ids[3])
	assert.Equal(t, "c", sh.ids[0])
	assert.Empty(t, sh.ids[1])
	assert.Equal(t, "d", sh.ids[2])

	for _, id := range []string{"b", "c"} {
		_, found := sh.lookup(id, 3)
		assert.True(t, found, id)
	}
	idx, found := sh.lookup("d", 2)
	require.True(t, found)
	_, _, got, err := sh.payload(idx)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestShard_PayloadRejectsEmptySlot(t *testing.T) {
	sh := newShard(0, 2, 32, 0.01)
	_, _, _, err := sh.payload(1)
	assert.ErrorIs(t, err, ErrCorruptSlot)
}
