package badger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-hypergrid/internal/core/storage/engine"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := New(engine.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, eng.Start())
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestEngine_BasicOps(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.Get([]byte("missing"))
	assert.True(t, engine.IsNotFound(err))

	require.NoError(t, eng.Put([]byte("k"), []byte("v")))
	v, err := eng.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	ok, err := eng.Has([]byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, eng.Delete([]byte("k")))
	ok, err = eng.Has([]byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, eng.Put(nil, []byte("v")), engine.ErrEmptyKey)

	st := eng.Stats()
	assert.Equal(t, int64(1), st.NumWrites)
	assert.Equal(t, int64(1), st.NumDeletes)
	assert.Equal(t, int64(1), st.NumMisses)
}

func TestEngine_BatchIsAtomic(t *testing.T) {
	eng := newTestEngine(t)
	require.NoError(t, eng.Put([]byte("old"), []byte("1")))

	b := eng.NewBatch()
	for i := 0; i < 10; i++ {
		b.Put([]byte(fmt.Sprintf("k%02d", i)), []byte{byte(i)})
	}
	b.Delete([]byte("old"))
	assert.Equal(t, 11, b.Size())

	ok, err := eng.Has([]byte("k00"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Write())
	assert.Equal(t, 0, b.Size())

	ok, err = eng.Has([]byte("old"))
	require.NoError(t, err)
	assert.False(t, ok)
	v, err := eng.Get([]byte("k09"))
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, v)

	b.Put([]byte("never"), nil)
	b.Cancel()
	require.NoError(t, b.Write())
	ok, err = eng.Has([]byte("never"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngine_Iterators(t *testing.T) {
	eng := newTestEngine(t)
	for _, k := range []string{"a/1", "a/2", "a/3", "b/1"} {
		require.NoError(t, eng.Put([]byte(k), []byte(k)))
	}

	collect := func(it engine.Iterator) []string {
		defer it.Close()
		var keys []string
		for it.First(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Key()))
		}
		require.NoError(t, it.Error())
		return keys
	}

	assert.Equal(t, []string{"a/1", "a/2", "a/3"}, collect(eng.NewPrefixIterator([]byte("a/"))))
	assert.Equal(t, []string{"a/2", "a/3"}, collect(eng.NewIterator(&engine.IteratorOptions{
		StartKey: []byte("a/2"),
		EndKey:   []byte("b/"),
	})))
	assert.Equal(t, []string{"a/3", "a/2", "a/1"}, collect(eng.NewIterator(&engine.IteratorOptions{
		Prefix:  []byte("a/"),
		Reverse: true,
	})))
}

func TestEngine_Memory(t *testing.T) {
	eng, err := NewMemory()
	require.NoError(t, err)
	require.NoError(t, eng.Start())

	require.NoError(t, eng.Put([]byte("k"), []byte("v")))
	require.NoError(t, eng.Sync())
	require.NoError(t, eng.Close())

	_, err = eng.Get([]byte("k"))
	assert.ErrorIs(t, err, engine.ErrClosed)
	assert.NoError(t, eng.Close())
}

func TestEngine_ReadOnly(t *testing.T) {
	dir := t.TempDir()
	eng, err := New(engine.DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, eng.Put([]byte("k"), []byte("v")))
	require.NoError(t, eng.Close())

	cfg := engine.DefaultConfig(dir)
	cfg.ReadOnly = true
	ro, err := New(cfg)
	require.NoError(t, err)
	defer ro.Close()

	v, err := ro.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
	assert.ErrorIs(t, ro.Put([]byte("k"), nil), engine.ErrReadOnly)
}
