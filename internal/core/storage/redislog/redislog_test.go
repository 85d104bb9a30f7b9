package redislog

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestLog 连接 HYPERGRID_TEST_REDIS 指定的 Redis，未设置时跳过
func newTestLog(t *testing.T) *Log {
	t.Helper()
	addr := os.Getenv("HYPERGRID_TEST_REDIS")
	if addr == "" {
		t.Skip("HYPERGRID_TEST_REDIS not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())

	prefix := "hypergrid-test-" + uuid.NewString()
	l := New(client, prefix)
	t.Cleanup(func() {
		client.Del(context.Background(), l.entriesKey, l.snapshotKey)
		_ = client.Close()
	})
	return l
}

func TestLog_ReplayAndSnapshot(t *testing.T) {
	ctx := context.Background()
	l := newTestLog(t)

	require.NoError(t, l.Append(ctx, "b", 2, []byte("b2")))
	require.NoError(t, l.Append(ctx, "a", 2, []byte("a2")))
	require.NoError(t, l.Append(ctx, "a", 1, []byte("a1")))
	require.NoError(t, l.Append(ctx, "c", 9, []byte("c9")))

	entries, err := l.ReplaySince(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "b", entries[1].ID)
	assert.Equal(t, int64(9), entries[2].Timestamp)

	_, _, ok, err := l.LoadLatestSnapshot(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.SaveSnapshot(ctx, 2, []byte("snap")))
	ts, data, ok, err := l.LoadLatestSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), ts)
	assert.Equal(t, []byte("snap"), data)

	entries, err = l.ReplaySince(ctx, -1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c", entries[0].ID)
}

func TestLog_Closed(t *testing.T) {
	l := New(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "")
	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.Append(context.Background(), "x", 1, nil), ErrClosed)
	assert.ErrorIs(t, l.Append(context.Background(), "", 1, nil), ErrClosed)
}

func TestLog_EmptyID(t *testing.T) {
	l := New(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "p")
	defer l.client.Close()
	assert.ErrorIs(t, l.Append(context.Background(), "", 1, nil), ErrEmptyID)
	assert.Equal(t, "p:log:entries", l.entriesKey)
}
