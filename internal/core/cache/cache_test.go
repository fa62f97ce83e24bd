package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewFromClient(rdb), mr
}

type top struct {
	Names []string `json:"names"`
}

func TestGetOrLoadJSON_CachesUntilEvicted(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	calls := 0
	load := func(context.Context) (top, error) {
		calls++
		return top{Names: []string{"Fiction"}}, nil
	}

	v, err := GetOrLoadJSON(ctx, c, "reports:test", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, []string{"Fiction"}, v.Names)
	assert.True(t, mr.Exists("reports:test"))

	_, err = GetOrLoadJSON(ctx, c, "reports:test", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	require.NoError(t, c.Evict(ctx, "reports:test"))
	assert.False(t, mr.Exists("reports:test"))

	_, err = GetOrLoadJSON(ctx, c, "reports:test", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetOrLoadJSON_LoadErrorNotCached(t *testing.T) {
	c, mr := newTestCache(t)
	boom := errors.New("boom")

	_, err := GetOrLoadJSON(context.Background(), c, "k", time.Minute, func(context.Context) (top, error) {
		return top{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestGetOrLoadJSON_ReloadsUndecodableEntry(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("reports:test", `["old","shape"]`))

	v, err := GetOrLoadJSON(context.Background(), c, "reports:test", time.Minute, func(context.Context) (top, error) {
		return top{Names: []string{"Poetry"}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Poetry"}, v.Names)

	got, err := mr.Get("reports:test")
	require.NoError(t, err)
	assert.JSONEq(t, `{"names":["Poetry"]}`, got)
}

func TestEvict_MissingKey(t *testing.T) {
	c, _ := newTestCache(t)
	assert.NoError(t, c.Evict(context.Background(), "nope"))
	assert.NoError(t, c.Evict(context.Background()))
}
