package utils

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/blogdeck/query"
)

func newTestPersister(t *testing.T) (*RedisPersister, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return NewRedisPersister(rc, "blogdeck:"), mr
}

func TestRedisPersisterRoundTrip(t *testing.T) {
	p, mr := newTestPersister(t)
	ctx := context.Background()

	p.Save(ctx, "blogs", []byte(`[{"id":"1"}]`), 30*time.Second)
	got, err := mr.Get("blogdeck:blogs")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1"}]`, got)
	assert.Equal(t, 30*time.Second, mr.TTL("blogdeck:blogs"))

	b, ok := p.Load(ctx, "blogs")
	require.True(t, ok)
	assert.Equal(t, []byte(`[{"id":"1"}]`), b)

	p.Delete(ctx, "blogs")
	assert.False(t, mr.Exists("blogdeck:blogs"))
	_, ok = p.Load(ctx, "blogs")
	assert.False(t, ok)
}

func TestRedisPersisterDefaultsTTL(t *testing.T) {
	p, mr := newTestPersister(t)

	p.Save(context.Background(), "blogs/detail:1", []byte(`{}`), 0)
	assert.Equal(t, defaultCacheTTL, mr.TTL("blogdeck:blogs/detail:1"))

	mr.FastForward(defaultCacheTTL)
	_, ok := p.Load(context.Background(), "blogs/detail:1")
	assert.False(t, ok)
}

func TestRedisPersisterFailuresAreMisses(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	rc := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = rc.Close() })
	p := NewRedisPersister(rc, "blogdeck:")
	ctx := context.Background()

	assert.NotPanics(t, func() {
		p.Save(ctx, "blogs", []byte(`[]`), time.Minute)
		p.Delete(ctx, "blogs")
	})
	b, ok := p.Load(ctx, "blogs")
	assert.False(t, ok)
	assert.Nil(t, b)
}

func TestRedisPersisterSharesQueryCache(t *testing.T) {
	p, _ := newTestPersister(t)
	key := query.Key{Family: "blogs"}
	calls := 0
	fetch := func(context.Context) ([]string, error) {
		calls++
		return []string{"first"}, nil
	}

	_, err := query.Use(query.NewStore(query.WithPersister(p)), key, fetch).Fetch(context.Background())
	require.NoError(t, err)

	other := query.NewStore(query.WithPersister(p))
	st, err := query.Use(other, key, fetch).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, st.Data)
	assert.Equal(t, 1, calls)

	other.Invalidate(context.Background(), key)
	_, ok := p.Load(context.Background(), key.String())
	assert.False(t, ok)
}
