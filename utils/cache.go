package utils

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Default cache ttl when the caller passes none
	defaultCacheTTL = time.Minute
	redisOpTimeout  = 2 * time.Second
)

// RedisPersister stores encoded query cache entries in Redis under a key prefix.
// Every failure is logged and treated as a miss; the in-memory cache stays authoritative.
type RedisPersister struct {
	rc     redis.UniversalClient
	prefix string
}

// NewRedisPersister creates a persister over rc.
func NewRedisPersister(rc redis.UniversalClient, prefix string) *RedisPersister {
	return &RedisPersister{rc: rc, prefix: prefix}
}

// Load returns cached bytes for a key.
func (p *RedisPersister) Load(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	b, err := p.rc.Get(ctx, p.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			Sugar.Debugf("cache get miss key=%s err=%v", key, err)
		}
		return nil, false
	}
	return b, true
}

// Save stores bytes with ttl, or the default ttl when ttl is not positive.
func (p *RedisPersister) Save(ctx context.Context, key string, b []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := p.rc.Set(ctx, p.prefix+key, b, ttl).Err(); err != nil {
		Sugar.Warnf("cache set failed key=%s err=%v", key, err)
	}
}

// Delete removes a key.
func (p *RedisPersister) Delete(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := p.rc.Del(ctx, p.prefix+key).Err(); err != nil {
		Sugar.Warnf("cache delete failed key=%s err=%v", key, err)
	}
}
