package query

import (
	"context"
	"encoding/json"
	"time"
)

// Fetcher loads the value behind a key.
type Fetcher[T any] func(ctx context.Context) (T, error)

// State is what a reader observes for one key. Data stays set across refetches
// and failures once any fetch has succeeded.
type State[T any] struct {
	Status     Status    `json:"status"`
	Data       T         `json:"data"`
	HasData    bool      `json:"has_data"`
	Err        error     `json:"-"`
	UpdatedAt  time.Time `json:"updated_at"`
	Enabled    bool      `json:"enabled"`
	IsStale    bool      `json:"is_stale"`
	IsFetching bool      `json:"is_fetching"`
}

// Query binds a key to its fetcher inside a Store.
type Query[T any] struct {
	store   *Store
	key     Key
	enabled bool
	raw     rawFetcher
	decode  decoder
}

type queryConfig struct {
	enabled bool
}

// QueryOption configures a Query.
type QueryOption func(*queryConfig)

// Enabled turns fetching on or off. A disabled query never fetches and reports StatusIdle.
func Enabled(on bool) QueryOption {
	return func(c *queryConfig) {
		c.enabled = on
	}
}

// Use binds key to fetch in s.
func Use[T any](s *Store, key Key, fetch Fetcher[T], opts ...QueryOption) *Query[T] {
	cfg := queryConfig{enabled: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	q := &Query[T]{store: s, key: key, enabled: cfg.enabled}
	q.raw = func(ctx context.Context) (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	q.decode = func(b []byte) (any, bool) {
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, false
		}
		return v, true
	}
	if q.enabled {
		s.register(key, q.raw, q.decode)
	}
	return q
}

// Key returns the bound key.
func (q *Query[T]) Key() Key {
	return q.key
}

// State returns the current state without fetching.
func (q *Query[T]) State() State[T] {
	if !q.enabled {
		return State[T]{Status: StatusIdle}
	}
	return toState[T](q.store.peek(q.key), true)
}

// Fetch returns fresh cached data or waits for the single in-flight fetch of the key.
// The returned error is the fetch error, or ctx's error when the caller stopped waiting;
// in the latter case the fetch still completes and updates the cache.
func (q *Query[T]) Fetch(ctx context.Context) (State[T], error) {
	return q.fetch(ctx, false)
}

// Refetch fetches from the source regardless of freshness, skipping the second tier.
// It joins a source fetch already in flight for the current generation.
func (q *Query[T]) Refetch(ctx context.Context) (State[T], error) {
	return q.fetch(ctx, true)
}

func (q *Query[T]) fetch(ctx context.Context, force bool) (State[T], error) {
	if !q.enabled {
		return State[T]{Status: StatusIdle}, nil
	}
	snap, err := q.store.fetch(ctx, q.key, q.raw, q.decode, force)
	return toState[T](snap, true), err
}

// Subscribe streams state changes for the key. Only the latest unread state is kept.
// The entry counts as observed until cancel is called. A disabled query yields one
// idle state and a closed channel.
func (q *Query[T]) Subscribe() (<-chan State[T], func()) {
	out := make(chan State[T], 1)
	if !q.enabled {
		out <- State[T]{Status: StatusIdle}
		close(out)
		return out, func() {}
	}
	raw, cancel := q.store.subscribe(q.key)
	go func() {
		defer close(out)
		for snap := range raw {
			st := toState[T](snap, true)
			select {
			case out <- st:
			default:
				select {
				case <-out:
				default:
				}
				out <- st
			}
		}
	}()
	return out, cancel
}

func toState[T any](snap snapshot, enabled bool) State[T] {
	st := State[T]{
		Status:     snap.status,
		HasData:    snap.hasData,
		Err:        snap.err,
		UpdatedAt:  snap.updatedAt,
		Enabled:    enabled,
		IsStale:    snap.stale,
		IsFetching: snap.fetching,
	}
	if v, ok := snap.data.(T); ok {
		st.Data = v
	}
	return st
}
