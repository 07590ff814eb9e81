package query

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultStaleTime is how long fetched data is served without refetching.
	DefaultStaleTime = 30 * time.Second
	// DefaultGCTime is how long an unobserved entry is kept after its last use.
	DefaultGCTime = 5 * time.Minute
)

// Persister is an optional second tier holding encoded entries, shared across processes.
type Persister interface {
	Load(ctx context.Context, key string) ([]byte, bool)
	Save(ctx context.Context, key string, b []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// rawFetcher loads the value for an entry from its source.
type rawFetcher func(ctx context.Context) (any, error)

// decoder turns second-tier bytes back into an entry value.
type decoder func(b []byte) (any, bool)

type snapshot struct {
	status    Status
	data      any
	hasData   bool
	err       error
	updatedAt time.Time
	stale     bool
	fetching  bool
}

// entry is one cache slot. gen moves on every Invalidate and SetData; a fetch
// result is published only if no newer one has been, and is fresh only if gen
// did not move while it ran.
type entry struct {
	key        Key
	status     Status
	data       any
	hasData    bool
	err        error
	updatedAt  time.Time
	stale      bool
	gen        uint64
	settled    uint64
	running    int
	flying     bool
	flyGen     uint64
	waiters    int
	lastAccess time.Time
	fetcher    rawFetcher
	decode     decoder
	subs       map[int]chan snapshot
}

func (e *entry) snapshot() snapshot {
	return snapshot{
		status:    e.status,
		data:      e.data,
		hasData:   e.hasData,
		err:       e.err,
		updatedAt: e.updatedAt,
		stale:     e.stale,
		fetching:  e.running > 0,
	}
}

// inFlight reports whether a fetch for the current generation is running.
func (e *entry) inFlight() bool {
	return e.flying && e.flyGen == e.gen
}

func flightKey(key Key, gen uint64) string {
	return key.String() + "@" + strconv.FormatUint(gen, 10)
}

// Store is the session-scoped cache. It starts empty and holds at most one
// in-flight fetch per key and generation; Invalidate starts a new generation so
// reads after it never join a fetch that began before it. The zero value is not
// usable; call NewStore.
type Store struct {
	mu        sync.Mutex
	entries   map[Key]*entry
	inflight  singleflight.Group
	staleTime time.Duration
	gcTime    time.Duration
	logger    *zap.Logger
	persister Persister
	now       func() time.Time
	nextSub   int

	hits    atomic.Int64
	misses  atomic.Int64
	fetches atomic.Int64
}

// Option configures a Store.
type Option func(*Store)

// WithStaleTime sets how long successful data counts as fresh. Zero means always stale.
func WithStaleTime(d time.Duration) Option {
	return func(s *Store) {
		s.staleTime = d
	}
}

// WithGCTime sets how long unobserved entries survive after their last use.
func WithGCTime(d time.Duration) Option {
	return func(s *Store) {
		s.gcTime = d
	}
}

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithPersister mirrors successful entries into p.
func WithPersister(p Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries:   map[Key]*entry{},
		staleTime: DefaultStaleTime,
		gcTime:    DefaultGCTime,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats is a point-in-time view of the store.
type Stats struct {
	Entries  int   `json:"entries"`
	InFlight int   `json:"in_flight"`
	Waiters  int   `json:"waiters"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Fetches  int64 `json:"fetches"`
}

// Stats returns counters and the current number of entries and in-flight fetches.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		Entries: len(s.entries),
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Fetches: s.fetches.Load(),
	}
	for _, e := range s.entries {
		st.InFlight += e.running
		st.Waiters += e.waiters
	}
	return st
}

func (s *Store) entryLocked(key Key) *entry {
	e, ok := s.entries[key]
	if !ok {
		e = &entry{key: key, status: StatusIdle, lastAccess: s.now()}
		s.entries[key] = e
	}
	return e
}

func (s *Store) freshLocked(e *entry) bool {
	return e.status == StatusSuccess && e.hasData && !e.stale && s.now().Sub(e.updatedAt) < s.staleTime
}

func (s *Store) register(key Key, fn rawFetcher, decode decoder) {
	s.mu.Lock()
	e := s.entryLocked(key)
	e.fetcher = fn
	e.decode = decode
	e.lastAccess = s.now()
	s.mu.Unlock()
}

func (s *Store) peek(key Key) snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		return e.snapshot()
	}
	return snapshot{status: StatusIdle}
}

// fetch serves fresh data or joins/starts the single in-flight fetch for key.
// The fetch runs detached from ctx; ctx only bounds how long this caller waits.
// An entry without local data is first looked up in the second tier unless force is set.
func (s *Store) fetch(ctx context.Context, key Key, fn rawFetcher, decode decoder, force bool) (snapshot, error) {
	s.mu.Lock()
	e := s.entryLocked(key)
	e.fetcher = fn
	e.decode = decode
	e.lastAccess = s.now()
	if !force && s.freshLocked(e) {
		snap := e.snapshot()
		s.mu.Unlock()
		s.hits.Add(1)
		cacheHits.WithLabelValues(key.Family).Inc()
		return snap, nil
	}
	if !force {
		s.misses.Add(1)
		cacheMisses.WithLabelValues(key.Family).Inc()
		if snap, ok := s.loadTierLocked(ctx, e); ok {
			s.mu.Unlock()
			return snap, nil
		}
		// The lock was released while the tier was read.
		e = s.entryLocked(key)
		e.fetcher = fn
		e.decode = decode
	}

	e.waiters++
	gen := e.gen
	if !e.inFlight() {
		e.flying = true
		e.flyGen = gen
		e.running++
		e.status = StatusPending
		s.notifyLocked(e)
	}
	detached := context.WithoutCancel(ctx)
	ch := s.inflight.DoChan(flightKey(key, gen), func() (any, error) {
		return s.run(detached, key, gen, fn)
	})
	s.mu.Unlock()

	var err error
	select {
	case res := <-ch:
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}

	s.mu.Lock()
	e.waiters--
	snap := e.snapshot()
	s.mu.Unlock()
	return snap, err
}

// loadTierLocked fills an empty entry from the persister. It releases s.mu while
// the persister is read and holds it again on return.
func (s *Store) loadTierLocked(ctx context.Context, e *entry) (snapshot, bool) {
	if s.persister == nil || e.decode == nil || e.hasData || e.inFlight() {
		return snapshot{}, false
	}
	gen, decode := e.gen, e.decode
	s.mu.Unlock()
	b, ok := s.persister.Load(context.WithoutCancel(ctx), e.key.String())
	var v any
	if ok {
		v, ok = decode(b)
	}
	s.mu.Lock()
	if !ok || e.hasData || e.gen != gen || s.entries[e.key] != e {
		return snapshot{}, false
	}
	e.settled = e.gen
	s.publishLocked(e, v, nil, true)
	s.logger.Debug("query loaded from second tier", zap.Stringer("key", e.key))
	return e.snapshot(), true
}

// publishLocked records a fetch outcome. Data from a failed fetch is kept.
func (s *Store) publishLocked(e *entry, v any, err error, fresh bool) {
	if err != nil {
		e.status = StatusError
		e.err = err
	} else {
		e.status = StatusSuccess
		e.data = v
		e.hasData = true
		e.err = nil
		e.updatedAt = s.now()
		e.stale = !fresh
	}
	if e.inFlight() {
		e.status = StatusPending
	}
	s.notifyLocked(e)
}

func (s *Store) run(ctx context.Context, key Key, gen uint64, fn rawFetcher) (any, error) {
	s.fetches.Add(1)
	start := s.now()
	v, err := fn(ctx)

	result := "success"
	if err != nil {
		result = "error"
	}
	cacheFetches.WithLabelValues(key.Family, result).Inc()

	s.mu.Lock()
	// Forget before publishing so a read arriving after this point starts a new fetch
	// instead of joining the one that is about to finish.
	s.inflight.Forget(flightKey(key, gen))
	e := s.entryLocked(key)
	e.running--
	if e.flying && e.flyGen == gen {
		e.flying = false
	}
	current := gen == e.gen
	if gen >= e.settled {
		e.settled = gen
		s.publishLocked(e, v, err, current)
	} else {
		s.notifyLocked(e)
	}
	s.mu.Unlock()

	switch {
	case err != nil:
		s.logger.Debug("query fetch failed", zap.Stringer("key", key), zap.Error(err))
	case !current:
		s.logger.Debug("query fetch outlived its generation", zap.Stringer("key", key))
	default:
		s.logger.Debug("query fetched", zap.Stringer("key", key), zap.Duration("latency", s.now().Sub(start)))
		s.persist(ctx, key, v)
		// An invalidation that raced the save must not leave the old value behind.
		s.mu.Lock()
		moved := e.gen != gen
		s.mu.Unlock()
		if moved {
			s.forget(ctx, key)
		}
	}
	return v, err
}

// Invalidate marks key stale without dropping its data, so the next read refetches.
// Entries with subscribers are refetched before Invalidate returns.
func (s *Store) Invalidate(ctx context.Context, key Key) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		s.forget(ctx, key)
		return
	}
	e.gen++
	e.stale = true
	active := len(e.subs) > 0 && e.fetcher != nil
	fn, decode := e.fetcher, e.decode
	s.notifyLocked(e)
	s.mu.Unlock()

	s.forget(ctx, key)
	s.logger.Debug("query invalidated", zap.Stringer("key", key), zap.Bool("active", active))
	if active {
		// Errors land in the entry state; invalidation itself does not fail.
		_, _ = s.fetch(ctx, key, fn, decode, true)
	}
}

// SetData seeds key with v as fresh, successful data. A fetch already running for
// key cannot overwrite it.
func (s *Store) SetData(ctx context.Context, key Key, v any) {
	s.mu.Lock()
	e := s.entryLocked(key)
	e.gen++
	e.settled = e.gen
	e.lastAccess = s.now()
	s.publishLocked(e, v, nil, true)
	s.mu.Unlock()

	s.persist(ctx, key, v)
}

// GC drops entries nobody observes or fetches that were last used gcTime ago or earlier.
// It returns the number of dropped entries.
func (s *Store) GC() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	dropped := 0
	for key, e := range s.entries {
		if len(e.subs) > 0 || e.running > 0 || e.waiters > 0 {
			continue
		}
		if now.Sub(e.lastAccess) >= s.gcTime {
			delete(s.entries, key)
			dropped++
		}
	}
	return dropped
}

// StartJanitor runs GC every interval until ctx is done.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.GC(); n > 0 {
					s.logger.Debug("query cache gc", zap.Int("dropped", n))
				}
			}
		}
	}()
}

func (s *Store) subscribe(key Key) (<-chan snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(key)
	if e.subs == nil {
		e.subs = map[int]chan snapshot{}
	}
	id := s.nextSub
	s.nextSub++
	ch := make(chan snapshot, 1)
	ch <- e.snapshot()
	e.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if cur, ok := s.entries[key]; ok {
				delete(cur.subs, id)
				cur.lastAccess = s.now()
			}
			close(ch)
		})
	}
}

// notifyLocked pushes the latest snapshot to subscribers, replacing any unread one.
func (s *Store) notifyLocked(e *entry) {
	if len(e.subs) == 0 {
		return
	}
	snap := e.snapshot()
	for _, ch := range e.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (s *Store) persist(ctx context.Context, key Key, v any) {
	if s.persister == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("query persist encode failed", zap.Stringer("key", key), zap.Error(err))
		return
	}
	s.persister.Save(context.WithoutCancel(ctx), key.String(), b, s.staleTime)
}

func (s *Store) forget(ctx context.Context, key Key) {
	if s.persister == nil {
		return
	}
	s.persister.Delete(context.WithoutCancel(ctx), key.String())
}
