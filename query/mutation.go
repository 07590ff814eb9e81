package query

import (
	"context"
	"sync"
)

// MutationFunc performs one side-effecting call.
type MutationFunc[I, O any] func(ctx context.Context, in I) (O, error)

// MutationOptions holds hooks that run around every invocation.
type MutationOptions[I, O any] struct {
	// OnSuccess runs after a successful call and before any per-call continuation.
	// It is where cache entries are invalidated or seeded. An error fails the mutation.
	OnSuccess func(ctx context.Context, out O, in I) error
	// OnError runs after a failed call.
	OnError func(ctx context.Context, err error, in I)
}

// MutationState is what a caller observes for the latest invocation of a mutation.
type MutationState[O any] struct {
	Status Status `json:"status"`
	Data   O      `json:"data"`
	Err    error  `json:"-"`
}

// Mutation issues exactly one call per Mutate; invocations are never deduplicated.
type Mutation[I, O any] struct {
	store *Store
	fn    MutationFunc[I, O]
	opts  MutationOptions[I, O]

	mu    sync.Mutex
	seq   uint64
	state MutationState[O]
}

// NewMutation creates a mutation bound to s.
func NewMutation[I, O any](s *Store, fn MutationFunc[I, O], opts MutationOptions[I, O]) *Mutation[I, O] {
	return &Mutation[I, O]{store: s, fn: fn, opts: opts}
}

// Store returns the store the mutation keeps in sync.
func (m *Mutation[I, O]) Store() *Store {
	return m.store
}

// State returns the state of the latest invocation.
func (m *Mutation[I, O]) State() MutationState[O] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reset returns the mutation to idle.
func (m *Mutation[I, O]) Reset() {
	m.mu.Lock()
	m.seq++
	m.state = MutationState[O]{}
	m.mu.Unlock()
}

// Mutate runs the call, then OnSuccess, then each continuation in order.
// Continuations never run after a failure. If ctx ends first the call and OnSuccess
// still complete, but the result is discarded and continuations are skipped.
func (m *Mutation[I, O]) Mutate(ctx context.Context, in I, onSuccess ...func(O)) (O, error) {
	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.state = MutationState[O]{Status: StatusPending}
	m.mu.Unlock()

	type result struct {
		out O
		err error
	}
	done := make(chan result, 1)
	detached := context.WithoutCancel(ctx)
	go func() {
		out, err := m.fn(detached, in)
		if err == nil && m.opts.OnSuccess != nil {
			err = m.opts.OnSuccess(detached, out, in)
		}
		if err != nil && m.opts.OnError != nil {
			m.opts.OnError(detached, err, in)
		}
		m.settle(seq, out, err)
		done <- result{out: out, err: err}
	}()

	var zero O
	select {
	case res := <-done:
		if res.err != nil {
			return zero, res.err
		}
		for _, fn := range onSuccess {
			fn(res.out)
		}
		return res.out, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (m *Mutation[I, O]) settle(seq uint64, out O, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq != m.seq {
		return
	}
	if err != nil {
		m.state = MutationState[O]{Status: StatusError, Err: err}
		return
	}
	m.state = MutationState[O]{Status: StatusSuccess, Data: out}
}
