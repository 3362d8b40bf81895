// ABOUTME: Client-side read model: cached query results keyed by query identity.
// ABOUTME: Invalidating a key refetches it when observers are subscribed; mutations report via callbacks.
package query

import (
	"context"
	"sync"
	"time"
)

// Key identifies a query, e.g. "posts.getAll".
type Key string

// Status is the lifecycle stage of a query.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// State is a snapshot of a query.
type State[T any] struct {
	Status    Status
	Data      T
	HasData   bool
	Err       error
	Fetching  bool
	Stale     bool
	UpdatedAt time.Time
}

// Fetcher loads a query's data.
type Fetcher[T any] func(ctx context.Context) (T, error)

type invalidator interface {
	invalidate(ctx context.Context)
}

// Cache holds the registered queries.
type Cache struct {
	mu      sync.Mutex
	queries map[Key]invalidator
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{queries: make(map[Key]invalidator)}
}

// Invalidate marks key stale. When the query has subscribers it is refetched
// before Invalidate returns. Unknown keys are ignored.
func (c *Cache) Invalidate(ctx context.Context, key Key) {
	c.mu.Lock()
	q, ok := c.queries[key]
	c.mu.Unlock()
	if ok {
		q.invalidate(ctx)
	}
}

// Query is a cached, observable fetch.
type Query[T any] struct {
	key   Key
	fetch Fetcher[T]

	mu     sync.Mutex
	state  State[T]
	subs   map[int]chan State[T]
	nextID int

	// gen advances on every fetch start and invalidation. Only a fetch that
	// still holds the current generation may record its result.
	gen      uint64
	inflight int
}

// NewQuery registers a query under key in c, replacing any previous registration.
func NewQuery[T any](c *Cache, key Key, fetch Fetcher[T]) *Query[T] {
	q := &Query[T]{
		key:   key,
		fetch: fetch,
		subs:  make(map[int]chan State[T]),
	}
	c.mu.Lock()
	c.queries[key] = q
	c.mu.Unlock()
	return q
}

// Key returns the query's identity.
func (q *Query[T]) Key() Key {
	return q.key
}

// State returns the current snapshot.
func (q *Query[T]) State() State[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Subscribe returns a channel carrying the current state followed by every
// change. Slow readers only see the latest state. The returned func
// unsubscribes and closes the channel.
func (q *Query[T]) Subscribe() (<-chan State[T], func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := q.nextID
	q.nextID++
	ch := make(chan State[T], 1)
	ch <- q.state
	q.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			q.mu.Lock()
			defer q.mu.Unlock()
			delete(q.subs, id)
			close(ch)
		})
	}
}

// Observers returns the number of active subscribers.
func (q *Query[T]) Observers() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.subs)
}

// Fetch runs the fetcher and records the outcome. Previous data is kept
// while refetching and after a failed refetch. A result is discarded when
// another fetch started or the query was invalidated in the meantime.
func (q *Query[T]) Fetch(ctx context.Context) State[T] {
	q.mu.Lock()
	q.gen++
	gen := q.gen
	q.inflight++
	if !q.state.HasData {
		q.state.Status = StatusLoading
	}
	q.state.Fetching = true
	q.publishLocked()
	q.mu.Unlock()

	data, err := q.fetch(ctx)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.inflight--
	q.state.Fetching = q.inflight > 0

	if gen != q.gen {
		if q.inflight == 0 && !q.state.HasData && q.state.Status == StatusLoading {
			q.state.Status = StatusIdle
		}
		if !q.state.Fetching {
			q.publishLocked()
		}
		return q.state
	}

	q.state.UpdatedAt = time.Now()
	if err != nil {
		q.state.Status = StatusError
		q.state.Err = err
	} else {
		q.state.Status = StatusSuccess
		q.state.Data = data
		q.state.HasData = true
		q.state.Err = nil
		q.state.Stale = false
	}
	q.publishLocked()
	return q.state
}

func (q *Query[T]) invalidate(ctx context.Context) {
	q.mu.Lock()
	q.gen++
	q.state.Stale = true
	active := len(q.subs) > 0
	q.mu.Unlock()

	if active {
		q.Fetch(ctx)
	}
}

// publishLocked delivers the state to every subscriber, replacing any
// undelivered older state. Callers hold q.mu.
func (q *Query[T]) publishLocked() {
	for _, ch := range q.subs {
		select {
		case ch <- q.state:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- q.state
		}
	}
}
