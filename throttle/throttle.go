package throttle

import (
	"context"
	"sync"
)

// Policy admits model call attempts. Acquire blocks until the attempt may
// start or ctx is cancelled; the returned release func must be called exactly
// once when the attempt completes, regardless of outcome. Release is
// idempotent so defensive double-calls are harmless.
type Policy interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Unlimited returns the pass-through policy: every attempt is admitted
// immediately.
func Unlimited() Policy { return unlimited{} }

type unlimited struct{}

func (unlimited) Acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return func() {}, nil
}

// MaxConcurrency bounds the number of simultaneously admitted attempts.
// Excess requests queue in FIFO order; releasing a slot admits the oldest
// waiter. The zero value is unusable, construct via NewMaxConcurrency.
type MaxConcurrency struct {
	limit int

	mu      sync.Mutex
	active  int
	waiters []chan struct{}
}

// NewMaxConcurrency creates a bounded policy admitting at most limit
// concurrent attempts. A limit < 1 is treated as 1.
func NewMaxConcurrency(limit int) *MaxConcurrency {
	if limit < 1 {
		limit = 1
	}
	return &MaxConcurrency{limit: limit}
}

// Acquire implements Policy.
func (t *MaxConcurrency) Acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.active < t.limit {
		t.active++
		t.mu.Unlock()
		return t.releaseOnce(), nil
	}

	grant := make(chan struct{}, 1)
	t.waiters = append(t.waiters, grant)
	t.mu.Unlock()

	select {
	case <-grant:
		return t.releaseOnce(), nil
	case <-ctx.Done():
		t.mu.Lock()
		for i, w := range t.waiters {
			if w == grant {
				t.waiters = append(t.waiters[:i], t.waiters[i+1:]...)
				t.mu.Unlock()
				return nil, ctx.Err()
			}
		}
		t.mu.Unlock()
		// The grant raced with cancellation: we already own a slot, so pass
		// it on instead of leaking it.
		t.release()
		return nil, ctx.Err()
	}
}

// Active returns the number of currently admitted attempts.
func (t *MaxConcurrency) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Waiting returns the number of queued admission requests.
func (t *MaxConcurrency) Waiting() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters)
}

func (t *MaxConcurrency) releaseOnce() func() {
	var once sync.Once
	return func() { once.Do(t.release) }
}

// release hands the slot to the oldest waiter, or frees it when the queue is
// empty. The active count is unchanged on hand-off: the slot moves, it is not
// freed and re-acquired, which is what prevents a lost wakeup.
func (t *MaxConcurrency) release() {
	t.mu.Lock()
	if len(t.waiters) > 0 {
		next := t.waiters[0]
		t.waiters = t.waiters[1:]
		t.mu.Unlock()
		next <- struct{}{}
		return
	}
	t.active--
	t.mu.Unlock()
}
