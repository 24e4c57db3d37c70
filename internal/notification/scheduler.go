package notification

import (
	"context"
	"sync"
	"time"

	"github.com/australis-energy/leadgate/internal/conf"
	"github.com/australis-energy/leadgate/internal/errors"
	"github.com/australis-energy/leadgate/internal/observability/metrics"
)

// RetryPolicy controls background redelivery. Retry n waits
// BaseDelay * 2^(n-1).
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Default retry settings: 2s, 4s and 8s between four attempts.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 2 * time.Second
)

// DefaultMaxInFlight bounds the number of pending optimistic deliveries.
const DefaultMaxInFlight = 1024

// DefaultRetryPolicy returns the standard backoff policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultBaseDelay}
}

// Delay returns the wait before retry n (1-based).
func (p RetryPolicy) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	return p.BaseDelay << (retry - 1)
}

// MaxAttempts is the initial attempt plus all retries.
func (p RetryPolicy) MaxAttempts() int {
	return p.MaxRetries + 1
}

// Exhaustion describes an optimistic delivery that was given up.
type Exhaustion struct {
	TaskID   string
	Category Category
	Reason   string // metrics.ReasonRetries, ReasonCapacity or ReasonAbandoned
	Attempts int
	Err      error // last delivery error, if any attempt was made
}

var (
	errCapacity = errors.NewStd("optimistic dispatch dropped: in-flight limit reached")
	errClosed   = errors.NewStd("optimistic dispatch dropped: client is closed")
)

// stopper is the part of *time.Timer the scheduler needs.
type stopper interface {
	Stop() bool
}

type timerFunc func(d time.Duration, f func()) stopper

func realTimer(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

// task is one optimistic delivery. Mutable fields are guarded by scheduler.mu.
type task struct {
	id       string
	ctx      context.Context
	req      *Request
	endpoint conf.Endpoint

	attempts  int
	timer     stopper
	lastErr   error
	abandoned bool
}

// scheduler runs optimistic deliveries with retries on cancellable timers,
// tracking every pending task so shutdown can drain or abandon them.
type scheduler struct {
	policy      RetryPolicy
	maxInFlight int
	after       timerFunc

	attempt     func(ctx context.Context, t *task) error
	onRetry     func(t *task, attempt int, delay time.Duration)
	onExhausted func(ctx context.Context, ex Exhaustion)
	onInFlight  func(n int)

	mu         sync.Mutex
	tasks      map[string]*task
	closed     bool
	abandoning bool
	wg         sync.WaitGroup
}

func newScheduler(policy RetryPolicy, maxInFlight int, after timerFunc) *scheduler {
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	if after == nil {
		after = realTimer
	}
	return &scheduler{
		policy:      policy,
		maxInFlight: maxInFlight,
		after:       after,
		attempt:     func(context.Context, *task) error { return nil },
		onRetry:     func(*task, int, time.Duration) {},
		onExhausted: func(context.Context, Exhaustion) {},
		onInFlight:  func(int) {},
		tasks:       make(map[string]*task),
	}
}

// submit admits t and starts its first attempt. A refused task is reported
// as exhausted on its own goroutine and the refusal is returned.
func (s *scheduler) submit(t *task) error {
	s.mu.Lock()
	var refused error
	var reason string
	switch {
	case s.closed:
		refused, reason = errClosed, metrics.ReasonAbandoned
	case len(s.tasks) >= s.maxInFlight:
		refused, reason = errCapacity, metrics.ReasonCapacity
		// admitted tasks hold the counter above zero, so close still waits
		s.wg.Add(1)
	default:
		s.tasks[t.id] = t
		s.wg.Add(1)
	}
	n := len(s.tasks)
	s.mu.Unlock()

	if refused != nil {
		go s.reportRefused(t, reason, refused)
		return refused
	}

	s.onInFlight(n)
	go s.run(t)
	return nil
}

// reportRefused signals exhaustion for a task that was never admitted.
// Capacity refusals are counted in wg; refusals after close are not.
func (s *scheduler) reportRefused(t *task, reason string, refused error) {
	if reason == metrics.ReasonCapacity {
		defer s.wg.Done()
	}
	s.onExhausted(t.ctx, Exhaustion{
		TaskID:   t.id,
		Category: t.req.Category,
		Reason:   reason,
		Err:      refused,
	})
}

// run makes one attempt and either finishes t or arms the next retry.
func (s *scheduler) run(t *task) {
	s.mu.Lock()
	t.attempts++
	attempt := t.attempts
	s.mu.Unlock()

	err := s.attempt(t.ctx, t)
	if err == nil {
		s.finish(t, nil)
		return
	}

	s.mu.Lock()
	t.lastErr = err
	if t.abandoned || s.abandoning {
		s.mu.Unlock()
		s.finish(t, &Exhaustion{TaskID: t.id, Category: t.req.Category, Reason: metrics.ReasonAbandoned, Attempts: attempt, Err: err})
		return
	}
	if attempt >= s.policy.MaxAttempts() {
		s.mu.Unlock()
		s.finish(t, &Exhaustion{TaskID: t.id, Category: t.req.Category, Reason: metrics.ReasonRetries, Attempts: attempt, Err: err})
		return
	}
	delay := s.policy.Delay(attempt)
	t.timer = s.after(delay, func() { s.run(t) })
	s.mu.Unlock()

	s.onRetry(t, attempt, delay)
}

func (s *scheduler) finish(t *task, ex *Exhaustion) {
	defer s.wg.Done()

	s.mu.Lock()
	delete(s.tasks, t.id)
	n := len(s.tasks)
	s.mu.Unlock()

	s.onInFlight(n)
	if ex != nil {
		s.onExhausted(t.ctx, *ex)
	}
}

// inFlight returns the number of admitted, unfinished tasks.
func (s *scheduler) inFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// close stops admission and waits for pending tasks until ctx is done.
// Tasks still waiting on a retry timer are then abandoned and reported.
// An attempt already running is not interrupted; it reports itself as
// abandoned if it fails.
func (s *scheduler) close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	type abandonedTask struct {
		t  *task
		ex Exhaustion
	}
	var stopped []abandonedTask

	s.mu.Lock()
	s.abandoning = true
	for _, t := range s.tasks {
		t.abandoned = true
		if t.timer != nil && t.timer.Stop() {
			stopped = append(stopped, abandonedTask{t: t, ex: Exhaustion{
				TaskID:   t.id,
				Category: t.req.Category,
				Reason:   metrics.ReasonAbandoned,
				Attempts: t.attempts,
				Err:      t.lastErr,
			}})
		}
	}
	s.mu.Unlock()

	for _, a := range stopped {
		s.finish(a.t, &a.ex)
	}
	return ctx.Err()
}
