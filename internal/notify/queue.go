package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	gosync "sync"
	"time"

	"github.com/nhle/taskboard/internal/model"
)

var (
	// ErrQueueFull is returned when the backlog is at capacity; the
	// notification stays stored but is not mailed.
	ErrQueueFull = errors.New("delivery queue full")

	// ErrQueueClosed is returned after Close.
	ErrQueueClosed = errors.New("delivery queue closed")
)

type delivery struct {
	to model.User
	n  model.Notification
}

// Queue hands notifications to another Deliverer from a single background
// worker. Deliver never blocks on the transport, and each attempt gets its
// own timeout.
type Queue struct {
	next    Deliverer
	timeout time.Duration
	jobs    chan delivery
	wg      gosync.WaitGroup

	mu     gosync.Mutex
	closed bool
}

var _ Deliverer = (*Queue)(nil)

// NewQueue starts a queue holding at most size pending deliveries.
func NewQueue(next Deliverer, size int, timeout time.Duration) *Queue {
	if size <= 0 {
		size = 1
	}
	q := &Queue{
		next:    next,
		timeout: timeout,
		jobs:    make(chan delivery, size),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// Deliver enqueues n for to. The caller's context is not carried over: the
// request that produced n usually ends before the mail goes out.
func (q *Queue) Deliver(_ context.Context, to model.User, n model.Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- delivery{to: to, n: n}:
		return nil
	default:
		return fmt.Errorf("notification %d: %w", n.ID, ErrQueueFull)
	}
}

func (q *Queue) run() {
	defer q.wg.Done()
	for d := range q.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		if err := q.next.Deliver(ctx, d.to, d.n); err != nil {
			log.Printf("[notify] delivery of notification %d failed: %v", d.n.ID, err)
		}
		cancel()
	}
}

// Close stops accepting deliveries and waits for the backlog to drain or
// ctx to end, whichever comes first.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining delivery queue: %w", ctx.Err())
	}
}
