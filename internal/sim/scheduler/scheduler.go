// Package scheduler is the primary execution context: one goroutine that owns
// every live world and player. Anything that mutates live state is submitted
// here.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStopped is returned for work submitted after (or not run before) the
// scheduler stopped.
var ErrStopped = errors.New("scheduler stopped")

type repeating struct {
	every time.Duration
	next  time.Time
	fn    func()
}

type Scheduler struct {
	tasks   chan func()
	addRep  chan repeating
	stopped chan struct{}
	started chan struct{}
}

func New() *Scheduler {
	return &Scheduler{
		tasks:   make(chan func(), 1024),
		addRep:  make(chan repeating, 16),
		stopped: make(chan struct{}),
		started: make(chan struct{}),
	}
}

// Run executes tasks until ctx is done. It must be called exactly once.
func (s *Scheduler) Run(ctx context.Context) error {
	close(s.started)
	defer close(s.stopped)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	var reps []repeating
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-s.tasks:
			fn()
		case r := <-s.addRep:
			r.next = time.Now().Add(r.every)
			reps = append(reps, r)
		case now := <-ticker.C:
			for i := range reps {
				if now.Before(reps[i].next) {
					continue
				}
				reps[i].fn()
				reps[i].next = now.Add(reps[i].every)
			}
		}
	}
}

// Submit queues fn without waiting for it.
func (s *Scheduler) Submit(fn func()) error {
	select {
	case <-s.stopped:
		return ErrStopped
	default:
	}
	select {
	case s.tasks <- fn:
		return nil
	case <-s.stopped:
		return ErrStopped
	}
}

// Call runs fn on the scheduler goroutine and waits for its result.
func (s *Scheduler) Call(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	err := s.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				res <- fmt.Errorf("panic in scheduled task: %v", r)
			}
		}()
		res <- fn()
	})
	if err != nil {
		return err
	}
	select {
	case err := <-res:
		return err
	case <-s.stopped:
		select {
		case err := <-res:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Every runs fn on the scheduler roughly every interval.
func (s *Scheduler) Every(interval time.Duration, fn func()) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be > 0")
	}
	select {
	case s.addRep <- repeating{every: interval, fn: fn}:
		return nil
	case <-s.stopped:
		return ErrStopped
	}
}

// Stopped is closed when Run returns.
func (s *Scheduler) Stopped() <-chan struct{} { return s.stopped }
