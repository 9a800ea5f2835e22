// Package observer provides the one-to-many change-notification primitive
// the repositories are built on. A Subject accumulates pending updates,
// de-duplicated by a caller-supplied key, and flushes them as one batch to
// every attached observer.
package observer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

var ErrAlreadyAttached = errors.New("observer is already attached")

// Observer receives the full batch of pending updates on every flush.
type Observer[T any] interface {
	Update(ctx context.Context, batch []T) error
}

// Subject holds an ordered list of pending updates and the attached
// observers. A new update for an already-pending key replaces the old entry
// and moves the key to the end of the list, so observers see at most one
// entry per key per flush, reflecting the most recent write.
type Subject[T any] struct {
	mu        sync.Mutex
	keyOf     func(T) string
	pending   []T
	observers []Observer[T]
}

func NewSubject[T any](keyOf func(T) string) *Subject[T] {
	return &Subject[T]{
		keyOf: keyOf,
	}
}

// NewUpdate enqueues an update, last-write-wins per key.
func (s *Subject[T]) NewUpdate(t T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.keyOf(t)
	for i, pending := range s.pending {
		if s.keyOf(pending) == key {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	s.pending = append(s.pending, t)
}

// PendingCount reports the number of queued updates.
func (s *Subject[T]) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Attach registers an observer, failing fast on double registration.
func (s *Subject[T]) Attach(o Observer[T]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, attached := range s.observers {
		if attached == o {
			return fmt.Errorf("%w: %T", ErrAlreadyAttached, o)
		}
	}
	s.observers = append(s.observers, o)
	return nil
}

// Detach removes an observer, a no-op if it was never attached.
func (s *Subject[T]) Detach(o Observer[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, attached := range s.observers {
		if attached == o {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// Notify atomically takes the pending batch and delivers it to every
// attached observer concurrently, waiting for all of them before returning.
// With nothing pending it returns immediately and no observer is called.
func (s *Subject[T]) Notify(ctx context.Context) error {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.pending
	s.pending = nil
	observers := make([]Observer[T], len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, o := range observers {
		o := o
		g.Go(func() error {
			return o.Update(gctx, batch)
		})
	}
	return g.Wait()
}
