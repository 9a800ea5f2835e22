package postgres

import (
	"context"
	"sync"

	"github.com/openst/facilitator/db"
	"github.com/openst/facilitator/observer"
)

type basePostgresRepo struct {
	table string
	db    *db.DB
}

func newBasePostgresRepo(table string, db *db.DB) *basePostgresRepo {
	return &basePostgresRepo{
		table: table,
		db:    db,
	}
}

// observedRepo couples a Subject with the dirty flag. Every save enqueues
// the written entity and marks the repo dirty; Notify flushes at most once
// per dirty period no matter how many saves happened in between.
type observedRepo[T any] struct {
	subject *observer.Subject[T]

	mu    sync.Mutex
	dirty bool
}

func newObservedRepo[T any](keyOf func(T) string) *observedRepo[T] {
	return &observedRepo[T]{
		subject: observer.NewSubject[T](keyOf),
		dirty:   true,
	}
}

func (r *observedRepo[T]) enqueue(t T) {
	r.subject.NewUpdate(t)
	r.mu.Lock()
	r.dirty = true
	r.mu.Unlock()
}

func (r *observedRepo[T]) Notify(ctx context.Context) error {
	r.mu.Lock()
	if !r.dirty {
		r.mu.Unlock()
		return nil
	}
	r.dirty = false
	r.mu.Unlock()
	return r.subject.Notify(ctx)
}

func (r *observedRepo[T]) Attach(o observer.Observer[T]) error {
	return r.subject.Attach(o)
}

func (r *observedRepo[T]) Detach(o observer.Observer[T]) {
	r.subject.Detach(o)
}
