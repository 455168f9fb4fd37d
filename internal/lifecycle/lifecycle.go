// Package lifecycle tracks a value that is loaded once in the background.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

type State int

const (
	Uninitialized State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Snapshot is an immutable view of a Loader. Value is set only when State
// is Ready and Err only when State is Failed.
type Snapshot[T any] struct {
	State State
	Value T
	Err   error
}

// Loader runs a load function once and publishes its outcome atomically.
type Loader[T any] struct {
	current atomic.Pointer[Snapshot[T]]
	once    sync.Once
	done    chan struct{}
}

func NewLoader[T any]() *Loader[T] {
	l := &Loader[T]{done: make(chan struct{})}
	l.current.Store(&Snapshot[T]{State: Uninitialized})
	return l
}

// Snapshot returns the current state.
func (l *Loader[T]) Snapshot() Snapshot[T] {
	return *l.current.Load()
}

// Start runs load in a new goroutine. Only the first call has any effect.
// A panic in load is reported as a failure.
func (l *Loader[T]) Start(ctx context.Context, load func(context.Context) (T, error)) {
	l.once.Do(func() {
		l.current.Store(&Snapshot[T]{State: Loading})
		go l.run(ctx, load)
	})
}

// Load runs load on the calling goroutine. Only the first call of Load or
// Start has any effect.
func (l *Loader[T]) Load(ctx context.Context, load func(context.Context) (T, error)) Snapshot[T] {
	l.once.Do(func() {
		l.current.Store(&Snapshot[T]{State: Loading})
		l.run(ctx, load)
	})
	return l.Snapshot()
}

func (l *Loader[T]) run(ctx context.Context, load func(context.Context) (T, error)) {
	defer close(l.done)
	start := time.Now()

	value, err := func() (value T, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic during load: %v", r)
			}
		}()
		return load(ctx)
	}()

	if err != nil {
		l.current.Store(&Snapshot[T]{State: Failed, Err: err})
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Load failed")
		return
	}
	l.current.Store(&Snapshot[T]{State: Ready, Value: value})
	log.Info().Dur("elapsed", time.Since(start)).Msg("Load finished")
}

// Wait blocks until loading has finished or ctx is done.
func (l *Loader[T]) Wait(ctx context.Context) (Snapshot[T], error) {
	if l.Snapshot().State == Uninitialized {
		return l.Snapshot(), errors.New("loader not started")
	}
	select {
	case <-l.done:
		return l.Snapshot(), nil
	case <-ctx.Done():
		return l.Snapshot(), ctx.Err()
	}
}
