package tempo

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// Stream represents a structured, pull-based data stream.
//
// Note: Streams are single-consumer. Next() and other terminal methods
// must not be called concurrently.
type Stream[T any] struct {
	next func(ctx context.Context) (T, error)
	stop func()

	busy     atomic.Bool
	stopOnce sync.Once

	err error
	mu  sync.Mutex
}

// NewStream creates a new stream from an iterator function.
// The function returns io.EOF when the stream is exhausted.
func NewStream[T any](next func(context.Context) (T, error)) *Stream[T] {
	if next == nil {
		panic("tempo: NewStream requires non-nil next function")
	}
	return &Stream[T]{
		next: next,
	}
}

// Next returns the next item in the stream.
// Returns io.EOF when the stream is exhausted.
//
// Next panics if called concurrently on the same stream.
func (s *Stream[T]) Next(ctx context.Context) (T, error) {
	if !s.busy.CompareAndSwap(false, true) {
		panic("tempo: concurrent Next on a single-consumer stream")
	}
	defer s.busy.Store(false)

	val, err := s.next(ctx)
	if err != nil && err != io.EOF {
		s.setError(err)
	}
	return val, err
}

// Err returns the first non-EOF error returned by Next.
func (s *Stream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stop abandons the stream: the consumer will not call Next again.
// Any goroutines behind the stream are cancelled and joined before Stop
// returns, and the stop propagates upstream. Stop is idempotent.
func (s *Stream[T]) Stop() {
	s.stopOnce.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}

func (s *Stream[T]) setError(err error) {
	if err == nil || err == io.EOF {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// FromSlice creates a stream from a slice.
func FromSlice[T any](items []T) *Stream[T] {
	var idx int
	return NewStream(func(ctx context.Context) (T, error) {
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		default:
		}
		if idx >= len(items) {
			var zero T
			return zero, io.EOF
		}
		val := items[idx]
		idx++
		return val, nil
	})
}

// FromChan creates a stream from a channel. The stream ends when ch is
// closed.
func FromChan[T any](ch <-chan T) *Stream[T] {
	return NewStream(func(ctx context.Context) (T, error) {
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case v, ok := <-ch:
			if !ok {
				var zero T
				return zero, io.EOF
			}
			return v, nil
		}
	})
}

// FromFunc creates a stream from a function.
func FromFunc[T any](fn func(context.Context) (T, error)) *Stream[T] {
	return NewStream(fn)
}

// Take limits the stream to n items. Once n items have been returned the
// source is stopped.
func (s *Stream[T]) Take(n int) *Stream[T] {
	var idx int
	return &Stream[T]{
		next: func(ctx context.Context) (T, error) {
			if idx >= n {
				s.Stop()
				var zero T
				return zero, io.EOF
			}
			val, err := s.Next(ctx)
			if err != nil {
				return val, err
			}
			idx++
			return val, nil
		},
		stop: s.Stop,
	}
}

// ToSlice collects all items in the stream into a slice.
// On error it returns the items collected so far alongside the error.
// The stream is stopped before ToSlice returns.
func (s *Stream[T]) ToSlice(ctx context.Context) ([]T, error) {
	defer s.Stop()

	var items []T
	for {
		val, err := s.Next(ctx)
		if err == io.EOF {
			return items, nil
		}
		if err != nil {
			return items, err
		}
		items = append(items, val)
	}
}

// Collect is an alias for ToSlice.
func (s *Stream[T]) Collect(ctx context.Context) ([]T, error) {
	return s.ToSlice(ctx)
}

// ForEach applies a function to each item in the stream. An error from fn
// stops the stream and is returned.
func (s *Stream[T]) ForEach(ctx context.Context, fn func(T) error) error {
	defer s.Stop()

	for {
		val, err := s.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(val); err != nil {
			return err
		}
	}
}
