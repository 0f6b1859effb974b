package tempo

import (
	"context"
	"io"
	"sync/atomic"
	"time"
)

// at schedules val at offset from the first Next call of the source.
type at[T any] struct {
	offset time.Duration
	val    T
}

// scheduled returns a source that emits each item at its offset from the
// first Next call, then ends at the end offset with err (io.EOF when nil).
// Offsets are absolute so sleep overshoot does not accumulate.
func scheduled[T any](items []at[T], end time.Duration, err error) *Stream[T] {
	if err == nil {
		err = io.EOF
	}

	var start time.Time
	var idx int
	return NewStream(func(ctx context.Context) (T, error) {
		var zero T
		if start.IsZero() {
			start = time.Now()
		}

		offset, done := end, idx >= len(items)
		if !done {
			offset = items[idx].offset
		}
		if err := sleepUntil(ctx, start.Add(offset)); err != nil {
			return zero, err
		}
		if done {
			return zero, err
		}

		v := items[idx].val
		idx++
		return v, nil
	})
}

func sleepUntil(ctx context.Context, deadline time.Time) error {
	d := time.Until(deadline)
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// endless returns a source producing 0, 1, 2, ... every interval until its
// context is cancelled. pulls counts Next calls.
func endless(interval time.Duration, pulls *atomic.Int64) *Stream[int] {
	var n int
	return NewStream(func(ctx context.Context) (int, error) {
		if pulls != nil {
			pulls.Add(1)
		}
		if err := sleepUntil(ctx, time.Now().Add(interval)); err != nil {
			return 0, err
		}
		n++
		return n - 1, nil
	})
}

// failing returns a source that emits vals and then fails with err.
func failing[T any](err error, vals ...T) *Stream[T] {
	var idx int
	return NewStream(func(ctx context.Context) (T, error) {
		if idx >= len(vals) {
			var zero T
			return zero, err
		}
		idx++
		return vals[idx-1], nil
	})
}

type nextResult[T any] struct {
	val T
	err error
}

// nextAsync calls s.Next on a new goroutine.
func nextAsync[T any](ctx context.Context, s *Stream[T]) <-chan nextResult[T] {
	ch := make(chan nextResult[T], 1)
	go func() {
		v, err := s.Next(ctx)
		ch <- nextResult[T]{val: v, err: err}
	}()
	return ch
}
