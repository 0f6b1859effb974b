package tempo

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/baxromumarov/tempo/chanx"
	"github.com/baxromumarov/tempo/clock"
	"github.com/baxromumarov/tempo/internal/scope"
	"github.com/baxromumarov/tempo/metrics"
)

// Debounce returns a stream that emits a value from src only once src has
// been quiet for timeout(value) after it. A newer value replaces the
// pending one and restarts the wait. When src completes, a pending value
// is emitted before completion; when src fails, it is discarded and the
// source error is returned as-is.
//
// A zero timeout emits the value immediately, discarding any older pending
// value. A negative timeout fails the stream with an error wrapping
// [ErrNegativeDuration]; values emitted before it are unaffected.
//
// If a new value and an expired timer are observed in the same wake-up,
// the new value wins and the pending one is dropped.
//
// Debounce panics if src or timeout is nil.
func Debounce[T any](src *Stream[T], timeout func(T) time.Duration, opts ...Option) *Stream[T] {
	if src == nil {
		panic("tempo: Debounce requires non-nil source stream")
	}
	if timeout == nil {
		panic("tempo: Debounce requires non-nil timeout function")
	}

	d := &debouncer[T]{src: src, timeout: timeout}
	d.op = newOperator("debounce", src, buildConfig(opts), d.run)
	return d.op.stream()
}

// DebounceFor is [Debounce] with the same timeout for every value.
// A negative d is a configuration error wrapping [ErrNegativeDuration];
// a zero d returns src unchanged.
func DebounceFor[T any](src *Stream[T], d time.Duration, opts ...Option) (*Stream[T], error) {
	if d < 0 {
		return nil, fmt.Errorf("debounce: %w: %v", ErrNegativeDuration, d)
	}
	if d == 0 {
		return src, nil
	}
	return Debounce(src, func(T) time.Duration { return d }, opts...), nil
}

type debouncer[T any] struct {
	src     *Stream[T]
	timeout func(T) time.Duration
	op      *operator[T]
}

func (d *debouncer[T]) run(ctx context.Context, sp scope.Spawner, emit Emitter[T]) error {
	op := d.op

	relay := make(chan message[T])
	sp.Go(op.label+"/producer", func(ctx context.Context) error {
		forward(ctx, d.src, func(m message[T]) error {
			return chanx.Send(ctx, relay, m)
		})
		return nil
	})

	h := clock.NewHandle(op.cfg.clock)
	defer h.Stop()

	var (
		pending    T
		hasPending bool
	)
	take := func() T {
		v := pending
		var zero T
		pending, hasPending = zero, false
		return v
	}

	for {
		var fires <-chan clock.Fire
		if hasPending {
			fires = h.C()
		}

		ev, err := awaitEvent(ctx, relay, fires)
		if err != nil {
			return err
		}

		if ev.hasMsg {
			m := ev.msg
			switch m.kind {
			case kindValue:
				op.cfg.metrics.Received(op.label)
				dur := d.timeout(m.val)
				if dur < 0 {
					h.Stop()
					return fmt.Errorf("debounce: %w: timeout function returned %v", ErrNegativeDuration, dur)
				}
				if hasPending {
					op.cfg.metrics.Dropped(op.label, metrics.ReasonSuperseded)
					take()
				}
				if dur == 0 {
					h.Stop()
					if err := emit(m.val); err != nil {
						return err
					}
					continue
				}
				pending, hasPending = m.val, true
				h.Arm(dur)
				op.cfg.metrics.TimerArmed(op.label)

			case kindCompleted:
				h.Stop()
				op.log.Debug("source completed", zap.Bool("flush", hasPending))
				if hasPending {
					return emit(take())
				}
				return nil

			case kindFailed:
				h.Stop()
				op.log.Debug("source failed", zap.Error(m.err))
				return m.err
			}
			// A timer fire observed alongside the message is superseded.
			continue
		}

		if ev.hasFire && hasPending && h.Live(ev.fire) {
			if err := emit(take()); err != nil {
				return err
			}
		}
	}
}
