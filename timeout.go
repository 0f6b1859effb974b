package tempo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/baxromumarov/tempo/chanx"
	"github.com/baxromumarov/tempo/clock"
	"github.com/baxromumarov/tempo/internal/scope"
)

// TimeoutFunc is the fallback of a [Timeout] stream. It runs once the
// source missed its deadline and may emit further values downstream.
// Returning nil completes the stream; an error terminates it.
type TimeoutFunc[T any] func(ctx context.Context, emit Emitter[T]) error

// Timeout returns a stream that mirrors src as long as src produces every
// value within deadline. The deadline is measured from the start of the
// stream for the first value, and for later values from the moment the
// consumer asks for the next one, so time spent by the consumer between
// Next calls never counts against src.
//
// When src misses the deadline it is cancelled and onTimeout runs. A nil
// onTimeout terminates the stream with a [*TimeoutError]. Source errors
// are returned as-is and never turned into a timeout.
//
// Values emitted by onTimeout are delivered as soon as it runs, but the
// terminal state is reported only once the cancelled Next call of src has
// returned. A src that ignores its context delays that until it returns.
//
// A zero deadline times out immediately, before src is pulled. A negative
// deadline is a configuration error wrapping [ErrNegativeDuration].
func Timeout[T any](src *Stream[T], deadline time.Duration, onTimeout TimeoutFunc[T], opts ...Option) (*Stream[T], error) {
	if src == nil {
		panic("tempo: Timeout requires non-nil source stream")
	}
	if deadline < 0 {
		return nil, fmt.Errorf("timeout: %w: %v", ErrNegativeDuration, deadline)
	}
	if onTimeout == nil {
		onTimeout = failOnTimeout[T](deadline)
	}

	t := &timeouter[T]{src: src, deadline: deadline, onTimeout: onTimeout}
	t.op = newOperator("timeout", src, buildConfig(opts), t.run)
	t.op.demand = make(chan struct{}, 1)
	return t.op.stream(), nil
}

func failOnTimeout[T any](deadline time.Duration) TimeoutFunc[T] {
	return func(context.Context, Emitter[T]) error {
		return &TimeoutError{Deadline: deadline}
	}
}

type timeouter[T any] struct {
	src       *Stream[T]
	deadline  time.Duration
	onTimeout TimeoutFunc[T]
	op        *operator[T]
}

func (t *timeouter[T]) run(ctx context.Context, sp scope.Spawner, emit Emitter[T]) error {
	err := t.selectLoop(ctx, sp, emit)
	if !errors.Is(err, errDeadlineExceeded) {
		return err
	}

	t.op.cfg.metrics.TimedOut(t.op.label)
	t.op.log.Debug("deadline exceeded, running fallback", zap.Duration("deadline", t.deadline))
	return t.onTimeout(ctx, emit)
}

func (t *timeouter[T]) selectLoop(ctx context.Context, sp scope.Spawner, emit Emitter[T]) error {
	relay := make(chan message[T])
	sp.Spawn(t.op.label+"/producer", func(ctx context.Context, sub scope.Spawner) error {
		t.produce(ctx, sub, relay)
		return nil
	})

	for {
		ev, err := awaitEvent(ctx, relay, nil)
		if err != nil {
			return err
		}

		m := ev.msg
		switch m.kind {
		case kindValue:
			t.op.cfg.metrics.Received(t.op.label)
			if err := emit(m.val); err != nil {
				return err
			}
		case kindTimedOut:
			return errDeadlineExceeded
		case kindCompleted:
			t.op.log.Debug("source completed")
			return nil
		case kindFailed:
			t.op.log.Debug("source failed", zap.Error(m.err))
			return m.err
		}
	}
}

// produce races every upstream value against the deadline and forwards
// the outcome to relay. src is pulled by a pump task so that a blocking
// Next can be raced against the handle; the pump is joined at teardown.
func (t *timeouter[T]) produce(ctx context.Context, sp scope.Spawner, relay chan<- message[T]) {
	send := func(m message[T]) error {
		return chanx.Send(ctx, relay, m)
	}

	if t.deadline == 0 {
		_ = send(timedOutMsg[T]())
		return
	}

	upCtx, cancelUp := context.WithCancel(ctx)
	defer cancelUp()

	pulled := make(chan message[T])
	sp.Go(t.op.label+"/pump", func(context.Context) error {
		forward(upCtx, t.src, func(m message[T]) error {
			return chanx.Send(upCtx, pulled, m)
		})
		return nil
	})

	h := clock.NewHandle(t.op.cfg.clock)
	defer h.Stop()

	for {
		// Wait for the consumer to ask for a value before the clock starts.
		if _, _, err := chanx.Recv(ctx, t.op.demand); err != nil {
			return
		}

		h.Arm(t.deadline)
		t.op.cfg.metrics.TimerArmed(t.op.label)

		m, ok := t.race(ctx, h, pulled)
		h.Stop()
		if !ok {
			return
		}
		if m.kind == kindTimedOut {
			cancelUp()
		}
		if err := send(m); err != nil || m.kind != kindValue {
			return
		}
	}
}

// race waits for the next pulled message or a live fire of h, whichever
// comes first. A value that is ready when the fire is observed wins.
func (t *timeouter[T]) race(ctx context.Context, h *clock.Handle, pulled <-chan message[T]) (message[T], bool) {
	for {
		ev, err := awaitEvent(ctx, pulled, h.C())
		if err != nil {
			return message[T]{}, false
		}
		if ev.hasMsg {
			return ev.msg, true
		}
		if h.Live(ev.fire) {
			return timedOutMsg[T](), true
		}
	}
}
