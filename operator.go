package tempo

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/baxromumarov/tempo/chanx"
	"github.com/baxromumarov/tempo/internal/scope"
)

// Emitter delivers one value downstream. It blocks until the consumer
// takes the value and returns an error once the consumer is gone.
type Emitter[T any] func(T) error

// selectFunc is the body of an operator: it spawns the producer into sp,
// runs the selector loop and returns the stream's terminal error
// (nil for normal completion).
type selectFunc[T any] func(ctx context.Context, sp scope.Spawner, emit Emitter[T]) error

// operator runs a selectFunc behind a Stream. Tasks start on the first
// Next call and are joined before the consumer observes a terminal state.
// They keep the values of the first call's context but not its
// cancellation: a Next context bounds only that call, and Stop tears the
// tasks down.
type operator[T any] struct {
	label string
	cfg   config
	log   *zap.Logger
	src   *Stream[T]
	body  selectFunc[T]

	// demand receives a token when a Next call starts waiting for a value,
	// for bodies that must know the consumer is done with the previous one.
	// owed counts values already requested by Next calls that gave up; the
	// calls receiving them send no token. Only the consumer touches owed.
	demand chan struct{}
	owed   int

	startOnce sync.Once
	sc        *scope.Scope
	out       chan T
	err       error // set by the selector task before out is closed

	stopped    atomic.Bool
	finishOnce sync.Once
	final      error
}

func newOperator[T any](kind string, src *Stream[T], cfg config, body selectFunc[T]) *operator[T] {
	label := kind
	if cfg.name != "" {
		label = cfg.name
	}
	return &operator[T]{
		label: label,
		cfg:   cfg,
		log:   cfg.logger.With(zap.String("operator", label)),
		src:   src,
		body:  body,
	}
}

func (op *operator[T]) stream() *Stream[T] {
	return &Stream[T]{
		next: op.next,
		stop: op.stop,
	}
}

func (op *operator[T]) start(ctx context.Context) {
	sc, sp := scope.New(context.WithoutCancel(ctx),
		scope.WithPanicAsError(),
		scope.WithOnStart(func(info scope.TaskInfo) {
			op.cfg.metrics.TaskStarted(op.label)
			op.log.Debug("task started", zap.String("task", info.Name))
		}),
		scope.WithOnDone(func(info scope.TaskInfo, err error, elapsed time.Duration) {
			op.cfg.metrics.TaskDone(op.label)
			op.log.Debug("task done",
				zap.String("task", info.Name),
				zap.Duration("elapsed", elapsed),
				zap.Error(err),
			)
		}),
	)
	op.sc = sc
	op.out = make(chan T)

	sp.Spawn(op.label+"/selector", func(ctx context.Context, sp scope.Spawner) error {
		defer close(op.out)
		// Producers exit once the selector is done, whatever the reason.
		defer sc.Cancel(errFinished)

		if err := op.body(ctx, sp, op.emit(ctx)); err != nil {
			op.err = err
		}
		return nil
	})
}

func (op *operator[T]) emit(ctx context.Context) Emitter[T] {
	return func(v T) error {
		if err := chanx.Send(ctx, op.out, v); err != nil {
			return err
		}
		op.cfg.metrics.Emitted(op.label)
		return nil
	}
}

func (op *operator[T]) next(ctx context.Context) (T, error) {
	var zero T

	op.startOnce.Do(func() { op.start(ctx) })
	if op.out == nil {
		// Stopped before the first Next.
		return zero, io.EOF
	}

	op.request()

	select {
	case v, ok := <-op.out:
		if ok {
			return v, nil
		}
	case <-op.sc.Context().Done():
		// The scope is over and out is closed or about to be.
	case <-ctx.Done():
		op.withdraw()
		return zero, ctx.Err()
	}

	if err := op.finish(); err != nil {
		return zero, err
	}
	return zero, io.EOF
}

func (op *operator[T]) request() {
	if op.demand == nil {
		return
	}
	if op.owed > 0 {
		op.owed--
		return
	}
	chanx.TrySend(op.demand, struct{}{})
}

// withdraw takes back the token of a Next call that gave up. If the body
// already consumed it, the value it is producing is owed to the next call.
func (op *operator[T]) withdraw() {
	if op.demand == nil {
		return
	}
	select {
	case <-op.demand:
	default:
		op.owed++
	}
}

// finish joins every task and stops the source. It returns the
// stream's terminal error.
func (op *operator[T]) finish() error {
	op.finishOnce.Do(func() {
		werr := op.sc.Wait()
		op.src.Stop()

		var te *scope.TaskError
		switch {
		case op.stopped.Load():
			op.final = nil
		case errors.As(werr, &te):
			// A panic in a task outranks the cancellation it caused.
			op.final = werr
		default:
			op.final = op.err
		}

		tasks := zap.Int64("tasks", op.sc.TotalSpawned())
		if op.final != nil {
			op.log.Debug("stream failed", tasks, zap.Error(op.final))
		} else {
			op.log.Debug("stream finished", tasks)
		}
	})
	return op.final
}

func (op *operator[T]) stop() {
	op.stopped.Store(true)
	op.startOnce.Do(func() {})

	if op.sc == nil {
		op.src.Stop()
		return
	}
	op.sc.Cancel(errStopped)
	op.finish()
}
