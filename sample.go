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

// Sample returns a stream that emits the most recent value of src once
// every period, the first time one period after the stream starts. A tick
// with no new value since the previous tick emits nothing. src is pulled
// as fast as it produces: sampling never backpressures the source.
//
// When src completes, a value not yet emitted by a tick is dropped, not
// flushed. When src fails, the error is returned immediately.
//
// A period that is not positive is a configuration error wrapping
// [ErrNonPositivePeriod].
func Sample[T any](src *Stream[T], period time.Duration, opts ...Option) (*Stream[T], error) {
	if src == nil {
		panic("tempo: Sample requires non-nil source stream")
	}
	if period <= 0 {
		return nil, fmt.Errorf("sample: %w: %v", ErrNonPositivePeriod, period)
	}

	s := &sampler[T]{src: src, period: period}
	s.op = newOperator("sample", src, buildConfig(opts), s.run)
	return s.op.stream(), nil
}

type sampler[T any] struct {
	src    *Stream[T]
	period time.Duration
	op     *operator[T]
}

func (s *sampler[T]) run(ctx context.Context, sp scope.Spawner, emit Emitter[T]) error {
	op := s.op

	slot := chanx.NewSlot[message[T]]()
	sp.Go(op.label+"/producer", func(ctx context.Context) error {
		forward(ctx, s.src, func(m message[T]) error {
			if slot.Offer(m) {
				op.cfg.metrics.Dropped(op.label, metrics.ReasonOverwritten)
			}
			return nil
		})
		return nil
	})

	h := clock.NewHandle(op.cfg.clock)
	h.Every(s.period)
	defer h.Stop()

	var (
		latest    T
		hasLatest bool
	)

	for {
		ev, err := awaitEvent(ctx, slot.Ready(), h.C())
		if err != nil {
			return err
		}

		if ev.hasMsg {
			m := ev.msg
			switch m.kind {
			case kindValue:
				op.cfg.metrics.Received(op.label)
				if hasLatest {
					op.cfg.metrics.Dropped(op.label, metrics.ReasonOverwritten)
				}
				latest, hasLatest = m.val, true

			case kindCompleted:
				h.Stop()
				if hasLatest {
					op.cfg.metrics.Dropped(op.label, metrics.ReasonCompleted)
				}
				op.log.Debug("source completed", zap.Bool("dropped", hasLatest))
				return nil

			case kindFailed:
				h.Stop()
				op.log.Debug("source failed", zap.Error(m.err))
				return m.err
			}
		}

		if ev.hasFire && hasLatest && h.Live(ev.fire) {
			v := latest
			var zero T
			latest, hasLatest = zero, false
			if err := emit(v); err != nil {
				return err
			}
		}
	}
}
