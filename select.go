package tempo

import (
	"context"

	"github.com/baxromumarov/tempo/clock"
)

// event is the outcome of one selector wait. Both halves can be set when
// a relay message and a timer fire were ready together.
type event[M any] struct {
	msg     M
	hasMsg  bool
	fire    clock.Fire
	hasFire bool
}

// awaitEvent is the single suspension point of a selector loop. It blocks
// until a relay message or a timer fire is available, or ctx is done.
//
// Ties are deterministic: whenever one source is ready the other is polled
// too, and callers service msg before fire. A nil fires channel waits on
// the relay alone.
func awaitEvent[M any](ctx context.Context, relay <-chan M, fires <-chan clock.Fire) (event[M], error) {
	var ev event[M]

	select {
	case ev.msg = <-relay:
		ev.hasMsg = true
	case ev.fire = <-fires:
		ev.hasFire = true
	case <-ctx.Done():
		return ev, ctx.Err()
	}

	if ev.hasMsg {
		select {
		case ev.fire = <-fires:
			ev.hasFire = true
		default:
		}
	} else {
		select {
		case ev.msg = <-relay:
			ev.hasMsg = true
		default:
		}
	}
	return ev, nil
}
