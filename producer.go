package tempo

import (
	"context"
	"io"
)

// forward is the producer loop shared by the operators: it pulls src
// sequentially and hands every value, then a completed or failed message,
// to send. It stops quietly when ctx is done or send fails, since both
// mean the operator is being torn down.
func forward[T any](ctx context.Context, src *Stream[T], send func(message[T]) error) {
	for {
		v, err := src.Next(ctx)
		switch {
		case err == io.EOF:
			_ = send(completedMsg[T]())
			return
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			_ = send(failedMsg[T](err))
			return
		}

		if err := send(valueMsg(v)); err != nil {
			return
		}
	}
}
