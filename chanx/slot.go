package chanx

// Slot is a single-cell, latest-wins relay between exactly one writer and
// one reader. It is not a queue: a value the reader has not taken yet is
// replaced by the next [Slot.Offer].
//
// The reader selects on [Slot.Ready] next to other channels.
type Slot[T any] struct {
	ch chan T
}

// NewSlot returns an empty slot.
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{ch: make(chan T, 1)}
}

// Offer stores v, dropping any value still pending. It never blocks and
// reports whether a pending value was dropped.
//
// Offer must only be called from the single writer goroutine.
func (s *Slot[T]) Offer(v T) (replaced bool) {
	for {
		select {
		case s.ch <- v:
			return replaced
		default:
		}

		// The reader may take the pending value between the two selects;
		// the next send then succeeds.
		select {
		case <-s.ch:
			replaced = true
		default:
		}
	}
}

// Ready returns the channel the pending value is delivered on.
func (s *Slot[T]) Ready() <-chan T {
	return s.ch
}
