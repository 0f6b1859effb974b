package clock

import (
	"sync"
	"time"
)

// Fire is a wake-up delivered by a [Handle]. Gen identifies the arming
// that produced it.
type Fire struct {
	Gen uint64
	At  time.Time
}

// Handle owns at most one scheduled wake-up on a [Clock], either one-shot
// ([Handle.Arm]) or periodic ([Handle.Every]).
//
// Every Arm, Every and Stop starts a new generation. Callbacks scheduled
// by an older generation are discarded, and the delivery buffer is drained,
// so once one of these methods returns no fire of a previous generation
// can be received from [Handle.C].
//
// A Handle is safe for concurrent use, but timer decisions are expected to
// be made by a single owner goroutine, which is also the reader of C.
type Handle struct {
	clk Clock
	c   chan Fire

	mu     sync.Mutex
	gen    uint64
	armed  bool
	period time.Duration
	next   time.Time
	t      Timer
}

// NewHandle returns a stopped handle scheduling on clk.
// A nil clk means [Real].
func NewHandle(clk Clock) *Handle {
	if clk == nil {
		clk = Real()
	}
	return &Handle{
		clk: clk,
		c:   make(chan Fire, 1),
	}
}

// Arm cancels any outstanding wake-up and schedules a single fire after d.
// It returns the new generation.
func (h *Handle) Arm(d time.Duration) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.resetLocked()
	h.period = 0
	h.armed = true

	gen := h.gen
	h.t = h.clk.AfterFunc(d, func() { h.fire(gen) })
	return gen
}

// Every cancels any outstanding wake-up and schedules a fire every period,
// the first one period from now. Ticks the reader has not consumed are
// coalesced: the buffer holds only the latest.
//
// Every panics if period is not positive.
func (h *Handle) Every(period time.Duration) uint64 {
	if period <= 0 {
		panic("clock: Every requires period > 0")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.resetLocked()
	h.period = period
	h.armed = true
	h.next = h.clk.Now().Add(period)

	gen := h.gen
	h.t = h.clk.AfterFunc(period, func() { h.fire(gen) })
	return gen
}

// Stop cancels the outstanding wake-up, if any. It is idempotent.
func (h *Handle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.resetLocked()
}

// C returns the channel fires are delivered on.
func (h *Handle) C() <-chan Fire {
	return h.c
}

// Live reports whether f belongs to the current generation.
func (h *Handle) Live(f Fire) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return f.Gen == h.gen
}

func (h *Handle) resetLocked() {
	if h.t != nil {
		h.t.Stop()
		h.t = nil
	}
	h.gen++
	h.armed = false

	select {
	case <-h.c:
	default:
	}
}

func (h *Handle) fire(gen uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Stopped or rearmed while the callback was in flight.
	if gen != h.gen || !h.armed {
		return
	}

	now := h.clk.Now()
	if h.period > 0 {
		h.next = h.next.Add(h.period)
		for !h.next.After(now) {
			h.next = h.next.Add(h.period)
		}
		h.t = h.clk.AfterFunc(h.next.Sub(now), func() { h.fire(gen) })
	} else {
		h.armed = false
		h.t = nil
	}

	// Only fire() and resetLocked() write to c, both under mu, so the send
	// after the drain cannot block.
	select {
	case <-h.c:
	default:
	}
	h.c <- Fire{Gen: gen, At: now}
}
