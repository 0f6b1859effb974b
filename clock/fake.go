package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced [Clock] for tests. Callbacks run on the
// goroutine calling [Fake.Advance], in deadline order.
type Fake struct {
	mu     sync.Mutex
	cond   *sync.Cond
	now    time.Time
	seq    uint64
	timers []*fakeTimer
}

type fakeTimer struct {
	f    *Fake
	when time.Time
	seq  uint64
	fn   func()
}

// NewFake returns a fake clock starting at a fixed instant.
func NewFake() *Fake {
	f := &Fake{now: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AfterFunc registers fn to run once the clock has been advanced by d.
// It never runs fn synchronously, even for d <= 0.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	t := &fakeTimer{f: f, when: f.now.Add(d), seq: f.seq, fn: fn}
	f.timers = append(f.timers, t)
	f.cond.Broadcast()
	return t
}

func (t *fakeTimer) Stop() bool {
	f := t.f
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, other := range f.timers {
		if other == t {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
			f.cond.Broadcast()
			return true
		}
	}
	return false
}

// Advance moves the clock forward by d, running every callback that
// becomes due, including ones scheduled by callbacks during the advance.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	end := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		t := f.popDueLocked(end)
		if t == nil {
			if f.now.Before(end) {
				f.now = end
			}
			f.mu.Unlock()
			return
		}
		if t.when.After(f.now) {
			f.now = t.when
		}
		f.mu.Unlock()

		t.fn()
	}
}

// Pending returns the number of scheduled callbacks.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

// BlockUntil blocks until at least n callbacks are scheduled.
func (f *Fake) BlockUntil(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.timers) < n {
		f.cond.Wait()
	}
}

func (f *Fake) popDueLocked(end time.Time) *fakeTimer {
	idx := -1
	for i, t := range f.timers {
		if t.when.After(end) {
			continue
		}
		if idx < 0 || t.when.Before(f.timers[idx].when) ||
			(t.when.Equal(f.timers[idx].when) && t.seq < f.timers[idx].seq) {
			idx = i
		}
	}
	if idx < 0 {
		return nil
	}

	t := f.timers[idx]
	f.timers = append(f.timers[:idx], f.timers[idx+1:]...)
	f.cond.Broadcast()
	return t
}
