package scope

import (
	"context"
	"sync"
	"sync/atomic"
)

// TaskFunc is the signature for a task function running within a scope.
// It receives a context (cancelled when the scope ends) and a Spawner
// to spawn sub-tasks.
type TaskFunc func(ctx context.Context, sp Spawner) error

// scope internal
// it maintains the state of a structured concurrency scope.
type scope struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	cfg    config

	wg sync.WaitGroup

	firstErr atomic.Pointer[TaskError]
	errOnce  sync.Once

	panicMu sync.Mutex
	panics  []*PanicError

	finOnce  sync.Once
	finErr   error
	finPanic *PanicError

	totalSpawned atomic.Int64
}

// finalize waits for all tasks to complete and returns the first error.
func (s *scope) finalize() (error, *PanicError) {
	s.finOnce.Do(func() {
		s.wg.Wait()

		// Check if context was cancelled externally (before cleanup).
		ctxWasCancelled := s.ctx.Err() != nil

		select {
		case <-s.ctx.Done():
		default:
			s.cancel(nil)
		}

		if !s.cfg.panicAsErr {
			s.panicMu.Lock()
			if len(s.panics) > 0 {
				s.finPanic = s.panics[0]
			}
			s.panicMu.Unlock()
		}

		if te := s.firstErr.Load(); te != nil {
			s.finErr = te
		}

		// If no task errors were recorded but the context was cancelled
		// externally (before scope cleanup), surface the cancellation cause.
		if s.finErr == nil && ctxWasCancelled {
			s.finErr = context.Cause(s.ctx)
		}
	})

	return s.finErr, s.finPanic
}

// exec runs a function with panic recovery.
func (s *scope) exec(fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pe := newPanicError(r)
			if s.cfg.panicAsErr {
				err = pe
			} else {
				s.panicMu.Lock()
				s.panics = append(s.panics, pe)
				s.panicMu.Unlock()
				s.cancel(pe)
			}
		}
	}()
	return fn(s.ctx)
}

// recordError keeps the first task error and cancels the siblings.
func (s *scope) recordError(info TaskInfo, err error) {
	s.errOnce.Do(func() {
		s.firstErr.Store(&TaskError{Task: info, Err: err})
		s.cancel(err)
	})
}

// Scope wraps the internal scope state and exposes lifecycle and
// observability methods. Create one via [New]; finalize with [Scope.Wait].
type Scope struct {
	s        *scope
	root     *spawner
	once     sync.Once
	result   error
	panicVal *PanicError
}

// New creates a [Scope] and its root [Spawner].
// The caller must call [Scope.Wait] to finalize the scope and collect errors.
func New(parent context.Context, opts ...Option) (*Scope, Spawner) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancelCause(parent)
	s := &scope{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
	}

	root := &spawner{s: s}
	root.open.Store(true)

	return &Scope{s: s, root: root}, root
}

// Wait closes the root [Spawner], waits for all spawned tasks to complete,
// and returns the first task error. If a task panicked and
// [WithPanicAsError] was not set, Wait re-panics with the captured
// [*PanicError].
//
// Wait is idempotent; subsequent calls return the same result.
func (sc *Scope) Wait() error {
	sc.once.Do(func() {
		sc.root.close()
		sc.result, sc.panicVal = sc.s.finalize()
	})

	if sc.panicVal != nil {
		panic(sc.panicVal)
	}
	return sc.result
}

// Cancel cancels the scope's context with the given cause, signaling all
// tasks to stop. Subsequent calls have no additional effect on the context.
func (sc *Scope) Cancel(err error) {
	sc.s.cancel(err)
}

// Context returns the scope's context, which is cancelled when the scope
// finalizes or is explicitly cancelled via [Scope.Cancel].
func (sc *Scope) Context() context.Context {
	return sc.s.ctx
}

// TotalSpawned returns the total number of tasks that have been spawned
// within the scope, including those that have already completed.
func (sc *Scope) TotalSpawned() int64 {
	return sc.s.totalSpawned.Load()
}
