package scope

import (
	"context"
	"sync/atomic"
	"time"
)

// Spawner allows spawning concurrent tasks into a scope.
type Spawner interface {
	// Go starts a task that does not spawn sub-tasks.
	Go(name string, fn func(ctx context.Context) error)

	// Spawn starts a new concurrent task with the given name.
	// The task function receives a child Spawner allowing it to create sub-tasks.
	Spawn(name string, fn TaskFunc)
}

// spawner implements the Spawner interface and manages the lifecycle of tasks.
type spawner struct {
	s    *scope
	open atomic.Bool
}

// Go implements Spawner.Go.
func (sp *spawner) Go(name string, fn func(ctx context.Context) error) {
	sp.Spawn(name, func(ctx context.Context, _ Spawner) error {
		return fn(ctx)
	})
}

// Spawn implements Spawner.Spawn.
func (sp *spawner) Spawn(name string, fn TaskFunc) {
	// Check open BEFORE wg.Add to avoid TOCTOU race with finalize()'s wg.Wait().
	if !sp.open.Load() {
		panic("scope: Spawn called after scope shutdown")
	}

	sp.s.wg.Add(1)
	sp.s.totalSpawned.Add(1)

	info := TaskInfo{Name: name}

	go func() {
		defer sp.s.wg.Done()

		if sp.s.ctx.Err() != nil {
			// Context already cancelled, skip execution silently.
			return
		}

		// child spawner is valid only for the lifetime of the task;
		// spawning after the task function returns will panic.
		child := &spawner{s: sp.s}
		child.open.Store(true)

		start := time.Now()
		// Hooks run inside exec() so panics are caught by recovery.
		err := sp.s.exec(func(ctx context.Context) error {
			if sp.s.cfg.onStart != nil {
				sp.s.cfg.onStart(info)
			}
			return fn(ctx, child)
		})
		elapsed := time.Since(start)

		child.close()

		if sp.s.cfg.onDone != nil {
			// onDone runs outside exec; an observability hook must not panic.
			sp.s.cfg.onDone(info, err, elapsed)
		}

		if err != nil {
			sp.s.recordError(info, err)
		}
	}()
}

// close marks the spawner as closed, preventing further Spawn calls.
func (sp *spawner) close() {
	sp.open.Store(false)
}
