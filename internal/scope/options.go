package scope

import "time"

// TaskInfo provides metadata about a running task.
// It is passed to observability hooks registered via [WithOnStart] and [WithOnDone].
type TaskInfo struct {
	Name string
}

type config struct {
	panicAsErr bool
	onStart    func(TaskInfo)
	onDone     func(TaskInfo, error, time.Duration)
}

// Option configures a [Scope].
type Option func(*config)

func defaultConfig() config {
	return config{}
}

// WithPanicAsError converts panics in child tasks to [*PanicError]
// values returned as regular errors, instead of re-raising them
// in [Scope.Wait].
func WithPanicAsError() Option {
	return func(c *config) {
		c.panicAsErr = true
	}
}

// WithOnStart registers a hook invoked when each task begins executing.
// The hook runs inside the task's goroutine before the task function.
func WithOnStart(fn func(TaskInfo)) Option {
	return func(c *config) {
		c.onStart = fn
	}
}

// WithOnDone registers a hook invoked when each task finishes.
// The hook receives the task's error (nil on success) and wall-clock duration.
// The hook runs inside the task's goroutine after the task function returns.
func WithOnDone(fn func(TaskInfo, error, time.Duration)) Option {
	return func(c *config) {
		c.onDone = fn
	}
}
