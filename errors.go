package tempo

import (
	"errors"
	"fmt"
	"time"

	"github.com/baxromumarov/tempo/internal/scope"
)

var (
	// ErrNegativeDuration is wrapped by configuration errors for negative
	// durations and by the stream error of a debounce whose timeout
	// function returned a negative duration.
	ErrNegativeDuration = errors.New("tempo: duration must not be negative")

	// ErrNonPositivePeriod is wrapped by the configuration error of a
	// [Sample] whose period is zero or negative.
	ErrNonPositivePeriod = errors.New("tempo: period must be positive")

	// ErrTimeout matches every [*TimeoutError] via errors.Is.
	ErrTimeout = errors.New("tempo: timed out")
)

var (
	// errDeadlineExceeded travels from the timeout selector loop to the
	// operator boundary, where it becomes the fallback call.
	errDeadlineExceeded = errors.New("tempo: deadline exceeded")

	// errFinished is the cancellation cause an operator uses to tear down
	// its own tasks after the selector loop returned.
	errFinished = errors.New("tempo: operator finished")

	// errStopped is the cancellation cause used by Stream.Stop.
	errStopped = errors.New("tempo: stream stopped")
)

// TimeoutError is the terminal error of a [Timeout] stream without a
// fallback: the source produced no value within Deadline.
type TimeoutError struct {
	Deadline time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("tempo: no value within %v", e.Deadline)
}

// Is reports whether target is [ErrTimeout].
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// PanicError is a panic recovered from a user callback, such as a debounce
// timeout function or a timeout fallback. It reaches the consumer wrapped
// in a [*TaskError].
type PanicError = scope.PanicError

// TaskError attributes a panic to the operator task it happened in.
type TaskError = scope.TaskError
