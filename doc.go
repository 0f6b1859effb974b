// Package tempo provides time-aware operators over pull-based streams.
//
// A [Stream] is a lazy, single-consumer sequence: [Stream.Next] returns the
// next value, [io.EOF] once the stream completed, or its terminal error.
// [Stream.Stop] abandons a stream and releases whatever runs behind it.
//
// # Operators
//
//   - [Debounce] and [DebounceFor]: emit a value only after the source has
//     been quiet for a timeout. A newer value replaces the pending one; a
//     pending value is flushed when the source completes.
//   - [Sample]: emit the most recent value once per period, never
//     backpressuring the source. A value not yet sampled when the source
//     completes is dropped.
//   - [Timeout]: mirror the source while it produces every value within a
//     deadline, measured from the moment the consumer asks for it. On a
//     miss the source is cancelled and a fallback runs; without one the
//     stream fails with a [*TimeoutError].
//
// Operators compose, since each returns a *Stream:
//
//	s, err := tempo.Timeout(src, 2*time.Second, nil)
//	if err != nil {
//	    return err
//	}
//	s, err = tempo.DebounceFor(s, 300*time.Millisecond)
//
// # Lifecycle
//
// An operator starts its goroutines on the first Next call. The context of
// each Next call bounds only that call: a Next that gives up returns the
// context's error and the stream carries on. The goroutines are joined
// before the consumer observes completion or failure, and Stop tears them
// down when the consumer walks away; ToSlice, Collect and ForEach call Stop
// before returning. Stop propagates to the source.
//
// # Errors
//
// Configuration errors are returned by the constructor and wrap
// [ErrNegativeDuration] or [ErrNonPositivePeriod]. Source errors reach the
// consumer unchanged. A panic in a user callback surfaces from Next as a
// [*TaskError] wrapping a [*PanicError].
//
// # Options
//
// [WithLogger] writes lifecycle events to a zap logger at debug level,
// [WithMetrics] records Prometheus counters, [WithClock] swaps the timer
// source (clock.NewFake in tests) and [WithName] labels the operator.
package tempo
