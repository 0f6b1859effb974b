package tempo

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/tempo/clock"
)

// pending returns a source over a buffered channel preloaded with vals
// that is never closed: after vals it blocks until cancelled.
func pendingSource(vals ...int) *Stream[int] {
	ch := make(chan int, len(vals))
	for _, v := range vals {
		ch <- v
	}
	return FromChan(ch)
}

func waitResult[T any](t *testing.T, ch <-chan nextResult[T]) nextResult[T] {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return")
		return nextResult[T]{}
	}
}

func assertBlocked[T any](t *testing.T, ch <-chan nextResult[T]) {
	t.Helper()
	select {
	case r := <-ch:
		t.Fatalf("Next returned early: %v, %v", r.val, r.err)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestTimeoutDefaultFailsAfterLastValue(t *testing.T) {
	fc := clock.NewFake()
	ctx := context.Background()

	s, err := Timeout(pendingSource(1, 2), 100*time.Millisecond, nil, WithClock(fc))
	require.NoError(t, err)
	defer s.Stop()

	v, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	res := nextAsync(ctx, s)
	fc.BlockUntil(1)

	fc.Advance(99 * time.Millisecond)
	assertBlocked(t, res)

	fc.Advance(time.Millisecond)
	r := waitResult(t, res)
	require.ErrorIs(t, r.err, ErrTimeout)

	var te *TimeoutError
	require.ErrorAs(t, r.err, &te)
	assert.Equal(t, 100*time.Millisecond, te.Deadline)

	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, ErrTimeout, "the terminal error is sticky")
}

func TestTimeoutSlowConsumerDoesNotCount(t *testing.T) {
	fc := clock.NewFake()
	ctx := context.Background()

	s, err := Timeout(pendingSource(1, 2), 100*time.Millisecond, nil, WithClock(fc))
	require.NoError(t, err)
	defer s.Stop()

	v, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// The consumer takes ten deadlines to handle the value.
	assert.Equal(t, 0, fc.Pending(), "no deadline runs while the consumer holds a value")
	fc.Advance(time.Second)

	v, err = s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestTimeoutFallbackEmits(t *testing.T) {
	fc := clock.NewFake()
	ctx := context.Background()

	fallback := func(ctx context.Context, emit Emitter[int]) error {
		if err := emit(-1); err != nil {
			return err
		}
		return emit(-2)
	}

	s, err := Timeout(pendingSource(1), 50*time.Millisecond, fallback, WithClock(fc))
	require.NoError(t, err)

	v, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	res := nextAsync(ctx, s)
	fc.BlockUntil(1)
	fc.Advance(50 * time.Millisecond)

	r := waitResult(t, res)
	require.NoError(t, r.err)
	assert.Equal(t, -1, r.val)

	rest, err := s.ToSlice(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{-2}, rest)
}

func TestTimeoutFallbackError(t *testing.T) {
	fc := clock.NewFake()
	ctx := context.Background()
	fallbackErr := errors.New("no fallback today")

	s, err := Timeout(pendingSource(), time.Second, func(context.Context, Emitter[int]) error {
		return fallbackErr
	}, WithClock(fc))
	require.NoError(t, err)
	defer s.Stop()

	res := nextAsync(ctx, s)
	fc.BlockUntil(1)
	fc.Advance(time.Second)

	r := waitResult(t, res)
	assert.Same(t, fallbackErr, r.err)
}

func TestTimeoutFallbackPanic(t *testing.T) {
	s, err := Timeout(pendingSource(), 0, func(context.Context, Emitter[int]) error {
		panic("fallback exploded")
	})
	require.NoError(t, err)

	_, err = s.ToSlice(context.Background())
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "fallback exploded", pe.Value)
}

func TestTimeoutZeroDeadlineIsImmediate(t *testing.T) {
	var pulls atomic.Int64

	s, err := Timeout(endless(time.Millisecond, &pulls), 0, nil)
	require.NoError(t, err)

	got, err := s.ToSlice(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Empty(t, got)
	assert.Equal(t, int64(0), pulls.Load(), "source is never pulled")
}

func TestTimeoutNegativeDeadline(t *testing.T) {
	_, err := Timeout(FromSlice([]int{1}), -time.Second, nil)
	assert.ErrorIs(t, err, ErrNegativeDuration)

	assert.Panics(t, func() { _, _ = Timeout[int](nil, time.Second, nil) })
}

func TestTimeoutUpstreamFailureIsNotTimeout(t *testing.T) {
	boom := errors.New("boom")

	s, err := Timeout(failing(boom, 1), time.Second, nil)
	require.NoError(t, err)

	got, err := s.ToSlice(context.Background())
	assert.Same(t, boom, err)
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, []int{1}, got)
}

func TestTimeoutCompletes(t *testing.T) {
	s, err := Timeout(FromSlice([]int{1, 2, 3}), time.Second, nil)
	require.NoError(t, err)

	got, err := s.ToSlice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestTimeoutSlowConsumerRealClock(t *testing.T) {
	s, err := Timeout(FromSlice([]int{1, 2, 3}), 50*time.Millisecond, nil)
	require.NoError(t, err)

	var got []int
	err = s.ForEach(context.Background(), func(v int) error {
		got = append(got, v)
		time.Sleep(150 * time.Millisecond)
		return nil
	})
	require.NoError(t, err, "consumer processing time must not trigger the timeout")
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestTimeoutUpstreamGapRealClock(t *testing.T) {
	src := scheduled([]at[int]{
		{0, 1},
		{10 * time.Millisecond, 2},
		{500 * time.Millisecond, 3},
	}, 600*time.Millisecond, nil)

	s, err := Timeout(src, 100*time.Millisecond, nil)
	require.NoError(t, err)

	start := time.Now()
	got, err := s.ToSlice(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, []int{1, 2}, got)
	assert.Less(t, time.Since(start), 400*time.Millisecond, "the gap is cut short at the deadline")
}

func TestTimeoutEOFAfterCompletion(t *testing.T) {
	s, err := Timeout(FromSlice([]int{7}), time.Second, nil)
	require.NoError(t, err)
	ctx := context.Background()

	v, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = s.Next(ctx)
	assert.Equal(t, io.EOF, err)
	_, err = s.Next(ctx)
	assert.Equal(t, io.EOF, err)
}

func TestTimeoutAbandonedNextDoesNotStartNextDeadline(t *testing.T) {
	fc := clock.NewFake()
	ch := make(chan int)

	s, err := Timeout(FromChan(ch), 100*time.Millisecond, nil, WithClock(fc))
	require.NoError(t, err)
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	res := nextAsync(ctx, s)
	fc.BlockUntil(1) // the deadline for the first value is running
	cancel()
	r := waitResult(t, res)
	require.ErrorIs(t, r.err, context.Canceled)

	// The value still arrives in time and goes to the next call.
	ch <- 1
	v, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// The consumer holds the value; no deadline runs until it asks again.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, fc.Pending())
	fc.Advance(time.Second)

	res = nextAsync(context.Background(), s)
	fc.BlockUntil(1)
	ch <- 2

	r = waitResult(t, res)
	require.NoError(t, r.err)
	assert.Equal(t, 2, r.val)
}

func TestTimeoutFallbackDoesNotWaitForSource(t *testing.T) {
	// A source that ignores its context.
	stubborn := FromFunc(func(context.Context) (int, error) {
		time.Sleep(300 * time.Millisecond)
		return 0, io.EOF
	})

	s, err := Timeout(stubborn, 20*time.Millisecond, func(ctx context.Context, emit Emitter[int]) error {
		return emit(-1)
	})
	require.NoError(t, err)
	ctx := context.Background()

	start := time.Now()
	v, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, -1, v)
	assert.Less(t, time.Since(start), 200*time.Millisecond, "fallback values arrive at the deadline")

	_, err = s.Next(ctx)
	assert.Equal(t, io.EOF, err)
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond, "the end waits for the source to return")
}
