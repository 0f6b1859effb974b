package tempo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// Every terminal path must join the operator's goroutines before the
// consumer sees it.
func TestNoGoroutineLeaks(t *testing.T) {
	boom := errors.New("boom")

	cases := []struct {
		name string
		run  func(t *testing.T)
	}{
		{"debounce completes", func(t *testing.T) {
			s, err := DebounceFor(FromSlice([]int{1, 2, 3}), time.Second)
			require.NoError(t, err)
			_, err = s.ToSlice(context.Background())
			require.NoError(t, err)
		}},
		{"debounce fails", func(t *testing.T) {
			s, err := DebounceFor(failing(boom, 1), time.Second)
			require.NoError(t, err)
			_, err = s.ToSlice(context.Background())
			require.ErrorIs(t, err, boom)
		}},
		{"debounce abandoned", func(t *testing.T) {
			s, err := DebounceFor(endless(time.Millisecond, nil), time.Hour)
			require.NoError(t, err)
			res := nextAsync(context.Background(), s)
			time.Sleep(10 * time.Millisecond)
			s.Stop()
			<-res
		}},
		{"sample cancelled", func(t *testing.T) {
			s, err := Sample(endless(time.Millisecond, nil), time.Hour)
			require.NoError(t, err)
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			_, err = s.ToSlice(ctx)
			require.ErrorIs(t, err, context.DeadlineExceeded)
		}},
		{"sample take", func(t *testing.T) {
			s, err := Sample(endless(time.Millisecond, nil), 5*time.Millisecond)
			require.NoError(t, err)
			got, err := s.Take(2).ToSlice(context.Background())
			require.NoError(t, err)
			require.Len(t, got, 2)
		}},
		{"timeout fires", func(t *testing.T) {
			s, err := Timeout(endless(time.Hour, nil), 10*time.Millisecond, nil)
			require.NoError(t, err)
			_, err = s.ToSlice(context.Background())
			require.ErrorIs(t, err, ErrTimeout)
		}},
		{"timeout abandoned mid-value", func(t *testing.T) {
			s, err := Timeout(endless(time.Millisecond, nil), time.Hour, nil)
			require.NoError(t, err)
			_, err = s.Next(context.Background())
			require.NoError(t, err)
			s.Stop()
		}},
		{"never started", func(t *testing.T) {
			s, err := Timeout(endless(time.Millisecond, nil), time.Second, nil)
			require.NoError(t, err)
			s.Stop()
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
			tc.run(t)
		})
	}
}
