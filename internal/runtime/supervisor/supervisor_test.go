package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopWaitsForGoroutines(t *testing.T) {
	s := New(context.Background())
	exited := make(chan struct{})
	s.Go0("loop", func(ctx context.Context) {
		<-ctx.Done()
		close(exited)
	})

	require.NoError(t, s.Stop(context.Background()))
	select {
	case <-exited:
	default:
		t.Fatal("Stop returned before the goroutine exited")
	}
	assert.Equal(t, Counters{Active: 0, Started: 1}, s.Counters())
}

func TestFirstErrorCancels(t *testing.T) {
	s := New(context.Background(), WithCancelOnError(true))
	boom := errors.New("boom")
	s.Go("failing", func(context.Context) error { return boom })
	s.Go("second", func(context.Context) error { return errors.New("later") })

	select {
	case <-s.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled")
	}
	err := s.Wait(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom) || err.Error() == "second: later")
}

func TestPanicIsRecovered(t *testing.T) {
	s := New(context.Background())
	s.Go0("panicky", func(context.Context) { panic("oops") })

	err := s.Stop(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in panicky: oops")
}

func TestCanceledIsNotAnError(t *testing.T) {
	s := New(context.Background())
	s.Go("watch", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, s.Stop(context.Background()))
}

func TestWaitBoundedByContext(t *testing.T) {
	s := New(context.Background())
	release := make(chan struct{})
	s.Go0("stuck", func(context.Context) { <-release })
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)
}
