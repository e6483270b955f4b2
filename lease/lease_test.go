package lease

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefresher_ExtendsPeriodically(t *testing.T) {
	var calls int32
	extend := func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}

	r := Start(context.Background(), extend, 20*time.Millisecond, zerolog.Nop())
	defer r.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestRefresher_SurfacesTerminalErrorOnExtendFailure(t *testing.T) {
	extend := func(ctx context.Context) error {
		return assert.AnError
	}

	r := Start(context.Background(), extend, 10*time.Millisecond, zerolog.Nop())
	defer r.Stop()

	select {
	case err := <-r.Err():
		assert.ErrorIs(t, err, ErrRefreshFailed)
	case <-time.After(time.Second):
		t.Fatal("expected a terminal error on Err()")
	}
}

func TestRefresher_StopIsIdempotent(t *testing.T) {
	extend := func(ctx context.Context) error { return nil }
	r := Start(context.Background(), extend, time.Minute, zerolog.Nop())
	r.Stop()
	r.Stop()
}

func TestRefresher_StopsOnContextCancel(t *testing.T) {
	var calls int32
	extend := func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := Start(ctx, extend, 10*time.Millisecond, zerolog.Nop())
	defer r.Stop()

	cancel()
	time.Sleep(50 * time.Millisecond)
	stopped := atomic.LoadInt32(&calls)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, atomic.LoadInt32(&calls))
}
