// Package lease implements the background lease-refresh activity a running
// job holds: while the job body executes, the refresher extends the lease
// every ttl/2 and surfaces the first extend failure as a terminal error.
package lease

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ErrRefreshFailed is the terminal error a Refresher yields on Err() when
// an extend call fails.
var ErrRefreshFailed = errors.New("lease: refresh failed")

// Extender performs one unconditional lease extension. Implementations are
// backend-specific (docstore/filekv); the refresher only needs this one
// operation.
type Extender func(ctx context.Context) error

// Refresher extends a held lease every ttl/2 until stopped or until an
// extend call fails.
type Refresher struct {
	extend Extender
	ttl    time.Duration
	logger zerolog.Logger

	errCh chan error
	done  chan struct{}
}

// Start launches a Refresher as a background goroutine and returns it.
func Start(ctx context.Context, extend Extender, ttl time.Duration, logger zerolog.Logger) *Refresher {
	r := &Refresher{
		extend: extend,
		ttl:    ttl,
		logger: logger,
		errCh:  make(chan error, 1),
		done:   make(chan struct{}),
	}
	go r.loop(ctx)
	return r
}

func (r *Refresher) loop(ctx context.Context) {
	interval := r.ttl / 2
	if interval <= 0 {
		interval = time.Second
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := r.extend(ctx); err != nil {
				r.logger.Warn().Err(err).Msg("lease refresh failed")
				select {
				case r.errCh <- ErrRefreshFailed:
				default:
				}
				return
			}
			timer.Reset(interval)
		}
	}
}

// Err yields the terminal refresh error, once, on failure. Never closed on
// the happy path.
func (r *Refresher) Err() <-chan error {
	return r.errCh
}

// Stop terminates the refresher. Safe to call multiple times.
func (r *Refresher) Stop() {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}
