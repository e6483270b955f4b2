// Package executor implements the per-job state machine: wait, check due,
// try lease, run, persist, sleep. One Executor drives exactly one job,
// coordinating with other instances only through the shared
// repo.Repository.
package executor

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/plykit/fleetcron/job"
	"github.com/plykit/fleetcron/repo"
)

// defaultAcquireTTL is used when a job's LockTTL is zero. The acquire TTL
// is derived from JobConfig.LockTTL wherever one is configured (see
// DESIGN.md), falling back to 10s only when LockTTL itself is unset.
const defaultAcquireTTL = 10 * time.Second

// jitterMin/jitterMax bound the randomized initial delay used to
// de-synchronize executor startups across co-starting instances.
const (
	jitterMin = 10 * time.Millisecond
	jitterMax = 100 * time.Millisecond
)

// Executor drives one job's state machine.
type Executor struct {
	instance string
	cfg      job.Config
	body     job.Body
	repo     repo.Repository
	logger   zerolog.Logger
	cancel   <-chan struct{}
}

// New builds an Executor for cfg, owned by instance, persisting through
// repo and invoking body on each firing. cancel is a single-delivery
// channel the caller closes (or sends on) to stop the executor.
func New(instance string, cfg job.Config, body job.Body, repository repo.Repository, logger zerolog.Logger, cancel <-chan struct{}) *Executor {
	return &Executor{
		instance: instance,
		cfg:      cfg,
		body:     body,
		repo:     repository,
		logger:   logger.With().Str("job", string(cfg.Name)).Logger(),
		cancel:   cancel,
	}
}

// acquireTTL returns the lease TTL this executor uses for Lock, per the
// derivation rule above.
func (e *Executor) acquireTTL() time.Duration {
	if e.cfg.LockTTL > 0 {
		return e.cfg.LockTTL
	}
	return defaultAcquireTTL
}

// initialDelay returns a random jitter in [jitterMin, jitterMax).
func initialDelay() time.Duration {
	span := jitterMax - jitterMin
	return jitterMin + time.Duration(rand.Int63n(int64(span)))
}

// state is the tagged-union interface each named state of the machine
// implements. Run reassigns state until it returns nil, signaling Done.
type state interface {
	step(ctx context.Context, e *Executor) state
}

// Run drives the state machine to completion (cancellation, unrecoverable
// error, or the Done state). It blocks until the job stops running.
func (e *Executor) Run(ctx context.Context) {
	var s state = stateInitial{delay: initialDelay()}
	for s != nil {
		s = s.step(ctx, e)
	}
	e.logger.Info().Msg("executor stopped")
}

// --- Initial ---

type stateInitial struct{ delay time.Duration }

func (s stateInitial) step(ctx context.Context, e *Executor) state {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-e.cancel:
		return nil
	case <-ctx.Done():
		return nil
	case <-timer.C:
		return stateStart{}
	}
}

// --- Start ---

type stateStart struct{}

func (s stateStart) step(ctx context.Context, e *Executor) state {
	data, err := e.repo.Get(ctx, e.cfg.Name)
	if err != nil {
		if err == repo.ErrNotFound {
			fresh := job.NewData(e.cfg)
			if createErr := e.repo.Create(ctx, fresh); createErr != nil {
				e.logger.Warn().Err(createErr).Msg("create failed, backing off")
				return stateInitial{delay: time.Second}
			}
			return stateTryLock{interval: e.cfg.CheckInterval}
		}
		e.logger.Warn().Err(err).Msg("get failed, backing off")
		return stateInitial{delay: time.Second}
	}

	if !data.Enabled {
		return stateSleeping{interval: e.cfg.CheckInterval}
	}
	if e.cfg.Schedule.Due(data.LastRun, time.Now().UTC()) {
		return stateTryLock{interval: e.cfg.CheckInterval}
	}
	return stateSleeping{interval: e.cfg.CheckInterval}
}

// --- Sleeping ---

type stateSleeping struct{ interval time.Duration }

func (s stateSleeping) step(ctx context.Context, e *Executor) state {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	select {
	case <-e.cancel:
		return nil
	case <-ctx.Done():
		return nil
	case <-timer.C:
		return stateCheckDue{interval: s.interval}
	}
}

// --- CheckDue ---

type stateCheckDue struct{ interval time.Duration }

func (s stateCheckDue) step(ctx context.Context, e *Executor) state {
	data, err := e.repo.Get(ctx, e.cfg.Name)
	if err != nil {
		e.logger.Debug().Err(err).Msg("check-due get failed")
		return stateSleeping{interval: s.interval}
	}
	if !data.Enabled {
		return stateSleeping{interval: s.interval}
	}
	if e.cfg.Schedule.Due(data.LastRun, time.Now().UTC()) {
		return stateTryLock{interval: s.interval}
	}
	return stateSleeping{interval: s.interval}
}

// --- TryLock ---

type stateTryLock struct{ interval time.Duration }

func (s stateTryLock) step(ctx context.Context, e *Executor) state {
	status, data, handle, err := e.repo.Lock(ctx, e.cfg.Name, e.instance, e.acquireTTL())
	if err != nil {
		e.logger.Debug().Err(err).Msg("lock failed")
		return stateSleeping{interval: s.interval}
	}
	if status == repo.AlreadyLocked {
		return stateSleeping{interval: s.interval}
	}

	if !e.cfg.Schedule.Due(data.LastRun, time.Now().UTC()) {
		// Rare race: acquired the lease but another instance updated
		// last_run between our CheckDue and this Lock. Release without
		// advancing state, then sleep.
		handle.Stop()
		if saveErr := e.repo.Save(ctx, e.cfg.Name, data.LastRun, data.State); saveErr != nil {
			e.logger.Warn().Err(saveErr).Msg("release-on-not-due save failed")
		}
		return stateSleeping{interval: s.interval}
	}

	return stateRun{interval: s.interval, data: data, handle: handle}
}

// --- Run ---

type stateRun struct {
	interval time.Duration
	data     job.Data
	handle   repo.LeaseHandle
}

func (s stateRun) step(ctx context.Context, e *Executor) state {
	defer s.handle.Stop()

	resultCh := make(chan bodyResult, 1)
	go func() {
		newState, err := e.body(ctx, s.data.State)
		resultCh <- bodyResult{state: newState, err: err}
	}()

	select {
	case <-e.cancel:
		return nil
	case err := <-s.handle.Err():
		e.logger.Warn().Err(err).Msg("lease lost mid-run")
		return nil
	case res := <-resultCh:
		if res.err != nil {
			e.logger.Warn().Err(res.err).Msg("job body returned error; not advancing last_run")
			return nil
		}
		now := time.Now().UTC()
		if err := e.repo.Save(ctx, e.cfg.Name, now, res.state); err != nil {
			e.logger.Warn().Err(err).Msg("save failed after successful run")
			return nil
		}
		return stateSleeping{interval: e.cfg.CheckInterval}
	}
}

type bodyResult struct {
	state []byte
	err   error
}
