// Package job defines the value types describing a registered job: its
// identity, cadence, lease TTL, and persisted state.
package job

import (
	"context"
	"errors"
	"time"

	"github.com/plykit/fleetcron/schedule"
)

// Name is the primary key for a job, unique within a store namespace.
type Name string

// ErrEmptyName is returned by Config validation when Name is empty.
var ErrEmptyName = errors.New("job: name must not be empty")

// Default cadences applied by New when the caller doesn't override them.
const (
	DefaultCheckInterval = 60 * time.Second
	DefaultLockTTL       = 20 * time.Second
)

// Config is user-supplied at registration and immutable for the lifetime
// of the executor.
type Config struct {
	Name          Name
	Schedule      schedule.Schedule
	CheckInterval time.Duration
	LockTTL       time.Duration
	Enabled       bool
}

// New builds a Config with the documented defaults.
func New(name Name, sched schedule.Schedule) Config {
	return Config{
		Name:          name,
		Schedule:      sched,
		CheckInterval: DefaultCheckInterval,
		LockTTL:       DefaultLockTTL,
		Enabled:       true,
	}
}

// WithCheckInterval overrides the local poll cadence.
func (c Config) WithCheckInterval(d time.Duration) Config {
	c.CheckInterval = d
	return c
}

// WithLockTTL overrides the lease TTL the executor acquires the lock with.
func (c Config) WithLockTTL(d time.Duration) Config {
	c.LockTTL = d
	return c
}

// Validate checks the invariants a Config must satisfy before registration.
func (c Config) Validate() error {
	if c.Name == "" {
		return ErrEmptyName
	}
	if c.Schedule.Zero() {
		return errors.New("job: schedule must not be zero-valued")
	}
	return nil
}

// Data is the persisted record for one JobName.
type Data struct {
	Name          Name
	ScheduleExpr  string
	CheckInterval time.Duration
	LockTTL       time.Duration
	Enabled       bool
	State         []byte
	LastRun       time.Time
	Owner         string
	Expires       int64
	Version       int
}

// NewData creates the initial persisted record for a freshly-registered
// Config: empty state, never run, no owner.
func NewData(cfg Config) Data {
	return Data{
		Name:          cfg.Name,
		ScheduleExpr:  cfg.Schedule.String(),
		CheckInterval: cfg.CheckInterval,
		LockTTL:       cfg.LockTTL,
		Enabled:       cfg.Enabled,
		State:         nil,
		LastRun:       time.Unix(0, 0).UTC(),
		Owner:         "",
		Expires:       0,
		Version:       0,
	}
}

// LeaseValid reports whether the lease recorded in this Data is currently
// held by anyone (expires in the future relative to now).
func (d Data) LeaseValid(now time.Time) bool {
	return d.Expires > now.Unix()
}

// Body is the user-supplied job logic: given the current opaque state, it
// returns the updated state to persist, or an error.
type Body func(ctx context.Context, state []byte) ([]byte, error)

// Error pairs a job name with the error its Body returned. Wrapping the
// underlying cause lets callers errors.Is/As through to it.
type Error struct {
	Name Name
	Err  error
}

func (e *Error) Error() string {
	return "job " + string(e.Name) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
