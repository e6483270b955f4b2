// Package repo defines the storage-agnostic Repository contract that the
// lease protocol and executor state machine are built on. Concrete
// backends live in subpackages (repo/docstore, repo/filekv).
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/plykit/fleetcron/job"
)

// Error wraps a backend-specific failure. Repository methods never return
// a distinguished "already exists" type for Create: failure on duplicate
// is a plain Error, distinguishable only by Op.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "repo: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err as a repo.Error tagged with the failing operation.
func NewError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// ErrNotFound is returned by Get when no record exists for the name.
// It is deliberately distinguished (unlike Create's duplicate failure)
// because callers need to tell "absent" from "transient storage error"
// to drive the Start state's create-vs-retry branch.
var ErrNotFound = errors.New("repo: job not found")

// LockStatus is the outcome of a Lock call.
type LockStatus int

const (
	// Acquired means the caller now holds the lease.
	Acquired LockStatus = iota
	// AlreadyLocked means another owner currently holds a non-expired lease.
	AlreadyLocked
)

// LeaseHandle is an independently-pollable background activity that
// extends a held lease until it fails or is stopped.
type LeaseHandle interface {
	// Err yields the terminal refresh error, exactly once, when refresh
	// fails. It is never sent to on the happy path (i.e. reading it
	// should be done via select, racing other sources).
	Err() <-chan error
	// Stop terminates the refresher. Safe to call multiple times.
	Stop()
}

// Repository is the only coupling point between executor logic and
// storage. It must be cloneable: each executor drives its own handle.
type Repository interface {
	// Create inserts a record if and only if no record with this name
	// exists. Failure on duplicate is a plain error, not distinguished.
	Create(ctx context.Context, data job.Data) error

	// Get returns the current record for name, or ErrNotFound.
	Get(ctx context.Context, name job.Name) (job.Data, error)

	// Save atomically sets state and last_run, and clears owner/expires
	// to zero, in a single round-trip. Releases any held lease.
	Save(ctx context.Context, name job.Name, lastRun time.Time, state []byte) error

	// Commit sets only state, leaving any held lease untouched.
	Commit(ctx context.Context, name job.Name, state []byte) error

	// Lock atomically claims ownership when the stored expires is in the
	// past, extending it to now+ttl, and starts a LeaseHandle that keeps
	// it alive. The returned job.Data reflects the post-update document.
	Lock(ctx context.Context, name job.Name, owner string, ttl time.Duration) (LockStatus, job.Data, LeaseHandle, error)

	// Clone returns an independently-usable handle to the same backing
	// store, for handing to a new executor.
	Clone() Repository
}
