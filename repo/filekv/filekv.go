// Package filekv is a Repository backend over a single local file: a
// gob-encoded map keyed by job.Name, guarded by an inter-process advisory
// file lock so the conditional Lock/Save semantics hold even when
// multiple OS processes share one file (an in-process sync.Mutex alone
// cannot make that guarantee across processes).
package filekv

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/plykit/fleetcron/job"
	"github.com/plykit/fleetcron/lease"
	"github.com/plykit/fleetcron/repo"
)

// record is the gob-serializable form of job.Data. time.Time and
// time.Duration both gob-encode natively, so this mirrors job.Data
// field-for-field rather than flattening to integers the way the
// docstore's wire document does.
type record struct {
	Name          job.Name
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

func toRecord(d job.Data) record {
	return record{
		Name:          d.Name,
		ScheduleExpr:  d.ScheduleExpr,
		CheckInterval: d.CheckInterval,
		LockTTL:       d.LockTTL,
		Enabled:       d.Enabled,
		State:         d.State,
		LastRun:       d.LastRun,
		Owner:         d.Owner,
		Expires:       d.Expires,
		Version:       d.Version,
	}
}

func fromRecord(r record) job.Data {
	return job.Data{
		Name:          r.Name,
		ScheduleExpr:  r.ScheduleExpr,
		CheckInterval: r.CheckInterval,
		LockTTL:       r.LockTTL,
		Enabled:       r.Enabled,
		State:         r.State,
		LastRun:       r.LastRun,
		Owner:         r.Owner,
		Expires:       r.Expires,
		Version:       r.Version,
	}
}

// Backend is a Repository implementation backed by a single file.
type Backend struct {
	path   string
	lock   *flock.Flock
	logger zerolog.Logger
}

// New builds a Backend rooted at path. The file and its parent directory
// are created on first write if absent.
func New(path string, logger zerolog.Logger) *Backend {
	return &Backend{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger.With().Str("component", "filekv").Logger(),
	}
}

// Clone returns a handle to the same file. flock.Flock instances are not
// safe to share across goroutines that lock independently, so each clone
// gets its own Flock bound to the same lock file; the OS-level advisory
// lock still serializes them.
func (b *Backend) Clone() repo.Repository {
	return &Backend{path: b.path, lock: flock.New(b.path + ".lock"), logger: b.logger}
}

func (b *Backend) withLock(ctx context.Context, fn func(map[job.Name]record) (map[job.Name]record, error)) error {
	locked, err := b.lock.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return fmt.Errorf("filekv: acquire file lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("filekv: could not acquire file lock")
	}
	defer func() { _ = b.lock.Unlock() }()

	records, err := b.read()
	if err != nil {
		return err
	}
	updated, err := fn(records)
	if err != nil {
		return err
	}
	if updated == nil {
		return nil
	}
	return b.write(updated)
}

func (b *Backend) read() (map[job.Name]record, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[job.Name]record{}, nil
		}
		return nil, fmt.Errorf("filekv: read %s: %w", b.path, err)
	}
	if len(data) == 0 {
		return map[job.Name]record{}, nil
	}
	var records map[job.Name]record
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&records); err != nil {
		return nil, fmt.Errorf("filekv: decode %s: %w", b.path, err)
	}
	return records, nil
}

func (b *Backend) write(records map[job.Name]record) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0755); err != nil {
		return fmt.Errorf("filekv: mkdir: %w", err)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(records); err != nil {
		return fmt.Errorf("filekv: encode: %w", err)
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("filekv: write temp: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("filekv: rename: %w", err)
	}
	return nil
}

// Create inserts a record if and only if none exists for this name.
func (b *Backend) Create(ctx context.Context, data job.Data) error {
	err := b.withLock(ctx, func(records map[job.Name]record) (map[job.Name]record, error) {
		if _, exists := records[data.Name]; exists {
			return nil, fmt.Errorf("filekv: job %s already exists", data.Name)
		}
		records[data.Name] = toRecord(data)
		return records, nil
	})
	return repo.NewError("create", err)
}

// Get returns the current record for name, or repo.ErrNotFound.
func (b *Backend) Get(ctx context.Context, name job.Name) (job.Data, error) {
	var result job.Data
	err := b.withLock(ctx, func(records map[job.Name]record) (map[job.Name]record, error) {
		r, exists := records[name]
		if !exists {
			return nil, repo.ErrNotFound
		}
		result = fromRecord(r)
		return nil, nil
	})
	if err != nil {
		if err == repo.ErrNotFound {
			return job.Data{}, repo.ErrNotFound
		}
		return job.Data{}, repo.NewError("get", err)
	}
	return result, nil
}

// Save atomically sets state/last_run and clears owner/expires, releasing
// any held lease. The read-modify-write happens entirely under the file
// lock, so the clearing of owner/expires is never observable separately
// from the state/last_run write.
func (b *Backend) Save(ctx context.Context, name job.Name, lastRun time.Time, state []byte) error {
	err := b.withLock(ctx, func(records map[job.Name]record) (map[job.Name]record, error) {
		r, exists := records[name]
		if !exists {
			return nil, repo.ErrNotFound
		}
		r.State = state
		r.LastRun = lastRun
		r.Owner = ""
		r.Expires = 0
		records[name] = r
		return records, nil
	})
	if err == repo.ErrNotFound {
		return repo.NewError("save", err)
	}
	return repo.NewError("save", err)
}

// Commit sets only state, leaving owner/expires untouched.
func (b *Backend) Commit(ctx context.Context, name job.Name, state []byte) error {
	err := b.withLock(ctx, func(records map[job.Name]record) (map[job.Name]record, error) {
		r, exists := records[name]
		if !exists {
			return nil, repo.ErrNotFound
		}
		r.State = state
		records[name] = r
		return records, nil
	})
	return repo.NewError("commit", err)
}

// Lock atomically claims ownership under the file lock: the expires<now
// check and the owner/expires write happen in the same critical section,
// so no other clone can observe or win a race in between.
func (b *Backend) Lock(ctx context.Context, name job.Name, owner string, ttl time.Duration) (repo.LockStatus, job.Data, repo.LeaseHandle, error) {
	status := repo.AlreadyLocked
	var result job.Data
	now := time.Now().UTC()

	err := b.withLock(ctx, func(records map[job.Name]record) (map[job.Name]record, error) {
		r, exists := records[name]
		if !exists {
			return nil, repo.ErrNotFound
		}
		if r.Expires >= now.Unix() {
			result = fromRecord(r)
			status = repo.AlreadyLocked
			return nil, nil
		}
		r.Owner = owner
		r.Expires = now.Add(ttl).Unix()
		records[name] = r
		result = fromRecord(r)
		status = repo.Acquired
		return records, nil
	})
	if err != nil {
		return repo.AlreadyLocked, job.Data{}, nil, repo.NewError("lock", err)
	}
	if status == repo.AlreadyLocked {
		return repo.AlreadyLocked, job.Data{}, nil, nil
	}

	handle := lease.Start(context.Background(), func(ctx context.Context) error {
		return b.extend(ctx, name, owner, ttl)
	}, ttl, b.logger)
	return repo.Acquired, result, handle, nil
}

func (b *Backend) extend(ctx context.Context, name job.Name, owner string, ttl time.Duration) error {
	return b.withLock(ctx, func(records map[job.Name]record) (map[job.Name]record, error) {
		r, exists := records[name]
		if !exists {
			return nil, repo.ErrNotFound
		}
		if r.Owner != owner {
			return nil, fmt.Errorf("filekv: lease for %s no longer owned by %s", name, owner)
		}
		r.Expires = time.Now().UTC().Add(ttl).Unix()
		records[name] = r
		return records, nil
	})
}
