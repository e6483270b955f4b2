// Package manager is a thin coordination layer: it registers jobs, spawns
// one executor goroutine per job against a shared repo.Repository, and
// routes cancellation. It holds no scheduling logic of its own, that
// lives entirely in executor.
package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/plykit/fleetcron/executor"
	"github.com/plykit/fleetcron/job"
	"github.com/plykit/fleetcron/repo"
)

type status int

const (
	registered status = iota
	running
	stopped
)

type entry struct {
	cfg    job.Config
	body   job.Body
	cancel chan struct{}
	status status
}

// Manager owns the set of jobs running under one process instance.
type Manager struct {
	instance string
	repo     repo.Repository
	logger   zerolog.Logger

	mu      sync.Mutex
	entries []*entry
	wg      sync.WaitGroup
}

// New builds a Manager identified as instance, persisting job state
// through repository.
func New(instance string, repository repo.Repository, logger zerolog.Logger) *Manager {
	return &Manager{
		instance: instance,
		repo:     repository,
		logger:   logger.With().Str("instance", instance).Logger(),
	}
}

// Register appends a (config, job-body) pair. Duplicate names are not
// checked here, two registrations of the same name simply run as two
// independent executors contending for the same lease, which the lock
// protocol already handles safely.
func (m *Manager) Register(cfg job.Config, body job.Body) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("manager: register %s: %w", cfg.Name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, &entry{cfg: cfg, body: body, cancel: make(chan struct{})})
	return nil
}

// StartAll spawns an executor goroutine for every registered-but-not-yet-
// started job. Each executor gets its own Repository handle via Clone.
func (m *Manager) StartAll(ctx context.Context) {
	m.mu.Lock()
	pending := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		if e.status == registered {
			e.status = running
			pending = append(pending, e)
		}
	}
	m.mu.Unlock()

	for _, e := range pending {
		e := e
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			ex := executor.New(m.instance, e.cfg, e.body, m.repo.Clone(), m.logger, e.cancel)
			ex.Run(ctx)
		}()
	}
}

// StopByName signals cancellation on the first matching running job.
// A missing or already-stopped job is treated as success.
func (m *Manager) StopByName(name job.Name) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.cfg.Name != name {
			continue
		}
		if e.status != running {
			continue
		}
		e.status = stopped
		close(e.cancel)
		return nil
	}
	return nil
}

// StopAll signals cancellation on every running job.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.status == running {
			e.status = stopped
			close(e.cancel)
		}
	}
}

// Wait blocks until every started executor has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Jobs returns the names of every registered job, for status reporting.
func (m *Manager) Jobs() []job.Name {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]job.Name, 0, len(m.entries))
	for _, e := range m.entries {
		names = append(names, e.cfg.Name)
	}
	return names
}
