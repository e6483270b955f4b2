// Package repotest is a backend-agnostic conformance suite for repo.Repository
// implementations. Each backend's own _test.go imports this and calls
// Run against a freshly-constructed instance, so the same assertions run
// against every backend instead of being duplicated per caller.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plykit/fleetcron/job"
	"github.com/plykit/fleetcron/repo"
	"github.com/plykit/fleetcron/schedule"
)

// Run exercises the invariants every Repository implementation must hold
// against a fresh instance built by newBackend for each subtest.
// newBackend must return an empty, ready-to-use backend.
func Run(t *testing.T, newBackend func(t *testing.T) repo.Repository) {
	t.Run("create then get round-trips logical fields", func(t *testing.T) {
		r := newBackend(t)
		ctx := context.Background()

		data := job.Data{
			Name:          "round-trip",
			ScheduleExpr:  "0 * * * * *",
			CheckInterval: 60 * time.Second,
			LockTTL:       20 * time.Second,
			Enabled:       true,
			State:         []byte("payload-bytes"),
			LastRun:       time.Unix(1700000000, 0).UTC(),
			Owner:         "",
			Expires:       0,
			Version:       0,
		}

		require.NoError(t, r.Create(ctx, data))

		got, err := r.Get(ctx, data.Name)
		require.NoError(t, err)

		assert.Equal(t, data.Name, got.Name)
		assert.Equal(t, data.ScheduleExpr, got.ScheduleExpr)
		assert.Equal(t, data.Enabled, got.Enabled)
		assert.Equal(t, data.State, got.State)
		assert.WithinDuration(t, data.LastRun, got.LastRun, time.Second)
	})

	t.Run("create rejects duplicate names", func(t *testing.T) {
		r := newBackend(t)
		ctx := context.Background()
		data := job.NewData(job.New("dup", schedule.Minutely))
		require.NoError(t, r.Create(ctx, data))
		err := r.Create(ctx, data)
		require.Error(t, err)
	})

	t.Run("get on absent name fails", func(t *testing.T) {
		r := newBackend(t)
		_, err := r.Get(context.Background(), "nope")
		require.Error(t, err)
	})

	t.Run("lock acquires and blocks a second owner", func(t *testing.T) {
		r := newBackend(t)
		ctx := context.Background()
		name := job.Name("locked")
		require.NoError(t, r.Create(ctx, job.NewData(job.New(name, schedule.Minutely))))

		status, data, handle, err := r.Lock(ctx, name, "owner-a", 10*time.Second)
		require.NoError(t, err)
		require.Equal(t, repo.Acquired, status)
		assert.Equal(t, "owner-a", data.Owner)
		defer handle.Stop()

		status2, _, _, err := r.Clone().Lock(ctx, name, "owner-b", 10*time.Second)
		require.NoError(t, err)
		assert.Equal(t, repo.AlreadyLocked, status2)
	})

	t.Run("save clears the lease so a different owner can lock immediately", func(t *testing.T) {
		r := newBackend(t)
		ctx := context.Background()
		name := job.Name("released")
		require.NoError(t, r.Create(ctx, job.NewData(job.New(name, schedule.Minutely))))

		status, data, handle, err := r.Lock(ctx, name, "owner-a", 10*time.Second)
		require.NoError(t, err)
		require.Equal(t, repo.Acquired, status)
		handle.Stop()

		require.NoError(t, r.Save(ctx, name, time.Now().UTC(), []byte("new-state")))

		after, err := r.Get(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, "", after.Owner)
		assert.Equal(t, int64(0), after.Expires)
		assert.Equal(t, []byte("new-state"), after.State)

		status2, _, handle2, err := r.Clone().Lock(ctx, name, "owner-b", 10*time.Second)
		require.NoError(t, err)
		require.Equal(t, repo.Acquired, status2)
		handle2.Stop()
		_ = data
	})

	t.Run("commit updates state without touching an active lease", func(t *testing.T) {
		r := newBackend(t)
		ctx := context.Background()
		name := job.Name("checkpoint")
		require.NoError(t, r.Create(ctx, job.NewData(job.New(name, schedule.Minutely))))

		status, _, handle, err := r.Lock(ctx, name, "owner-a", 10*time.Second)
		require.NoError(t, err)
		require.Equal(t, repo.Acquired, status)
		defer handle.Stop()

		require.NoError(t, r.Commit(ctx, name, []byte("checkpoint-1")))

		mid, err := r.Get(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, []byte("checkpoint-1"), mid.State)
		assert.Equal(t, "owner-a", mid.Owner)
	})
}
