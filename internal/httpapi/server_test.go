package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plykit/fleetcron/job"
	"github.com/plykit/fleetcron/manager"
	"github.com/plykit/fleetcron/pkg/types"
	"github.com/plykit/fleetcron/repo"
	"github.com/plykit/fleetcron/schedule"
)

type fakeRepo struct {
	mu   sync.Mutex
	docs map[job.Name]job.Data
}

func newFakeRepo() *fakeRepo { return &fakeRepo{docs: make(map[job.Name]job.Data)} }

func (f *fakeRepo) Create(_ context.Context, data job.Data) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[data.Name] = data
	return nil
}

func (f *fakeRepo) Get(_ context.Context, name job.Name) (job.Data, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[name]
	if !ok {
		return job.Data{}, repo.ErrNotFound
	}
	return d, nil
}

func (f *fakeRepo) Save(_ context.Context, name job.Name, lastRun time.Time, state []byte) error {
	return nil
}
func (f *fakeRepo) Commit(_ context.Context, name job.Name, state []byte) error { return nil }
func (f *fakeRepo) Lock(_ context.Context, name job.Name, owner string, ttl time.Duration) (repo.LockStatus, job.Data, repo.LeaseHandle, error) {
	return repo.AlreadyLocked, job.Data{}, nil, nil
}
func (f *fakeRepo) Clone() repo.Repository { return f }

func newTestServer(t *testing.T) (*Server, *fakeRepo) {
	t.Helper()
	r := newFakeRepo()
	mgr := manager.New("instance-a", r, zerolog.Nop())

	body := func(ctx context.Context, state []byte) ([]byte, error) { return state, nil }
	cfg := job.New("nightly", schedule.Minutely)
	require.NoError(t, mgr.Register(cfg, body))
	require.NoError(t, r.Create(context.Background(), job.NewData(cfg)))

	srv := New(Config{Addr: ":0", RateLimitRPS: 1000, RateLimitBurst: 1000}, mgr, r, zerolog.Nop())
	return srv, r
}

func TestHandleJobs_ListsRegisteredJobs(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nightly")
}

func TestHandleJob_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs/ghost", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
	assert.Contains(t, rec.Body.String(), types.ErrCodeNotFound)
}

func TestHandleJob_Found(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs/nightly", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "0 * * * * *")
}

func TestHandleJobs_RejectsInvalidLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/jobs?limit=-1", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
