// Package docstore is a Repository backend for a document-store HTTP API
// (the kind exposed by services such as Couchbase Sync Gateway or a
// Firestore-style REST facade): one JSON document per job, addressed by
// its name, with a conditional-update endpoint for the lease acquire.
package docstore

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/plykit/fleetcron/job"
	"github.com/plykit/fleetcron/lease"
	"github.com/plykit/fleetcron/repo"
)

// document is the on-the-wire layout stored per job, one JSON document
// per name.
type document struct {
	ID            string `json:"_id"`
	CheckInterval int64  `json:"check_interval"`
	LockTTL       int64  `json:"lock_ttl"`
	State         string `json:"state"`
	Schedule      string `json:"schedule"`
	Enabled       bool   `json:"enabled"`
	LastRun       int64  `json:"last_run"`
	Owner         string `json:"owner"`
	Expires       int64  `json:"expires"`
	Version       int    `json:"version"`
}

func toDocument(d job.Data) document {
	return document{
		ID:            string(d.Name),
		CheckInterval: int64(d.CheckInterval / time.Second),
		LockTTL:       int64(d.LockTTL / time.Second),
		State:         base64.StdEncoding.EncodeToString(d.State),
		Schedule:      d.ScheduleExpr,
		Enabled:       d.Enabled,
		LastRun:       d.LastRun.Unix(),
		Owner:         d.Owner,
		Expires:       d.Expires,
		Version:       d.Version,
	}
}

func fromDocument(doc document) (job.Data, error) {
	state, err := base64.StdEncoding.DecodeString(doc.State)
	if err != nil {
		return job.Data{}, fmt.Errorf("docstore: decode state: %w", err)
	}
	return job.Data{
		Name:          job.Name(doc.ID),
		ScheduleExpr:  doc.Schedule,
		CheckInterval: time.Duration(doc.CheckInterval) * time.Second,
		LockTTL:       time.Duration(doc.LockTTL) * time.Second,
		Enabled:       doc.Enabled,
		State:         state,
		LastRun:       time.Unix(doc.LastRun, 0).UTC(),
		Owner:         doc.Owner,
		Expires:       doc.Expires,
		Version:       doc.Version,
	}, nil
}

// Backend is a Repository implementation talking to a document-store HTTP
// API over resty. A clone shares the client and limiter, since both are
// safe for concurrent use; only the owner string differs per executor.
type Backend struct {
	client  *resty.Client
	baseURL string
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// New builds a Backend against baseURL (e.g. "https://docs.example.internal/jobs").
// rps/burst throttle outbound requests so a contended lease doesn't
// busy-loop the store.
func New(baseURL, authToken string, rps float64, burst int, logger zerolog.Logger) *Backend {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json")
	if authToken != "" {
		client.SetAuthToken(authToken)
	}
	return &Backend{
		client:  client,
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger.With().Str("component", "docstore").Logger(),
	}
}

func (b *Backend) wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// Create inserts a document if and only if none exists for this name.
func (b *Backend) Create(ctx context.Context, data job.Data) error {
	if err := b.wait(ctx); err != nil {
		return repo.NewError("create", err)
	}
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(toDocument(data)).
		Post("/" + string(data.Name) + "?mode=create-only")
	if err != nil {
		return repo.NewError("create", err)
	}
	if resp.IsError() {
		return repo.NewError("create", fmt.Errorf("docstore create %s: %s", data.Name, resp.Status()))
	}
	return nil
}

// Get returns the current document for name.
func (b *Backend) Get(ctx context.Context, name job.Name) (job.Data, error) {
	if err := b.wait(ctx); err != nil {
		return job.Data{}, repo.NewError("get", err)
	}
	var doc document
	resp, err := b.client.R().
		SetContext(ctx).
		SetResult(&doc).
		Get("/" + string(name))
	if err != nil {
		return job.Data{}, repo.NewError("get", err)
	}
	if resp.StatusCode() == 404 {
		return job.Data{}, repo.ErrNotFound
	}
	if resp.IsError() {
		return job.Data{}, repo.NewError("get", fmt.Errorf("docstore get %s: %s", name, resp.Status()))
	}
	return fromDocument(doc)
}

// Save atomically sets state/last_run and clears owner/expires in one
// request. The server applies all four fields in a single write; this
// client never splits them into separate calls.
func (b *Backend) Save(ctx context.Context, name job.Name, lastRun time.Time, state []byte) error {
	if err := b.wait(ctx); err != nil {
		return repo.NewError("save", err)
	}
	body := map[string]interface{}{
		"state":    base64.StdEncoding.EncodeToString(state),
		"last_run": lastRun.Unix(),
		"owner":    "",
		"expires":  0,
	}
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(body).
		Patch("/" + string(name) + "/release")
	if err != nil {
		return repo.NewError("save", err)
	}
	if resp.IsError() {
		return repo.NewError("save", fmt.Errorf("docstore save %s: %s", name, resp.Status()))
	}
	return nil
}

// Commit sets only state, leaving any held lease untouched.
func (b *Backend) Commit(ctx context.Context, name job.Name, state []byte) error {
	if err := b.wait(ctx); err != nil {
		return repo.NewError("commit", err)
	}
	body := map[string]interface{}{
		"state": base64.StdEncoding.EncodeToString(state),
	}
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(body).
		Patch("/" + string(name) + "/state")
	if err != nil {
		return repo.NewError("commit", err)
	}
	if resp.IsError() {
		return repo.NewError("commit", fmt.Errorf("docstore commit %s: %s", name, resp.Status()))
	}
	return nil
}

// Lock conditions the update on the store's own expires<now check: the
// query parameter names the threshold and the server's find-and-modify
// (or equivalent conditional write) evaluates it atomically. A naive
// get-then-patch is never used here, per the contract's atomicity clause.
func (b *Backend) Lock(ctx context.Context, name job.Name, owner string, ttl time.Duration) (repo.LockStatus, job.Data, repo.LeaseHandle, error) {
	if err := b.wait(ctx); err != nil {
		return repo.AlreadyLocked, job.Data{}, nil, repo.NewError("lock", err)
	}
	now := time.Now().UTC()
	body := map[string]interface{}{
		"owner":   owner,
		"expires": now.Add(ttl).Unix(),
	}
	var doc document
	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParam("expires_lt", fmt.Sprintf("%d", now.Unix())).
		SetBody(body).
		SetResult(&doc).
		Patch("/" + string(name) + "/lock")
	if err != nil {
		return repo.AlreadyLocked, job.Data{}, nil, repo.NewError("lock", err)
	}
	if resp.StatusCode() == 409 {
		return repo.AlreadyLocked, job.Data{}, nil, nil
	}
	if resp.IsError() {
		return repo.AlreadyLocked, job.Data{}, nil, repo.NewError("lock", fmt.Errorf("docstore lock %s: %s", name, resp.Status()))
	}
	data, err := fromDocument(doc)
	if err != nil {
		return repo.AlreadyLocked, job.Data{}, nil, repo.NewError("lock", err)
	}

	handle := lease.Start(context.Background(), func(ctx context.Context) error {
		return b.extend(ctx, name, owner, ttl)
	}, ttl, b.logger)
	return repo.Acquired, data, handle, nil
}

func (b *Backend) extend(ctx context.Context, name job.Name, owner string, ttl time.Duration) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	body := map[string]interface{}{
		"owner":   owner,
		"expires": time.Now().UTC().Add(ttl).Unix(),
	}
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(body).
		Patch("/" + string(name) + "/extend")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("docstore extend %s: %s", name, resp.Status())
	}
	return nil
}

// Clone returns a handle sharing this Backend's HTTP client and rate
// limiter; both are safe for concurrent use across executors.
func (b *Backend) Clone() repo.Repository {
	return b
}
