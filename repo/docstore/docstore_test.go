package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plykit/fleetcron/internal/testsupport"
	"github.com/plykit/fleetcron/repo"
	"github.com/plykit/fleetcron/repo/repotest"
)

// fakeStore is a minimal in-memory document store implementing the same
// conditional-update semantics the real backend this client talks to
// would provide: the lock endpoint's expires<now check and the write
// happen under one mutex, matching the atomicity the contract requires.
type fakeStore struct {
	mu   sync.Mutex
	docs map[string]document
}

func newFakeStore() *httptest.Server {
	fs := &fakeStore{docs: make(map[string]document)}
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/")
		switch {
		case strings.HasSuffix(id, "/lock"):
			fs.handleLock(w, r, strings.TrimSuffix(id, "/lock"))
		case strings.HasSuffix(id, "/extend"):
			fs.handleExtend(w, r, strings.TrimSuffix(id, "/extend"))
		case strings.HasSuffix(id, "/release"):
			fs.handleRelease(w, r, strings.TrimSuffix(id, "/release"))
		case strings.HasSuffix(id, "/state"):
			fs.handleState(w, r, strings.TrimSuffix(id, "/state"))
		default:
			fs.handleDoc(w, r, id)
		}
	})
	return httptest.NewServer(mux)
}

func (fs *fakeStore) handleDoc(w http.ResponseWriter, r *http.Request, id string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	switch r.Method {
	case http.MethodPost:
		if r.URL.Query().Get("mode") == "create-only" {
			if _, exists := fs.docs[id]; exists {
				w.WriteHeader(http.StatusConflict)
				return
			}
		}
		var doc document
		_ = json.NewDecoder(r.Body).Decode(&doc)
		doc.ID = id
		fs.docs[id] = doc
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		doc, exists := fs.docs[id]
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(doc)
	}
}

func (fs *fakeStore) handleLock(w http.ResponseWriter, r *http.Request, id string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, exists := fs.docs[id]
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	threshold, _ := strconv.ParseInt(r.URL.Query().Get("expires_lt"), 10, 64)
	if doc.Expires >= threshold {
		w.WriteHeader(http.StatusConflict)
		return
	}

	var body struct {
		Owner   string `json:"owner"`
		Expires int64  `json:"expires"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	doc.Owner = body.Owner
	doc.Expires = body.Expires
	fs.docs[id] = doc

	_ = json.NewEncoder(w).Encode(doc)
}

func (fs *fakeStore) handleExtend(w http.ResponseWriter, r *http.Request, id string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, exists := fs.docs[id]
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var body struct {
		Owner   string `json:"owner"`
		Expires int64  `json:"expires"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if doc.Owner != body.Owner {
		w.WriteHeader(http.StatusConflict)
		return
	}
	doc.Expires = body.Expires
	fs.docs[id] = doc
	w.WriteHeader(http.StatusOK)
}

func (fs *fakeStore) handleRelease(w http.ResponseWriter, r *http.Request, id string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, exists := fs.docs[id]
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var body struct {
		State   string `json:"state"`
		LastRun int64  `json:"last_run"`
		Owner   string `json:"owner"`
		Expires int64  `json:"expires"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	doc.State = body.State
	doc.LastRun = body.LastRun
	doc.Owner = body.Owner
	doc.Expires = body.Expires
	fs.docs[id] = doc
	w.WriteHeader(http.StatusOK)
}

func (fs *fakeStore) handleState(w http.ResponseWriter, r *http.Request, id string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doc, exists := fs.docs[id]
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var body struct {
		State string `json:"state"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	doc.State = body.State
	fs.docs[id] = doc
	w.WriteHeader(http.StatusOK)
}

func TestBackend_Conformance(t *testing.T) {
	srv := newFakeStore()
	t.Cleanup(srv.Close)

	repotest.Run(t, func(t *testing.T) repo.Repository {
		return New(srv.URL, "", 1000, 10, zerolog.Nop())
	})
}

func TestBackend_SendsAuthToken(t *testing.T) {
	ms := testsupport.NewMockServer()
	t.Cleanup(ms.Close)
	ms.HandleFunc(http.MethodGet, "/present", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(document{ID: "present", State: "", Schedule: "0 * * * * *"})
	})

	backend := New(ms.URL, "secret-token", 1000, 10, zerolog.Nop())
	_, err := backend.Get(context.Background(), "present")
	require.NoError(t, err)

	reqs := ms.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, fmt.Sprintf("Bearer %s", "secret-token"), reqs[0].Headers.Get("Authorization"))
}
