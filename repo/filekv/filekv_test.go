package filekv

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/plykit/fleetcron/repo"
	"github.com/plykit/fleetcron/repo/repotest"
)

func TestBackend_Conformance(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repo.Repository {
		dir := t.TempDir()
		return New(filepath.Join(dir, "jobs.db"), zerolog.Nop())
	})
}
