package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathResolution(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("FLEETCRON_STATE_DIR", filepath.Join(tempDir, ".fleetcron"))

	configDir := resolveConfigDir()
	assert.Contains(t, configDir, ".fleetcron")

	dataDir := resolveDataDir()
	assert.Contains(t, dataDir, "fleetcron")
}

func TestEnsureDirs(t *testing.T) {
	tempDir := t.TempDir()

	oldPaths := Paths
	defer func() { Paths = oldPaths }()

	Paths.ConfigDir = filepath.Join(tempDir, "config")
	Paths.DataDir = filepath.Join(tempDir, "data")
	Paths.CacheDir = filepath.Join(tempDir, "cache")
	Paths.LogDir = filepath.Join(tempDir, "log")

	err := EnsureDirs()
	assert.NoError(t, err)

	assert.DirExists(t, Paths.ConfigDir)
	assert.DirExists(t, Paths.DataDir)
	assert.DirExists(t, Paths.CacheDir)
	assert.DirExists(t, Paths.LogDir)

	_ = os.Getenv("HOME")
}
