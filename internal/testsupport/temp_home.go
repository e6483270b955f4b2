// Package testsupport provides test utilities shared across fleetcron's
// package-level test files.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// TempHome creates a temporary home directory for isolated tests and
// clears fleetcron's env-var overrides so its default paths resolve there.
type TempHome struct {
	Dir      string
	Original string
	restore  map[string]string
}

// NewTempHome creates a new temporary home directory, sets HOME and the
// XDG variables into it, and unsets fleetcron's own overrides so
// config.StateDir()/ConfigPath() resolve inside the temp dir until Cleanup.
func NewTempHome(t *testing.T) *TempHome {
	t.Helper()

	dir := t.TempDir()

	th := &TempHome{
		Dir:      dir,
		Original: os.Getenv("HOME"),
		restore:  make(map[string]string),
	}

	envVars := []string{
		"HOME",
		"XDG_CONFIG_HOME",
		"XDG_DATA_HOME",
		"XDG_STATE_HOME",
		"XDG_CACHE_HOME",
		"FLEETCRON_CONFIG_PATH",
		"FLEETCRON_STATE_DIR",
	}

	for _, key := range envVars {
		th.restore[key] = os.Getenv(key)
	}

	_ = os.Setenv("HOME", dir)
	_ = os.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	_ = os.Setenv("XDG_DATA_HOME", filepath.Join(dir, ".local", "share"))
	_ = os.Setenv("XDG_STATE_HOME", filepath.Join(dir, ".local", "state"))
	_ = os.Setenv("XDG_CACHE_HOME", filepath.Join(dir, ".cache"))
	_ = os.Unsetenv("FLEETCRON_CONFIG_PATH")
	_ = os.Unsetenv("FLEETCRON_STATE_DIR")

	_ = os.MkdirAll(filepath.Join(dir, ".fleetcron"), 0755)

	return th
}

// Cleanup restores the original environment.
func (th *TempHome) Cleanup() {
	for key, value := range th.restore {
		if value == "" {
			_ = os.Unsetenv(key)
		} else {
			_ = os.Setenv(key, value)
		}
	}
}

// StateDir returns the fleetcron state directory inside the temp home.
func (th *TempHome) StateDir() string {
	return filepath.Join(th.Dir, ".fleetcron")
}

// WriteConfig writes a config file to the temp home's state dir.
func (th *TempHome) WriteConfig(t *testing.T, content string) string {
	t.Helper()

	configPath := filepath.Join(th.StateDir(), "fleetcron.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

// CreateFile creates a file in the temp home.
func (th *TempHome) CreateFile(t *testing.T, relPath, content string) string {
	t.Helper()

	fullPath := filepath.Join(th.Dir, relPath)
	dir := filepath.Dir(fullPath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}

	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	return fullPath
}
