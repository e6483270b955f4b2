package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTempHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("FLEETCRON_STATE_DIR", "")
	t.Setenv("FLEETCRON_CONFIG_PATH", "")
	return dir
}

func TestConfigPath_DefaultsUnderStateDir(t *testing.T) {
	withTempHome(t)
	expected := filepath.Join(StateDir(), "fleetcron.yaml")
	assert.Equal(t, expected, ConfigPath())
}

func TestConfigPath_Override(t *testing.T) {
	withTempHome(t)
	override := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv("FLEETCRON_CONFIG_PATH", override)
	assert.Equal(t, override, ConfigPath())
}

func TestStateDir_Override(t *testing.T) {
	withTempHome(t)
	override := filepath.Join(t.TempDir(), "custom-state")
	t.Setenv("FLEETCRON_STATE_DIR", override)
	assert.Equal(t, override, StateDir())
}

func TestLoad_AppliesDefaultsWhenNoFileExists(t *testing.T) {
	withTempHome(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "filekv", cfg.Backend.Kind)
	assert.Equal(t, float64(5), cfg.HTTPAPI.RateLimitRPS)
	assert.False(t, cfg.HTTPAPI.Enabled)
}

func TestLoad_ReadsFileValues(t *testing.T) {
	dir := withTempHome(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".fleetcron"), 0755))

	content := "backend:\n  kind: docstore\n  docstore:\n    baseUrl: http://localhost:9000\n"
	configPath := filepath.Join(dir, ".fleetcron", "fleetcron.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "docstore", cfg.Backend.Kind)
	assert.Equal(t, "http://localhost:9000", cfg.Backend.Docstore.BaseURL)
}

func TestConfig_ValidateRequiresBaseURLForDocstore(t *testing.T) {
	cfg := &Config{Backend: BackendConfig{Kind: "docstore"}}
	require.Error(t, cfg.Validate())
}

func TestConfig_ValidateRequiresPathForFilekv(t *testing.T) {
	cfg := &Config{Backend: BackendConfig{Kind: "filekv"}}
	require.Error(t, cfg.Validate())
}

func TestConfig_ValidateRejectsUnknownKind(t *testing.T) {
	cfg := &Config{Backend: BackendConfig{Kind: "carrier-pigeon"}}
	require.Error(t, cfg.Validate())
}

func TestConfig_ValidateAcceptsWellFormedFilekv(t *testing.T) {
	cfg := &Config{Backend: BackendConfig{Kind: "filekv", Filekv: FilekvConfig{Path: "/tmp/jobs.db"}}}
	require.NoError(t, cfg.Validate())
}

func TestSave_WritesReadableConfig(t *testing.T) {
	withTempHome(t)
	cfg := &Config{Backend: BackendConfig{Kind: "filekv", Filekv: FilekvConfig{Path: "/tmp/jobs.db"}}}
	require.NoError(t, Save(cfg))

	data, err := os.ReadFile(ConfigPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "filekv")
}
