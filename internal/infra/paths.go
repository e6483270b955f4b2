// Package infra provides filesystem path resolution for fleetcron's
// example CLI: config, data, cache, and log directories.
package infra

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/plykit/fleetcron/internal/config"
	"github.com/plykit/fleetcron/pkg/utils"
)

// Paths holds commonly used directories, resolved once at load.
var Paths = struct {
	ConfigDir string
	DataDir   string
	CacheDir  string
	LogDir    string
}{
	ConfigDir: resolveConfigDir(),
	DataDir:   resolveDataDir(),
	CacheDir:  resolveCacheDir(),
	LogDir:    resolveLogDir(),
}

func resolveConfigDir() string {
	return config.StateDir()
}

func resolveDataDir() string {
	stateDir := config.StateDir()

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(stateDir, "data")
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "fleetcron", "data")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "fleetcron", "data")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "fleetcron")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "fleetcron")
	}
}

func resolveCacheDir() string {
	home, _ := os.UserHomeDir()

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "fleetcron")
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "fleetcron", "cache")
		}
		return filepath.Join(home, "fleetcron", "cache")
	default:
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "fleetcron")
		}
		return filepath.Join(home, ".cache", "fleetcron")
	}
}

func resolveLogDir() string {
	home, _ := os.UserHomeDir()

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "fleetcron")
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "fleetcron", "logs")
		}
		return filepath.Join(home, "fleetcron", "logs")
	default:
		return filepath.Join(home, ".local", "state", "fleetcron", "logs")
	}
}

// EnsureDirs creates every directory Paths names.
func EnsureDirs() error {
	dirs := []string{Paths.ConfigDir, Paths.DataDir, Paths.CacheDir, Paths.LogDir}
	for _, dir := range dirs {
		if err := utils.EnsureDir(dir); err != nil {
			return err
		}
	}
	return nil
}
