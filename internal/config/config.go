// Package config provides configuration management for fleetcron's
// example CLI and status server.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/plykit/fleetcron/pkg/utils"
)

// ErrConfigNotFound indicates no usable config file was found.
var ErrConfigNotFound = errors.New("config not found")

// Config matches the structure of fleetcron.yaml.
type Config struct {
	Instance InstanceConfig `json:"instance" yaml:"instance" mapstructure:"instance"`
	Backend  BackendConfig  `json:"backend" yaml:"backend" mapstructure:"backend"`
	HTTPAPI  HTTPAPIConfig  `json:"httpapi" yaml:"httpapi" mapstructure:"httpapi"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging" mapstructure:"logging"`
}

// InstanceConfig identifies this process as a lease owner.
type InstanceConfig struct {
	ID string `json:"id" yaml:"id" mapstructure:"id"`
}

// BackendConfig selects and configures the Repository implementation.
type BackendConfig struct {
	Kind     string         `json:"kind" yaml:"kind" mapstructure:"kind"` // "docstore" or "filekv"
	Docstore DocstoreConfig `json:"docstore" yaml:"docstore" mapstructure:"docstore"`
	Filekv   FilekvConfig   `json:"filekv" yaml:"filekv" mapstructure:"filekv"`
}

// DocstoreConfig configures the REST-backed document store.
type DocstoreConfig struct {
	BaseURL   string  `json:"baseUrl" yaml:"baseUrl" mapstructure:"baseUrl"`
	AuthToken string  `json:"authToken" yaml:"authToken" mapstructure:"authToken"`
	RPS       float64 `json:"rps" yaml:"rps" mapstructure:"rps"`
	Burst     int     `json:"burst" yaml:"burst" mapstructure:"burst"`
}

// FilekvConfig configures the single-file, flock-guarded store.
type FilekvConfig struct {
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// HTTPAPIConfig controls the optional read-only status server.
type HTTPAPIConfig struct {
	Enabled        bool    `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Bind           string  `json:"bind" yaml:"bind" mapstructure:"bind"`
	Port           int     `json:"port" yaml:"port" mapstructure:"port"`
	RateLimitRPS   float64 `json:"rateLimitRps" yaml:"rateLimitRps" mapstructure:"rateLimitRps"`
	RateLimitBurst int     `json:"rateLimitBurst" yaml:"rateLimitBurst" mapstructure:"rateLimitBurst"`
}

// LoggingConfig holds the logging settings read from fleetcron.yaml.
// Verbose is not read by fleetjobsctl, whose log level comes from its
// --verbose flag.
type LoggingConfig struct {
	Verbose bool `json:"verbose" yaml:"verbose" mapstructure:"verbose"`
}

// StateDir returns the fleetcron state directory path.
// Can be overridden via FLEETCRON_STATE_DIR. Default: ~/.fleetcron
func StateDir() string {
	if override := strings.TrimSpace(os.Getenv("FLEETCRON_STATE_DIR")); override != "" {
		return expandPath(override)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".fleetcron"
	}
	return filepath.Join(home, ".fleetcron")
}

// ConfigPath returns the default config file path.
// Can be overridden via FLEETCRON_CONFIG_PATH. Default: ~/.fleetcron/fleetcron.yaml
func ConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("FLEETCRON_CONFIG_PATH")); override != "" {
		return expandPath(override)
	}
	return filepath.Join(StateDir(), "fleetcron.yaml")
}

func expandPath(path string) string {
	return utils.ExpandPath(path)
}

// LoadViper loads the configuration into a Viper instance.
func LoadViper() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if configPath := strings.TrimSpace(os.Getenv("FLEETCRON_CONFIG_PATH")); configPath != "" {
		expandedPath := expandPath(configPath)
		if info, err := os.Stat(expandedPath); err == nil && info.IsDir() {
			v.SetConfigName("fleetcron")
			v.AddConfigPath(expandedPath)
		} else {
			v.SetConfigFile(expandedPath)
		}
	} else {
		v.SetConfigName("fleetcron")
		v.AddConfigPath(StateDir())
	}

	v.SetEnvPrefix("FLEETCRON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, err
	}

	return v, nil
}

// Load reads the configuration from file or environment variables,
// applying defaults for anything unset.
func Load() (*Config, error) {
	v, err := LoadViper()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Backend.Docstore.AuthToken = os.ExpandEnv(cfg.Backend.Docstore.AuthToken)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("instance.id", "")
	v.SetDefault("backend.kind", "filekv")
	v.SetDefault("backend.filekv.path", filepath.Join(StateDir(), "jobs.db"))
	v.SetDefault("backend.docstore.rps", 20.0)
	v.SetDefault("backend.docstore.burst", 5)
	v.SetDefault("httpapi.enabled", false)
	v.SetDefault("httpapi.bind", "127.0.0.1")
	v.SetDefault("httpapi.port", 18790)
	v.SetDefault("httpapi.rateLimitRps", 5.0)
	v.SetDefault("httpapi.rateLimitBurst", 10)
}

// Save writes cfg to ConfigPath() as YAML-compatible JSON.
func Save(cfg *Config) error {
	configPath := ConfigPath()
	if err := utils.EnsureDir(filepath.Dir(configPath)); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0600)
}

// Validate checks for semantic errors in the config.
func (c *Config) Validate() error {
	switch c.Backend.Kind {
	case "docstore":
		if c.Backend.Docstore.BaseURL == "" {
			return fmt.Errorf("backend.docstore.baseUrl is required when backend.kind is docstore")
		}
	case "filekv":
		if c.Backend.Filekv.Path == "" {
			return fmt.Errorf("backend.filekv.path is required when backend.kind is filekv")
		}
	default:
		return fmt.Errorf("backend.kind must be \"docstore\" or \"filekv\", got %q", c.Backend.Kind)
	}
	return nil
}
