package commands

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/plykit/fleetcron/internal/config"
	"github.com/plykit/fleetcron/pkg/utils"
	"github.com/plykit/fleetcron/repo"
	"github.com/plykit/fleetcron/repo/docstore"
	"github.com/plykit/fleetcron/repo/filekv"
)

// loadConfig honors the --config flag by overriding FLEETCRON_CONFIG_PATH
// before delegating to config.Load.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := os.Setenv("FLEETCRON_CONFIG_PATH", path); err != nil {
			return nil, err
		}
	}
	return config.Load()
}

// newLogger builds the zerolog.Logger fleetjobsctl uses throughout,
// console-formatted for a human running the CLI interactively.
func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// buildRepository constructs the Repository named by cfg.Backend.Kind.
func buildRepository(cfg *config.Config, logger zerolog.Logger) (repo.Repository, error) {
	switch cfg.Backend.Kind {
	case "docstore":
		return docstore.New(
			cfg.Backend.Docstore.BaseURL,
			cfg.Backend.Docstore.AuthToken,
			cfg.Backend.Docstore.RPS,
			cfg.Backend.Docstore.Burst,
			logger,
		), nil
	case "filekv":
		return filekv.New(cfg.Backend.Filekv.Path, logger), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Backend.Kind)
	}
}

// instanceID returns cfg's configured instance id, falling back to a
// fresh uuid so two unconfigured CLI invocations never collide as lease
// owners.
func instanceID(cfg *config.Config) string {
	return utils.CoalesceString(cfg.Instance.ID, os.Getenv("FLEETCRON_INSTANCE_ID"), uuid.NewString())
}
