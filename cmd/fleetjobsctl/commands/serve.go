package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/plykit/fleetcron/internal/httpapi"
	"github.com/plykit/fleetcron/manager"
)

func newServeCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the fleetcron manager and run until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			verbose, _ := cmd.Flags().GetBool("verbose")
			logger := newLogger(verbose)

			repository, err := buildRepository(cfg, logger)
			if err != nil {
				return err
			}

			mgr := manager.New(instanceID(cfg), repository, logger)

			var defs jobFile
			if file != "" {
				raw, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("reading %s: %w", file, err)
				}
				if err := yaml.Unmarshal(raw, &defs); err != nil {
					return fmt.Errorf("parsing %s: %w", file, err)
				}
			}
			for _, d := range defs.Jobs {
				jobCfg, err := d.toConfig()
				if err != nil {
					return err
				}
				if err := mgr.Register(jobCfg, noopBody); err != nil {
					return err
				}
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			mgr.StartAll(ctx)
			logger.Info().Int("jobs", len(mgr.Jobs())).Msg("manager started")

			var status *httpapi.Server
			if cfg.HTTPAPI.Enabled {
				status = httpapi.New(httpapi.Config{
					Addr:           fmt.Sprintf("%s:%d", cfg.HTTPAPI.Bind, cfg.HTTPAPI.Port),
					RateLimitRPS:   cfg.HTTPAPI.RateLimitRPS,
					RateLimitBurst: cfg.HTTPAPI.RateLimitBurst,
				}, mgr, repository, logger)
				go func() {
					if err := status.Start(); err != nil {
						logger.Error().Err(err).Msg("status server stopped")
					}
				}()
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig

			logger.Info().Msg("shutting down")
			mgr.StopAll()
			mgr.Wait()

			if status != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				_ = status.Shutdown(shutdownCtx)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML job-definitions file (each job is registered and run with a body that leaves its state unchanged)")
	return cmd
}

// noopBody is used for jobs started purely from a YAML file with no
// in-process body: it leaves state untouched. Real embedding applications
// call manager.Register directly with a real job.Body instead of going
// through serve's --file flag.
func noopBody(ctx context.Context, state []byte) ([]byte, error) {
	return state, nil
}

