package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/plykit/fleetcron/job"
	"github.com/plykit/fleetcron/pkg/utils"
	"github.com/plykit/fleetcron/schedule"
)

// jobFile is the on-disk shape register reads: a flat list of job
// definitions, one per registered name.
type jobFile struct {
	Jobs []jobDefinition `yaml:"jobs"`
}

type jobDefinition struct {
	Name          string `yaml:"name"`
	Schedule      string `yaml:"schedule"`
	CheckInterval string `yaml:"checkInterval"`
	LockTTL       string `yaml:"lockTtl"`
	Enabled       *bool  `yaml:"enabled"`
}

func (d jobDefinition) toConfig() (job.Config, error) {
	if d.Name == "" {
		return job.Config{}, fmt.Errorf("job definition missing name")
	}
	sched, err := schedule.Parse(d.Schedule)
	if err != nil {
		return job.Config{}, fmt.Errorf("job %s: %w", d.Name, err)
	}

	cfg := job.New(job.Name(d.Name), sched)

	if d.CheckInterval != "" {
		interval, err := time.ParseDuration(d.CheckInterval)
		if err != nil {
			return job.Config{}, fmt.Errorf("job %s: checkInterval: %w", d.Name, err)
		}
		cfg = cfg.WithCheckInterval(interval)
	}
	if d.LockTTL != "" {
		ttl, err := time.ParseDuration(d.LockTTL)
		if err != nil {
			return job.Config{}, fmt.Errorf("job %s: lockTtl: %w", d.Name, err)
		}
		cfg = cfg.WithLockTTL(ttl)
	}
	if d.Enabled != nil {
		cfg.Enabled = *d.Enabled
	}
	return cfg, nil
}

func newRegisterCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create job records from a YAML job-definitions file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}

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

			if !utils.FileExists(file) {
				return fmt.Errorf("job file %s does not exist", file)
			}
			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading %s: %w", file, err)
			}

			var defs jobFile
			if err := yaml.Unmarshal(raw, &defs); err != nil {
				return fmt.Errorf("parsing %s: %w", file, err)
			}

			named := utils.Filter(defs.Jobs, func(d jobDefinition) bool { return d.Name != "" })
			if len(named) < len(defs.Jobs) {
				logger.Warn().
					Int("skipped", len(defs.Jobs)-len(named)).
					Msg("job file contains entries with no name, skipping")
			}

			ctx := context.Background()
			var seen []string
			for _, d := range named {
				jobCfg, err := d.toConfig()
				if err != nil {
					return err
				}
				if err := jobCfg.Validate(); err != nil {
					return fmt.Errorf("job %s: %w", jobCfg.Name, err)
				}
				if utils.Contains(seen, d.Name) {
					logger.Warn().Str("job", d.Name).Msg("duplicate name within job file, both entries will be created as separate attempts")
				}
				seen = append(seen, d.Name)

				if err := repository.Create(ctx, job.NewData(jobCfg)); err != nil {
					logger.Warn().Err(err).Str("job", string(jobCfg.Name)).Msg("create failed (already registered?)")
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", jobCfg.Name, jobCfg.Schedule)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML job-definitions file")
	return cmd
}
