package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/plykit/fleetcron/job"
	"github.com/plykit/fleetcron/pkg/utils"
	"github.com/plykit/fleetcron/repo"
)

func newStatusCommand() *cobra.Command {
	var names []string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print current JobData for one or more jobs as a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(names) == 0 {
				return fmt.Errorf("at least one --job name is required")
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

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Name", "Schedule", "Enabled", "Last Run", "Locked", "Owner"})
			table.SetBorder(false)
			table.SetAutoWrapText(false)

			ctx := context.Background()
			jobNames := utils.Map(names, func(n string) job.Name { return job.Name(n) })
			for _, name := range jobNames {
				data, err := repository.Get(ctx, name)
				if err != nil {
					if err == repo.ErrNotFound {
						table.Append([]string{string(name), "-", "-", "-", "-", "not found"})
						continue
					}
					return err
				}
				table.Append([]string{
					string(data.Name),
					data.ScheduleExpr,
					fmt.Sprintf("%v", data.Enabled),
					data.LastRun.Format(time.RFC3339),
					fmt.Sprintf("%v", data.LeaseValid(time.Now().UTC())),
					utils.Truncate(data.Owner, 12),
				})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&names, "job", "j", nil, "job name to show (repeatable)")
	return cmd
}
