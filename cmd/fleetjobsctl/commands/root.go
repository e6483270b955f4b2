// Package commands provides the fleetjobsctl command-line interface.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/plykit/fleetcron/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "fleetjobsctl",
	Short:   "Operate a fleetcron job fleet",
	Long:    "fleetjobsctl registers, serves, and inspects fleetcron jobs against a shared Repository backend.",
	Version: version.Version,
}

func init() {
	rootCmd.AddCommand(newRegisterCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newDemoCommand())

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default ~/.fleetcron/fleetcron.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
