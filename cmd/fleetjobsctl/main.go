// Command fleetjobsctl is an example CLI driving fleetcron's Manager:
// register jobs from a YAML file, serve them, and inspect their status.
package main

import (
	"os"

	"github.com/plykit/fleetcron/cmd/fleetjobsctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
