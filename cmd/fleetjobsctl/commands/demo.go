package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/plykit/fleetcron/job"
	"github.com/plykit/fleetcron/manager"
	"github.com/plykit/fleetcron/pkg/utils"
	"github.com/plykit/fleetcron/schedule"
)

// demoTimeAPIURLEnv lets CI and local runs point the counter job's outbound
// call somewhere other than the public worldtimeapi.org endpoint.
const demoTimeAPIURLEnv = "FLEETCRON_DEMO_TIME_API_URL"

// counterState mirrors the Rust demo's State/Counter newtype: an opaque
// JSON-encoded integer threaded through successive firings.
type counterState struct {
	Count int `json:"count"`
}

// newCounterJob ports examples/counter/main.rs: decode the counter,
// increment it, do a bit of real outbound IO, re-encode.
func newCounterJob(client *resty.Client, logger func(string)) job.Body {
	url := utils.GetEnvOrDefault(demoTimeAPIURLEnv, "https://worldtimeapi.org/api/timezone/Europe/London.txt")
	return func(ctx context.Context, state []byte) ([]byte, error) {
		var s counterState
		if len(state) > 0 {
			if err := json.Unmarshal(state, &s); err != nil {
				return nil, fmt.Errorf("demo counter: decode state: %w", err)
			}
		}

		logger(fmt.Sprintf("count: %d", s.Count))
		s.Count++

		resp, err := client.R().SetContext(ctx).Get(url)
		if err != nil {
			return nil, fmt.Errorf("demo counter: fetch time: %w", err)
		}
		logger(fmt.Sprintf("response status: %d", resp.StatusCode()))

		return json.Marshal(s)
	}
}

func newDemoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the counter job demo end-to-end against the configured backend",
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

			jobCfg := job.New("project-updater", schedule.Minutely).WithCheckInterval(3 * time.Second)
			client := resty.New().SetTimeout(10 * time.Second)
			body := newCounterJob(client, func(msg string) {
				fmt.Fprintln(cmd.OutOrStdout(), msg)
			})

			if err := mgr.Register(jobCfg, body); err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			mgr.StartAll(ctx)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig

			mgr.StopAll()
			mgr.Wait()
			return nil
		},
	}
	return cmd
}
