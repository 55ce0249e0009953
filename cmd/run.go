package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vmurashev365/hora-openrouteservice/internal/config"
	"github.com/vmurashev365/hora-openrouteservice/internal/observability"
	"github.com/vmurashev365/hora-openrouteservice/internal/runner"
)

// newRunCmd builds the scenario execution command. The flags only select
// scenario subsets and the browser display mode; they carry no business
// logic.
func newRunCmd() *cobra.Command {
	var (
		tags        string
		device      string
		smoke       bool
		headed      bool
		debug       bool
		concurrency int
		retries     int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the validation scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			logger := observability.GetLogger()

			if headed {
				cfg.Browser.Headless = false
			}
			if debug {
				cfg.Browser.Debug = true
				cfg.Browser.Headless = false
			}
			if concurrency > 0 {
				cfg.Run.Concurrency = concurrency
			}
			if retries >= 0 {
				cfg.Run.Retries = retries
			}

			parts := []string{cfg.Run.Tags, tags}
			if smoke {
				parts = append(parts, "@smoke")
			}
			if device != "" {
				parts = append(parts, "@"+device)
			}

			opts := runner.OptionsFrom(cfg)
			opts.Tags = runner.CombineTags(parts...)
			opts.Concurrency = cfg.Run.Concurrency
			opts.Retries = cfg.Run.Retries

			deps := runner.NewDeps(cmd.Context(), cfg, logger)
			defer deps.Shutdown(cmd.Context())
			defer observability.Sync()

			if status := runner.New(opts, deps).Run(cmd.Context()); status != 0 {
				return fmt.Errorf("scenario run failed with status %d", status)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&tags, "tags", "t", "", "godog tag expression selecting scenarios")
	cmd.Flags().StringVarP(&device, "device", "d", "", "device tag to filter by (desktop, tablet, phone)")
	cmd.Flags().BoolVar(&smoke, "smoke", false, "run only @smoke scenarios")
	cmd.Flags().BoolVar(&headed, "headed", false, "run the browser with a visible window")
	cmd.Flags().BoolVar(&debug, "debug", false, "headed mode with devtools open")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel scenario workers (0 = from config)")
	cmd.Flags().IntVar(&retries, "retries", -1, "bounded re-runs of a failed suite (-1 = from config)")

	return cmd
}
