package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/devops-job-digest/internal/app"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Scrape, render and send one digest",
		Long: `Runs a single digest: every configured site is fetched with retries,
matching postings are rendered into an HTML table and emailed. Delivery
failures are logged and do not change the exit status.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := a.Runner().Run(cmd.Context())
			switch {
			case errors.Is(err, app.ErrRunAborted):
				// Already logged with its stack; the process still exits cleanly.
				return nil
			case err != nil:
				return fmt.Errorf("run digest: %w", err)
			}
			a.Logger().Info("digest run finished",
				zap.String("run_id", summary.RunID),
				zap.Int("postings", summary.Postings),
				zap.String("delivery", string(summary.Delivery)),
			)
			return nil
		},
	}
}
