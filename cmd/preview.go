package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/devops-job-digest/internal/app"
	"github.com/JakeFAU/devops-job-digest/internal/storage/local"
)

func newPreviewCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Scrape and render a digest without sending it",
		Long: `Scrapes every configured site and renders the digest. The HTML is printed
to stdout, or written as digest-YYYY-MM-DD.html under --out.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			summary, html, err := a.Runner().Preview(cmd.Context())
			if err != nil {
				return fmt.Errorf("preview digest: %w", err)
			}

			if outDir == "" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), html)
				return err
			}

			store, err := local.New(local.Config{BaseDir: outDir})
			if err != nil {
				return fmt.Errorf("open output directory: %w", err)
			}
			uri, err := store.Put(cmd.Context(), app.DigestFileName(summary.StartedAt), strings.NewReader(html))
			if err != nil {
				return fmt.Errorf("write preview: %w", err)
			}
			a.Logger().Info("preview written",
				zap.String("uri", uri),
				zap.Int("postings", summary.Postings),
				zap.String("subject", summary.Subject),
			)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), uri)
			return err
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "directory to write the rendered digest into")
	return cmd
}
