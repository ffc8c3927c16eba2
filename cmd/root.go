// Package cmd defines the CLI commands for the digest executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/devops-job-digest/internal/app"
	"github.com/JakeFAU/devops-job-digest/internal/config"
	"github.com/JakeFAU/devops-job-digest/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// factory builds the App for a loaded Config. Tests swap it to inject fakes.
type factory func(cfg config.Config) (*app.App, error)

func defaultFactory(cfg config.Config) (*app.App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return app.New(cfg, logger)
}

// newRootCmd creates the root command and its subcommands.
func newRootCmd(newApp factory) *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Scrapes job boards and emails a digest of worldwide-remote DevOps roles.",
		Long: `digest fetches a fixed list of job-board listing pages, keeps the postings
that mention a DevOps/SRE keyword together with a worldwide-remote tag, and
emails them as an HTML table. Sites that fail are logged and skipped.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newPreviewCmd(),
		newTestEmailCmd(),
		newSitesCmd(),
	)
	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(defaultFactory).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "digest: %v\n", err)
		stop()
		os.Exit(1) //nolint:gocritic // stop already called
	}
}
