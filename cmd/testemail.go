package cmd

import (
	"github.com/spf13/cobra"
)

func newTestEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-email",
		Short: "Send a sample digest to check delivery settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return a.SendTestDigest(cmd.Context())
		},
	}
}
