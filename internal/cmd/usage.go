package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	errwrap "github.com/emailauditor/auditkit/internal/errors"
	"github.com/emailauditor/auditkit/internal/output"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show today's audit usage and remaining quota",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)

		cfg, err := loadConfig()
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "invalid configuration")
		}
		format, err := outputFormat()
		if err != nil {
			return errwrap.WrapInvalidInput(ctx, err, "invalid output format")
		}
		client, err := newAPIClient(cfg)
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "invalid api settings")
		}

		usage, err := client.Usage(ctx)
		if err != nil {
			return errwrap.FromAPIError(ctx, err, "usage lookup failed")
		}

		rendered, err := output.Usage(format, usage)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(usageCmd)
}
