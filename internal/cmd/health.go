package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/emailauditor/auditkit/internal/errors"
	"github.com/emailauditor/auditkit/internal/observability"
	"github.com/emailauditor/auditkit/internal/output"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check Email Auditor service health",
	Long: `Query the service health endpoint. An unhealthy service still prints its
report and exits with the external-service-unavailable code.`,
	Args: cobra.NoArgs,
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

		report, healthErr := client.Health(ctx)
		if report != nil {
			rendered, err := output.Health(format, report)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rendered)
		}
		if healthErr != nil {
			return errwrap.FromAPIError(ctx, healthErr, "service is unhealthy")
		}

		observability.CLILogger.Debug("Service healthy", zap.String("version", report.Version))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
