package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	errwrap "github.com/emailauditor/auditkit/internal/errors"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Show or rotate the account API key",
	Long: `Fetch the API key for the signed-in account. The key endpoints use the
web session cookie, taken from --session or api.session.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)

		cfg, err := loadConfig()
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "invalid configuration")
		}
		sessionFlag, _ := cmd.Flags().GetString("session")
		rotate, _ := cmd.Flags().GetBool("rotate")

		session := sessionFromFlag(sessionFlag, cfg)
		if session == "" {
			return errwrap.NewInvalidInputError("a session is required (--session or api.session)")
		}

		client, err := newAPIClient(cfg)
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "invalid api settings")
		}

		var key string
		if rotate {
			key, err = client.RotateAPIKey(ctx, session)
		} else {
			key, err = client.FetchAPIKey(ctx, session)
		}
		if err != nil {
			return errwrap.FromAPIError(ctx, err, "api key request failed")
		}

		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keyCmd)

	keyCmd.Flags().Bool("rotate", false, "Generate a new API key, invalidating the old one")
	keyCmd.Flags().String("session", "", "Session cookie value (overrides api.session)")
}
