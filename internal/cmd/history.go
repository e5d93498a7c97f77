package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	errwrap "github.com/emailauditor/auditkit/internal/errors"
	"github.com/emailauditor/auditkit/internal/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently audited files from the journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)

		cfg, err := loadConfig()
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "invalid configuration")
		}
		if !cfg.Journal.Enabled {
			return errwrap.NewConfigInvalidError("journal is disabled (journal.enabled=false)")
		}
		format, err := outputFormat()
		if err != nil {
			return errwrap.WrapInvalidInput(ctx, err, "invalid output format")
		}
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			return errwrap.NewInvalidInputError("--limit must be positive")
		}

		store, err := openJournal(ctx, cfg)
		if err != nil {
			return errwrap.WrapDatabaseError(ctx, err, "journal unavailable")
		}
		defer closeJournal(store)

		entries, err := store.Recent(ctx, limit)
		if err != nil {
			return errwrap.WrapDatabaseError(ctx, err, "journal query failed")
		}

		rendered, err := output.History(format, entries)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("limit", 20, "Maximum number of entries to show")
}
