package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/emailauditor/auditkit/internal/apiclient"
	"github.com/emailauditor/auditkit/internal/audit"
	errwrap "github.com/emailauditor/auditkit/internal/errors"
	"github.com/emailauditor/auditkit/internal/metrics"
	"github.com/emailauditor/auditkit/internal/observability"
	"github.com/emailauditor/auditkit/internal/output"
)

var auditCmd = &cobra.Command{
	Use:   "audit <file...>",
	Short: "Audit email files",
	Long: `Submit one or more .eml files to the Email Auditor.

Files already recorded in the journal are reported from the journal unless
--force is set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().Bool("force", false, "Re-submit files already in the journal")
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return errwrap.WrapConfigInvalid(ctx, err, "invalid configuration")
	}
	format, err := outputFormat()
	if err != nil {
		return errwrap.WrapInvalidInput(ctx, err, "invalid output format")
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	client, err := newAPIClient(cfg)
	if err != nil {
		return errwrap.WrapConfigInvalid(ctx, err, "invalid api settings")
	}
	store, err := openJournal(ctx, cfg)
	if err != nil {
		return errwrap.WrapDatabaseError(ctx, err, "journal unavailable")
	}
	defer closeJournal(store)

	results, auditErr := auditFiles(ctx, newRunner(cfg, client, store, force), args)

	rendered, err := output.AuditResults(format, results)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), rendered)

	return auditErr
}

// auditFiles audits paths in order. A failed file is reported in its result
// and the batch continues, except for errors every later file would hit too
// (bad API key, quota exhausted), which stop the batch.
func auditFiles(ctx context.Context, runner *audit.Runner, paths []string) ([]*audit.Result, error) {
	results := make([]*audit.Result, 0, len(paths))
	var (
		failed   int
		firstErr error
	)

	for i, path := range paths {
		result, err := auditOne(ctx, runner, path)
		if err == nil {
			results = append(results, result)
			continue
		}

		if result != nil {
			// The report exists; only recording it failed.
			logWarn("Failed to record audit in journal", zap.String("path", path), zap.Error(err))
			results = append(results, result)
			continue
		}

		failed++
		if firstErr == nil {
			firstErr = err
		}
		logWarn("Audit failed", zap.String("path", path), zap.Error(err))
		results = append(results, &audit.Result{Path: path, Error: err.Error()})

		if stopsBatch(err) {
			for _, skipped := range paths[i+1:] {
				failed++
				results = append(results, &audit.Result{Path: skipped, Error: "skipped"})
			}
			break
		}
	}

	if failed == 0 {
		return results, nil
	}
	return results, fmt.Errorf("%d of %d files failed: %w", failed, len(paths), firstErr)
}

// auditOne audits path and records the outcome in telemetry.
func auditOne(ctx context.Context, runner *audit.Runner, path string) (*audit.Result, error) {
	start := time.Now()
	result, err := runner.AuditFile(ctx, path)

	switch {
	case result == nil:
		metrics.RecordAudit(metrics.OutcomeFailed, time.Since(start))
		var reqErr *apiclient.RequestError
		if stderrors.As(err, &reqErr) {
			metrics.RecordAPIError(errwrap.FromAPIError(ctx, err, "audit failed").Code, reqErr.StatusCode)
		} else if stderrors.As(err, new(*apiclient.TransportError)) {
			metrics.RecordAPIError(errwrap.CodeServiceUnavailable, 0)
		}
	case result.Cached:
		metrics.RecordAudit(metrics.OutcomeCached, 0)
	default:
		metrics.RecordAudit(metrics.OutcomeAudited, time.Since(start))
	}
	return result, err
}

func stopsBatch(err error) bool {
	if stderrors.Is(err, context.Canceled) {
		return true
	}
	var reqErr *apiclient.RequestError
	if !stderrors.As(err, &reqErr) {
		return false
	}
	return reqErr.StatusCode == http.StatusUnauthorized || reqErr.StatusCode == http.StatusTooManyRequests
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func logWarn(msg string, fields ...zap.Field) {
	if observability.CLILogger != nil {
		observability.CLILogger.Warn(msg, fields...)
	}
}
