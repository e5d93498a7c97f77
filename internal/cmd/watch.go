package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/emailauditor/auditkit/internal/apiclient"
	"github.com/emailauditor/auditkit/internal/audit"
	"github.com/emailauditor/auditkit/internal/config"
	errwrap "github.com/emailauditor/auditkit/internal/errors"
	"github.com/emailauditor/auditkit/internal/metrics"
	"github.com/emailauditor/auditkit/internal/observability"
	"github.com/emailauditor/auditkit/internal/output"
	"github.com/emailauditor/auditkit/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Audit .eml files as they appear in a directory",
	Long: `Watch a directory and audit each .eml file once its writes settle.

Usage is refreshed after audits at most once per watch.usage_interval.
Press Ctrl+C to stop.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Bool("existing", false, "Also audit .eml files already in the directory")
	watchCmd.Flags().Bool("force", false, "Re-submit files already in the journal")
	watchCmd.Flags().Duration("settle", 0, "Quiet period before a changed file is audited (overrides watch.settle)")
	watchCmd.Flags().Bool("log-json", false, "Emit structured JSON logs on stderr")
	watchCmd.Flags().Int("metrics-port", 0, "Serve Prometheus metrics on this port (0 disables)")

	_ = viper.BindPFlag("watch.settle", watchCmd.Flags().Lookup("settle"))
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return errwrap.WrapConfigInvalid(ctx, err, "invalid configuration")
	}
	format, err := outputFormat()
	if err != nil {
		return errwrap.WrapInvalidInput(ctx, err, "invalid output format")
	}
	existing, _ := cmd.Flags().GetBool("existing")
	force, _ := cmd.Flags().GetBool("force")
	logJSON, _ := cmd.Flags().GetBool("log-json")
	metricsPort, _ := cmd.Flags().GetInt("metrics-port")

	logger := observability.CLILogger
	if logJSON || strings.EqualFold(cfg.Logging.Profile, "structured") {
		logger, err = observability.NewStructuredLogger(config.AppName, cfg.Logging.Level)
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "failed to create structured logger")
		}
	}

	if metricsPort > 0 {
		if err := observability.InitMetrics(config.AppName, metricsPort); err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "failed to start metrics exporter")
		}
		defer func() {
			if err := observability.StopMetrics(); err != nil {
				logger.Warn("Failed to stop metrics exporter", zap.Error(err))
			}
		}()
		metrics.SetWatchStartTime(time.Now())
		logger.Info("Serving metrics", zap.Int("port", observability.GetMetricsPort()))
	}

	client, err := newAPIClient(cfg)
	if err != nil {
		return errwrap.WrapConfigInvalid(ctx, err, "invalid api settings")
	}
	client.Logger = logger

	store, err := openJournal(ctx, cfg)
	if err != nil {
		return errwrap.WrapDatabaseError(ctx, err, "journal unavailable")
	}
	defer closeJournal(store)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	watcher := newWatcher(args[0], cfg, existing, logger, newRunner(cfg, client, store, force), client, format, cmd.OutOrStdout())

	done := make(chan struct{})
	signals.OnShutdown(func(context.Context) error {
		logger.Info("Stopping watcher...")
		cancel()
		<-done
		return nil
	})
	go func() {
		if err := signals.Listen(runCtx); err != nil {
			logger.Warn("Signal handler error", zap.Error(err))
		}
	}()

	logger.Info("Watching for email files",
		zap.String("dir", args[0]),
		zap.Duration("settle", cfg.Watch.Settle),
		zap.Duration("usage_interval", cfg.Watch.UsageInterval))

	err = watcher.Run(runCtx)
	close(done)
	if err != nil {
		return errwrap.WrapInvalidInput(ctx, err, "cannot watch directory")
	}
	return nil
}

// usageSource is the part of the API client the watch loop polls.
type usageSource interface {
	Usage(ctx context.Context) (*apiclient.Usage, error)
}

func newWatcher(dir string, cfg *config.Config, existing bool, logger *logging.Logger, runner *audit.Runner, usage usageSource, format output.Format, out io.Writer) *watch.Watcher {
	return &watch.Watcher{
		Dir:           dir,
		Settle:        cfg.Watch.Settle,
		UsageInterval: cfg.Watch.UsageInterval,
		Existing:      existing,
		Logger:        logger,
		Audit: func(ctx context.Context, path string) {
			start := time.Now()
			result, err := auditOne(ctx, runner, path)
			if err != nil {
				logger.Warn("Audit failed", zap.String("path", path), zap.Error(err))
				if result == nil {
					return
				}
			}
			logger.Debug("Audit finished",
				zap.String("path", path),
				zap.Bool("cached", result.Cached),
				zap.Duration("elapsed", time.Since(start)))

			rendered, err := output.AuditResults(format, []*audit.Result{result})
			if err != nil {
				logger.Warn("Failed to render audit result", zap.Error(err))
				return
			}
			fmt.Fprintln(out, rendered)
		},
		OnAudited: func(ctx context.Context) {
			current, err := usage.Usage(ctx)
			if err != nil {
				logger.Warn("Usage refresh failed", zap.Error(err))
				return
			}
			metrics.SetUsage(current.TodayUsage, current.Remaining)
			logger.Info("Usage",
				zap.Int("today", current.TodayUsage),
				zap.Int("daily_limit", current.DailyLimit),
				zap.Int("remaining", current.Remaining))
		},
	}
}
