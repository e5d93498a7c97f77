package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/emailauditor/auditkit/internal/config"
	"github.com/emailauditor/auditkit/internal/format"
	"github.com/emailauditor/auditkit/internal/observability"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long:  "Check the local installation, the journal and connectivity to the Email Auditor API.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := commandContext(cmd)
		log := observability.CLILogger

		log.Info("=== auditctl doctor ===")
		log.Info("")

		allChecks := true
		const totalChecks = 6

		goVersion := runtime.Version()
		log.Info(fmt.Sprintf("[1/%d] Checking Go runtime... ✅ %s %s/%s", totalChecks, goVersion, runtime.GOOS, runtime.GOARCH),
			zap.String("go_version", goVersion))

		if version := crucible.GetVersion(); version.Gofulmen != "" {
			log.Info(fmt.Sprintf("[2/%d] Checking Gofulmen... ✅ v%s", totalChecks, version.Gofulmen))
		} else {
			log.Warn(fmt.Sprintf("[2/%d] Checking Gofulmen... ⚠️  version unknown", totalChecks))
		}

		if configPath := config.DefaultConfigPath(); configPath == "" {
			log.Warn(fmt.Sprintf("[3/%d] Checking config directory... ⚠️  cannot resolve", totalChecks))
			allChecks = false
		} else {
			log.Info(fmt.Sprintf("[3/%d] Checking config directory... ✅ %s", totalChecks, filepath.Dir(configPath)))
		}

		cfg, cfgErr := loadConfig()
		if cfgErr != nil {
			log.Error(fmt.Sprintf("[4/%d] Checking configuration... ❌ invalid", totalChecks), zap.Error(cfgErr))
			log.Info("")
			log.Warn("⚠️  Fix the configuration and re-run doctor.")
			return
		}
		log.Info(fmt.Sprintf("[4/%d] Checking configuration... ✅ %s", totalChecks, cfg.API.BaseURL))

		if !checkJournal(ctx, cfg, totalChecks) {
			allChecks = false
		}
		if !checkAPI(ctx, cfg, totalChecks) {
			allChecks = false
		}

		log.Info("")
		if allChecks {
			log.Info("✅ All checks passed!")
		} else {
			log.Warn("⚠️  Some checks failed. Review the output above for details.")
		}
	},
}

func checkJournal(ctx context.Context, cfg *config.Config, total int) bool {
	log := observability.CLILogger
	if !cfg.Journal.Enabled {
		log.Info(fmt.Sprintf("[5/%d] Checking journal... ➖ disabled", total))
		return true
	}

	absPath, _ := filepath.Abs(cfg.Journal.Path)
	store, err := openJournal(ctx, cfg)
	if err != nil {
		log.Warn(fmt.Sprintf("[5/%d] Checking journal... ⚠️  %s", total, absPath), zap.Error(err))
		return false
	}
	defer closeJournal(store)

	size := "new"
	if info, statErr := os.Stat(absPath); statErr == nil {
		size = format.FileSize(info.Size())
	}
	log.Info(fmt.Sprintf("[5/%d] Checking journal... ✅ %s (%s)", total, absPath, size))
	return true
}

func checkAPI(ctx context.Context, cfg *config.Config, total int) bool {
	log := observability.CLILogger
	client, err := newAPIClient(cfg)
	if err != nil {
		log.Error(fmt.Sprintf("[6/%d] Checking API... ❌ client setup failed", total), zap.Error(err))
		return false
	}

	report, err := client.Health(ctx)
	if err != nil {
		log.Error(fmt.Sprintf("[6/%d] Checking API... ❌ %v", total, err))
		return false
	}
	log.Info(fmt.Sprintf("[6/%d] Checking API... ✅ %s (v%s)", total, report.Status, report.Version))

	if cfg.API.Key == "" {
		log.Warn("       No API key configured; set api.key or AUDITCTL_API_KEY to audit files.")
	}
	return true
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
