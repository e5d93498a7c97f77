package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/emailauditor/auditkit/internal/apiclient"
	"github.com/emailauditor/auditkit/internal/config"
	"github.com/emailauditor/auditkit/internal/observability"
	"github.com/emailauditor/auditkit/internal/output"
)

var (
	cfgFile    string
	verbose    bool
	traceFile  string
	formatFlag string

	// stopTracing closes the trace file opened for --trace.
	stopTracing func()

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Audit email files with the Email Auditor API",
	Long: `auditctl submits .eml files to an Email Auditor service, keeps a local
journal of audited files, and reports quota and service health.

Use the subcommands to perform specific operations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Cobra skips post-run hooks when RunE fails, so the trace file is
	// closed here instead.
	defer closeTracing()
	return rootCmd.Execute()
}

func closeTracing() {
	if stopTracing != nil {
		stopTracing()
		stopTracing = nil
	}
}

func init() {
	// Keep gofulmen's global telemetry quiet; watch --metrics-port opts in.
	observability.DisableGlobalTelemetry()

	cobra.OnInitialize(initConfig)

	defaultPath := config.DefaultConfigPath()
	if defaultPath == "" {
		defaultPath = "./config/config.yaml"
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", fmt.Sprintf("config file (default is %s)", defaultPath))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().StringVar(&traceFile, "trace", "", "trace API requests/responses to NDJSON file")
	rootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "o", "table", "output format: table, json, markdown")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	v := viper.GetViper()
	config.SetDefaults(v)
	config.ConfigureEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if dir := gfconfig.GetAppConfigDir(config.AppName); dir != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	readErr := v.ReadInConfig()

	// Logger level can come from the config file, so initialize after reading it.
	observability.InitCLILogger(config.AppName, verbose, v.GetString("logging.level"))

	switch {
	case readErr == nil:
		observability.CLILogger.Debug("Using config file", zap.String("path", v.ConfigFileUsed()))
	case configMissing(readErr):
		observability.CLILogger.Debug("No config file found, using defaults and environment variables")
	case cfgFile != "":
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to read config file", readErr)
	default:
		observability.CLILogger.Warn("Error reading config file", zap.Error(readErr))
	}

	if traceFile != "" {
		stop, err := apiclient.EnableTracing(traceFile)
		if err != nil {
			observability.CLILogger.Warn("Failed to enable tracing", zap.Error(err))
		} else {
			observability.CLILogger.Debug("API tracing enabled", zap.String("file", traceFile))
			stopTracing = stop
		}
	}
}

// configMissing reports whether err only means there is no config file yet.
func configMissing(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// loadConfig decodes the global viper settings.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

func outputFormat() (output.Format, error) {
	return output.ParseFormat(formatFlag)
}
