package observability

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitCLILogger(t *testing.T) {
	InitCLILogger("auditctl-test", false, "info")
	require.NotNil(t, CLILogger)
	CLILogger.Info("cli logger ready", zap.String("test", "value"))

	InitCLILogger("auditctl-test", true, "")
	require.NotNil(t, CLILogger)
	CLILogger.Debug("verbose logger ready")
}

func TestNewStructuredLogger(t *testing.T) {
	logger, err := NewStructuredLogger("auditctl-test", "debug")
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.Info("structured logger ready", zap.String("component", "watch"))
}

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, "DEBUG", parseLogLevel("debug"))
	require.Equal(t, "WARN", parseLogLevel(" Warning "))
	require.Equal(t, "INFO", parseLogLevel(""))
	require.Equal(t, "ERROR", parseLogLevel("error"))
}
