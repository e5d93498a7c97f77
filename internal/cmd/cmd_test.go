package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/emailauditor/auditkit/internal/apiclient"
	"github.com/emailauditor/auditkit/internal/apitest"
	"github.com/emailauditor/auditkit/internal/audit"
	"github.com/emailauditor/auditkit/internal/config"
	errwrap "github.com/emailauditor/auditkit/internal/errors"
	"github.com/emailauditor/auditkit/internal/validate"
)

// execute runs the root command with a clean global state and returns stdout.
func execute(t *testing.T, server *apitest.Server, args ...string) (string, error) {
	t.Helper()

	viper.Reset()
	cfgFile, traceFile, formatFlag, verbose = "", "", "table", false

	if server != nil {
		t.Setenv("AUDITCTL_API_BASE_URL", server.URL)
		t.Setenv("AUDITCTL_API_KEY", server.APIKey())
	}
	t.Setenv("AUDITCTL_JOURNAL_ENABLED", "false")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	err := Execute()
	return out.String(), err
}

func writeEmail(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func testRunner(server *apitest.Server) *audit.Runner {
	client := apiclient.NewClient(server.URL, server.APIKey())
	client.HTTPClient = server.Client()
	return &audit.Runner{Client: client, Rules: validate.EmailUploadRules(1024)}
}

func TestAuditFilesContinuesAfterFileError(t *testing.T) {
	server := apitest.New(t)
	dir := t.TempDir()
	paths := []string{
		writeEmail(t, dir, "a.eml", "Subject: a"),
		writeEmail(t, dir, "notes.txt", "not an email"),
		writeEmail(t, dir, "c.eml", "Subject: c"),
	}

	results, err := auditFiles(context.Background(), testRunner(server), paths)
	require.Error(t, err)
	require.Contains(t, err.Error(), "1 of 3 files failed")
	require.Len(t, results, 3)
	require.NotNil(t, results[0].Report)
	require.NotEmpty(t, results[1].Error)
	require.NotNil(t, results[2].Report)
	require.Equal(t, 2, server.Used())
}

func TestAuditFilesStopsWhenQuotaExhausted(t *testing.T) {
	server := apitest.New(t, apitest.WithDailyLimit(1))
	dir := t.TempDir()
	paths := []string{
		writeEmail(t, dir, "a.eml", "Subject: a"),
		writeEmail(t, dir, "b.eml", "Subject: b"),
		writeEmail(t, dir, "c.eml", "Subject: c"),
	}

	results, err := auditFiles(context.Background(), testRunner(server), paths)
	require.Error(t, err)
	require.Contains(t, err.Error(), "2 of 3 files failed")
	require.Equal(t, "Daily limit exceeded", results[1].Error)
	require.Equal(t, "skipped", results[2].Error)

	env := errwrap.FromAPIError(context.Background(), err, "audit failed")
	require.Equal(t, errwrap.CodeRateLimited, env.Code)
}

func TestStopsBatch(t *testing.T) {
	require.True(t, stopsBatch(&apiclient.RequestError{StatusCode: 401}))
	require.True(t, stopsBatch(fmt.Errorf("wrapped: %w", &apiclient.RequestError{StatusCode: 429})))
	require.True(t, stopsBatch(context.Canceled))
	require.False(t, stopsBatch(&apiclient.RequestError{StatusCode: 400}))
	require.False(t, stopsBatch(errors.New("file too large")))
}

func TestSessionFromFlag(t *testing.T) {
	cfg := config.Defaults()
	cfg.API.Session = "from-config"
	require.Equal(t, "from-flag", sessionFromFlag(" from-flag ", &cfg))
	require.Equal(t, "from-config", sessionFromFlag("", &cfg))
}

func TestUsageCommand(t *testing.T) {
	server := apitest.New(t)

	out, err := execute(t, server, "usage", "--format", "json")
	require.NoError(t, err)
	require.Contains(t, out, `"daily_limit": 5`)
	require.Contains(t, out, `"subscription_tier": "free"`)
}

func TestUsageCommandBadKey(t *testing.T) {
	server := apitest.New(t)

	_, err := execute(t, server, "usage")
	require.NoError(t, err)

	t.Setenv("AUDITCTL_API_KEY", "wrong")
	viper.Reset()
	rootCmd.SetArgs([]string{"usage"})
	err = rootCmd.Execute()
	require.Error(t, err)
	require.Equal(t, errwrap.CodeUnauthorized, errwrap.EnsureEnvelope(err).Code)
}

func TestTraceFileClosedWhenCommandFails(t *testing.T) {
	server := apitest.New(t)
	t.Setenv("AUDITCTL_API_KEY", "wrong")
	tracePath := filepath.Join(t.TempDir(), "trace.ndjson")

	viper.Reset()
	cfgFile, formatFlag, verbose = "", "table", false
	traceFile = tracePath
	t.Setenv("AUDITCTL_API_BASE_URL", server.URL)
	t.Setenv("AUDITCTL_JOURNAL_ENABLED", "false")
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"usage", "--trace", tracePath})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		traceFile = ""
	})

	err := Execute()
	require.Error(t, err)
	require.False(t, apiclient.IsTracingEnabled())
	require.Nil(t, stopTracing)

	data, err := os.ReadFile(tracePath)
	require.NoError(t, err)
	require.Contains(t, string(data), `"status_code":401`)
}

func TestHealthCommandUnhealthy(t *testing.T) {
	server := apitest.New(t)
	server.SetUnhealthy(true)

	out, err := execute(t, server, "health")
	require.Error(t, err)
	require.Contains(t, out, "database is locked")
	require.Equal(t, errwrap.CodeServiceUnavailable, errwrap.EnsureEnvelope(err).Code)
}

func TestKeyCommand(t *testing.T) {
	server := apitest.New(t)

	out, err := execute(t, server, "key", "--session", server.Session)
	require.NoError(t, err)
	require.Equal(t, "test-key\n", out)

	out, err = execute(t, server, "key", "--session", server.Session, "--rotate")
	require.NoError(t, err)
	require.Equal(t, "test-key-rotated\n", out)

	_, err = execute(t, server, "key", "--session", "", "--rotate=false")
	require.Error(t, err)
	require.Equal(t, errwrap.CodeInvalidInput, errwrap.EnsureEnvelope(err).Code)
}

func TestAuditCommand(t *testing.T) {
	server := apitest.New(t)
	path := writeEmail(t, t.TempDir(), "welcome.eml", "Subject: hello")

	out, err := execute(t, server, "audit", path, "--format", "json")
	require.NoError(t, err)
	require.Contains(t, out, `"score": 5`)
	require.Contains(t, out, `"cached": false`)

	requests := server.Requests()
	require.Equal(t, "welcome.eml", requests[len(requests)-1].FileName)
}

func TestHistoryRequiresJournal(t *testing.T) {
	_, err := execute(t, nil, "history")
	require.Error(t, err)
	require.Equal(t, errwrap.CodeConfigInvalid, errwrap.EnsureEnvelope(err).Code)
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, nil, "--config", path, "config", "init")
	require.NoError(t, err)
	require.Contains(t, out, path)

	_, err = execute(t, nil, "--config", path, "config", "init")
	require.Error(t, err)

	t.Setenv("AUDITCTL_API_KEY", "super-secret")
	out, err = execute(t, nil, "--config", path, "config", "show")
	require.NoError(t, err)
	require.Contains(t, out, "base_url: http://localhost:5000")
	require.NotContains(t, out, "super-secret")
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "abc", "today")
	out, err := execute(t, nil, "version")
	require.NoError(t, err)
	require.Equal(t, "auditctl 1.2.3\n", out)
}
