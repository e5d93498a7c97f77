package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildBinary compiles auditctl into a temp dir and returns its path.
func buildBinary(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("standalone binary exec test is unix-focused")
	}

	goMod, err := exec.Command("go", "env", "GOMOD").Output()
	require.NoError(t, err, "go env GOMOD")
	repoRoot := filepath.Dir(strings.TrimSpace(string(goMod)))

	binaryPath := filepath.Join(t.TempDir(), "auditctl")
	build := exec.Command("go", "build", "-o", binaryPath, "./cmd/auditctl")
	build.Dir = repoRoot
	build.Env = os.Environ()
	out, err := build.CombinedOutput()
	require.NoError(t, err, "go build:\n%s", out)
	return binaryPath
}

func TestStandaloneBinaryWorksOutsideRepo(t *testing.T) {
	binary := buildBinary(t)
	outside := t.TempDir()

	run := func(args ...string) string {
		t.Helper()
		c := exec.Command(binary, args...)
		c.Dir = outside
		c.Env = append(os.Environ(),
			"XDG_CONFIG_HOME="+filepath.Join(outside, "config"),
			"XDG_DATA_HOME="+filepath.Join(outside, "data"),
			"AUDITCTL_API_KEY=integration-secret",
		)
		out, err := c.CombinedOutput()
		require.NoError(t, err, "%v failed:\n%s", args, out)
		return string(out)
	}

	require.Contains(t, run("version"), "auditctl")
	require.Contains(t, run("--help"), "watch")

	shown := run("config", "show")
	require.Contains(t, shown, "base_url:")
	require.NotContains(t, shown, "integration-secret")
}

func TestStandaloneBinaryExitCodes(t *testing.T) {
	binary := buildBinary(t)

	// Nothing listens on port 1, so the usage lookup fails at the transport.
	c := exec.Command(binary, "usage")
	c.Dir = t.TempDir()
	c.Env = append(os.Environ(),
		"AUDITCTL_API_BASE_URL=http://127.0.0.1:1",
		"AUDITCTL_API_KEY=k",
		"AUDITCTL_JOURNAL_ENABLED=false",
	)
	err := c.Run()

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.NotEqual(t, 0, exitErr.ExitCode())
}
