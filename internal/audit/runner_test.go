package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/emailauditor/auditkit/internal/apiclient"
	"github.com/emailauditor/auditkit/internal/apitest"
	"github.com/emailauditor/auditkit/internal/journal"
	"github.com/emailauditor/auditkit/internal/validate"
)

type memoryJournal struct {
	mu      sync.Mutex
	entries map[string]journal.Entry
}

func (m *memoryJournal) Lookup(ctx context.Context, digest string) (*journal.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[digest]; ok {
		return &entry, nil
	}
	return nil, nil
}

func (m *memoryJournal) Record(ctx context.Context, e journal.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string]journal.Entry)
	}
	m.entries[e.Digest] = e
	return nil
}

func writeEmail(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func newRunner(t *testing.T, server *apitest.Server, j Journal) *Runner {
	client := apiclient.NewClient(server.URL, "test-key")
	client.HTTPClient = server.Client()
	return &Runner{
		Client:  client,
		Journal: j,
		Rules:   validate.EmailUploadRules(1024),
		Clock:   func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func TestAuditFileRecordsAndSkipsRepeats(t *testing.T) {
	server := apitest.New(t)
	j := &memoryJournal{}
	runner := newRunner(t, server, j)
	path := writeEmail(t, t.TempDir(), "hello.eml", "Hello there.")

	first, err := runner.AuditFile(context.Background(), path)
	require.NoError(t, err)
	require.False(t, first.Cached)
	require.Equal(t, 5, first.Report.Score)
	require.Equal(t, int64(len("Hello there.")), first.Size)
	require.Len(t, j.entries, 1)

	second, err := runner.AuditFile(context.Background(), path)
	require.NoError(t, err)
	require.True(t, second.Cached)
	require.Equal(t, first.Digest, second.Digest)
	require.Equal(t, 5, second.Report.Score)
	require.Equal(t, 1, server.Used())

	runner.Force = true
	third, err := runner.AuditFile(context.Background(), path)
	require.NoError(t, err)
	require.False(t, third.Cached)
	require.Equal(t, 2, server.Used())
}

func TestAuditFileWithoutJournal(t *testing.T) {
	server := apitest.New(t)
	runner := newRunner(t, server, nil)
	path := writeEmail(t, t.TempDir(), "a.eml", "Hi")

	for i := 0; i < 2; i++ {
		_, err := runner.AuditFile(context.Background(), path)
		require.NoError(t, err)
	}
	require.Equal(t, 2, server.Used())
}

func TestAuditFileValidatesBeforeSending(t *testing.T) {
	server := apitest.New(t)
	runner := newRunner(t, server, &memoryJournal{})
	dir := t.TempDir()

	_, err := runner.AuditFile(context.Background(), writeEmail(t, dir, "notes.txt", "x"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "extension")

	_, err = runner.AuditFile(context.Background(), writeEmail(t, dir, "big.eml", strings.Repeat("x", 2048)))
	require.Error(t, err)
	require.Contains(t, err.Error(), "too large")

	_, err = runner.AuditFile(context.Background(), filepath.Join(dir, "missing.eml"))
	require.Error(t, err)

	_, err = runner.AuditFile(context.Background(), dir)
	require.Error(t, err)

	require.Empty(t, server.Requests())
}

func TestAuditFilePropagatesRequestError(t *testing.T) {
	server := apitest.New(t, apitest.WithDailyLimit(0))
	j := &memoryJournal{}
	runner := newRunner(t, server, j)

	_, err := runner.AuditFile(context.Background(), writeEmail(t, t.TempDir(), "a.eml", "Hi"))
	var reqErr *apiclient.RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, "Daily limit exceeded", reqErr.Message)
	require.Empty(t, j.entries)
}

func TestNilRunner(t *testing.T) {
	var r *Runner
	_, err := r.AuditFile(context.Background(), "x.eml")
	require.Error(t, err)
}
