// Package audit submits email files to the auditor and keeps the journal in
// step with what has been sent.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/emailauditor/auditkit/internal/apiclient"
	"github.com/emailauditor/auditkit/internal/journal"
	"github.com/emailauditor/auditkit/internal/validate"
)

// Auditor is the subset of *apiclient.Client the runner needs.
type Auditor interface {
	Audit(ctx context.Context, name string, email io.Reader) (*apiclient.AuditReport, error)
}

// Journal records audited files. *journal.Store implements it.
type Journal interface {
	Lookup(ctx context.Context, digest string) (*journal.Entry, error)
	Record(ctx context.Context, e journal.Entry) error
}

// Result is the outcome of auditing one file.
type Result struct {
	Path   string                 `json:"path"`
	Digest string                 `json:"digest"`
	Size   int64                  `json:"size"`
	Report *apiclient.AuditReport `json:"report,omitempty"`
	// Cached is set when the report came from the journal instead of the API.
	Cached    bool      `json:"cached"`
	AuditedAt time.Time `json:"audited_at"`
	Error     string    `json:"error,omitempty"`
}

// Runner audits files one at a time.
type Runner struct {
	Client  Auditor
	Journal Journal
	Rules   validate.UploadRules
	// Force re-submits files already present in the journal.
	Force bool
	Clock func() time.Time
}

// AuditFile validates, deduplicates and submits the file at path.
func (r *Runner) AuditFile(ctx context.Context, path string) (*Result, error) {
	if r == nil || r.Client == nil {
		return nil, errors.New("audit runner is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	name := filepath.Base(path)
	if err := validate.Upload(name, "", info.Size(), r.Rules); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied email path
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	digest, size, err := journal.Digest(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	result := &Result{Path: path, Digest: digest, Size: size}

	if r.Journal != nil && !r.Force {
		entry, err := r.Journal.Lookup(ctx, digest)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			var report apiclient.AuditReport
			if err := json.Unmarshal(entry.Report, &report); err == nil {
				result.Report = &report
				result.Cached = true
				result.AuditedAt = entry.AuditedAt
				return result, nil
			}
		}
	}

	report, err := r.Client.Audit(ctx, name, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	result.Report = report
	result.AuditedAt = r.now()

	if r.Journal != nil {
		raw, err := json.Marshal(report)
		if err != nil {
			return nil, fmt.Errorf("encode report: %w", err)
		}
		if err := r.Journal.Record(ctx, journal.Entry{
			Digest:    digest,
			FileName:  name,
			Path:      path,
			Size:      size,
			Score:     report.Score,
			Report:    raw,
			AuditedAt: result.AuditedAt,
		}); err != nil {
			return result, err
		}
	}

	return result, nil
}

func (r *Runner) now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}
