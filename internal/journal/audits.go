package journal

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Entry is one audited email.
type Entry struct {
	Digest    string          `json:"digest"`
	FileName  string          `json:"file_name"`
	Path      string          `json:"path"`
	Size      int64           `json:"size"`
	Score     int             `json:"score"`
	Report    json.RawMessage `json:"report"`
	AuditedAt time.Time       `json:"audited_at"`
}

// Digest returns the hex SHA-256 of r and the number of bytes read.
func Digest(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, fmt.Errorf("hash email: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Record stores e, replacing any earlier entry with the same digest.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if s == nil || s.DB == nil {
		return errors.New("journal is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(e.Digest) == "" {
		return errors.New("entry digest is required")
	}

	report := string(e.Report)
	if report == "" {
		report = "null"
	}
	auditedAt := e.AuditedAt
	if auditedAt.IsZero() {
		auditedAt = time.Now()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO audits (digest, file_name, path, size, score, report, audited_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(digest) DO UPDATE SET
			file_name = excluded.file_name,
			path = excluded.path,
			size = excluded.size,
			score = excluded.score,
			report = excluded.report,
			audited_at = excluded.audited_at
	`, e.Digest, e.FileName, e.Path, e.Size, e.Score, report, auditedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

// Lookup returns the entry for digest, or nil when none exists.
func (s *Store) Lookup(ctx context.Context, digest string) (*Entry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("journal is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	row := s.DB.QueryRowContext(ctx, `
		SELECT digest, file_name, path, size, score, report, audited_at
		FROM audits WHERE digest = ?
	`, strings.TrimSpace(digest))

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup audit: %w", err)
	}
	return entry, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("journal is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT digest, file_name, path, size, score, report, audited_at
		FROM audits ORDER BY audited_at DESC, digest LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		entry     Entry
		report    string
		auditedAt int64
	)
	if err := row.Scan(&entry.Digest, &entry.FileName, &entry.Path, &entry.Size, &entry.Score, &report, &auditedAt); err != nil {
		return nil, err
	}
	entry.Report = json.RawMessage(report)
	entry.AuditedAt = time.UnixMilli(auditedAt).UTC()
	return &entry, nil
}
