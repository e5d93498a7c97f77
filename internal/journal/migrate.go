package journal

import (
	"context"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS audits (
		digest TEXT PRIMARY KEY,
		file_name TEXT NOT NULL,
		path TEXT NOT NULL,
		size INTEGER NOT NULL,
		score INTEGER NOT NULL,
		report TEXT NOT NULL,
		audited_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_audits_audited_at ON audits(audited_at);`,
}

// Migrate ensures the journal tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("journal is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("journal migration failed: %w", err)
		}
	}
	return nil
}
