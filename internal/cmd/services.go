package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/emailauditor/auditkit/internal/apiclient"
	"github.com/emailauditor/auditkit/internal/audit"
	"github.com/emailauditor/auditkit/internal/config"
	"github.com/emailauditor/auditkit/internal/journal"
	"github.com/emailauditor/auditkit/internal/observability"
	"github.com/emailauditor/auditkit/internal/validate"
)

// newAPIClient builds a client for cfg.API. The HTTP client carries the
// configured TLS, HTTP/2 and timeout settings.
func newAPIClient(cfg *config.Config) (*apiclient.Client, error) {
	httpClient, err := apiclient.NewHTTPClient(apiclient.TransportOptions{
		HTTP2:   cfg.API.HTTP2,
		Timeout: cfg.API.Timeout,
		CAFile:  cfg.API.CAFile,
	})
	if err != nil {
		return nil, fmt.Errorf("configure http client: %w", err)
	}

	client := apiclient.NewClient(cfg.API.BaseURL, cfg.API.Key)
	client.HTTPClient = httpClient
	client.Logger = observability.CLILogger
	return client, nil
}

// openJournal opens the journal unless it is disabled. A nil store with a
// nil error means journaling is off.
func openJournal(ctx context.Context, cfg *config.Config) (*journal.Store, error) {
	if !cfg.Journal.Enabled {
		return nil, nil
	}
	store, err := journal.Open(ctx, cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return store, nil
}

// newRunner wires the client and journal into an audit runner.
func newRunner(cfg *config.Config, client *apiclient.Client, store *journal.Store, force bool) *audit.Runner {
	runner := &audit.Runner{
		Client: client,
		Rules:  validate.EmailUploadRules(cfg.Upload.MaxSize),
		Force:  force,
	}
	// Avoid a typed-nil interface when journaling is off.
	if store != nil {
		runner.Journal = store
	}
	return runner
}

func closeJournal(store *journal.Store) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil && observability.CLILogger != nil {
		observability.CLILogger.Warn("Failed to close journal", zap.Error(err))
	}
}

func sessionFromFlag(flagValue string, cfg *config.Config) string {
	if s := strings.TrimSpace(flagValue); s != "" {
		return s
	}
	return strings.TrimSpace(cfg.API.Session)
}
