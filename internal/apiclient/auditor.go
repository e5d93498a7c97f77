package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// Email Auditor API paths.
const (
	PathAudit  = "/api/audit"
	PathUsage  = "/api/usage"
	PathKey    = "/api/key"
	PathHealth = "/api/health"
)

// Usage is the daily quota summary for the API key.
type Usage struct {
	TodayUsage       int    `json:"today_usage"`
	DailyLimit       int    `json:"daily_limit"`
	Remaining        int    `json:"remaining"`
	SubscriptionTier string `json:"subscription_tier"`
}

// HealthReport is the body of /api/health for both healthy and unhealthy
// responses.
type HealthReport struct {
	Status      string         `json:"status"`
	Timestamp   string         `json:"timestamp"`
	Version     string         `json:"version"`
	Environment string         `json:"environment"`
	Error       string         `json:"error,omitempty"`
	Services    map[string]any `json:"services,omitempty"`
	Limits      map[string]int `json:"limits,omitempty"`
}

// Healthy reports whether the service said it is healthy.
func (h *HealthReport) Healthy() bool {
	return h != nil && strings.EqualFold(h.Status, "healthy")
}

// AuditReport is the result of auditing one email.
type AuditReport struct {
	Score   int          `json:"score"`
	Rules   []RuleResult `json:"rules"`
	Summary AuditSummary `json:"summary"`
}

// RuleResult is one rule's verdict. Passed and Score are null for rules the
// service has not implemented.
type RuleResult struct {
	RuleID        RuleID   `json:"rule_id"`
	Description   string   `json:"description"`
	Passed        *bool    `json:"passed"`
	Score         *float64 `json:"score"`
	Justification string   `json:"justification"`
}

// AuditSummary groups rule justifications by outcome.
type AuditSummary struct {
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// RuleID accepts both string and numeric rule identifiers.
type RuleID string

// UnmarshalJSON implements json.Unmarshaler.
func (r *RuleID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = RuleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("rule_id must be a string or number: %w", err)
	}
	*r = RuleID(n.String())
	return nil
}

type apiKeyResponse struct {
	APIKey string `json:"api_key"`
}

// Usage fetches today's usage for the configured API key.
func (c *Client) Usage(ctx context.Context) (*Usage, error) {
	if err := c.requireAPIKey(); err != nil {
		return nil, err
	}
	var usage Usage
	if err := c.Do(ctx, PathUsage, nil, &usage); err != nil {
		return nil, err
	}
	return &usage, nil
}

// Health fetches the service health report. An unhealthy service answers
// 503; the decoded report is returned together with the *RequestError.
func (c *Client) Health(ctx context.Context) (*HealthReport, error) {
	var report HealthReport
	err := c.Do(ctx, PathHealth, nil, &report)
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusServiceUnavailable && report.Status != "" {
			return &report, err
		}
		return nil, err
	}
	return &report, nil
}

// FetchAPIKey returns the account's API key. The endpoint requires a
// logged-in session, so session is the web session cookie value.
func (c *Client) FetchAPIKey(ctx context.Context, session string) (string, error) {
	return c.apiKey(ctx, http.MethodGet, session)
}

// RotateAPIKey issues a new API key for the logged-in account.
func (c *Client) RotateAPIKey(ctx context.Context, session string) (string, error) {
	return c.apiKey(ctx, http.MethodPost, session)
}

func (c *Client) apiKey(ctx context.Context, method, session string) (string, error) {
	session = strings.TrimSpace(session)
	if session == "" {
		return "", fmt.Errorf("session cookie is required")
	}

	// Anonymous requests are redirected to the HTML login page; stop at the
	// redirect so a stale session reads as unauthorized.
	hc := *c.httpClient()
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	kc := *c
	kc.HTTPClient = &hc

	var resp apiKeyResponse
	err := kc.Do(ctx, PathKey, &RequestOptions{
		Method:  method,
		Headers: map[string]string{"Cookie": "session=" + session},
	}, &resp)
	if err != nil {
		var transportErr *TransportError
		if errors.As(err, &transportErr) && isRedirect(transportErr.StatusCode) {
			return "", &RequestError{StatusCode: http.StatusUnauthorized, Message: "session is not logged in"}
		}
		return "", err
	}
	return resp.APIKey, nil
}

func isRedirect(status int) bool {
	return status >= http.StatusMultipleChoices && status < http.StatusBadRequest
}

// Audit uploads an email as the multipart "file" field and returns the
// service's report.
func (c *Client) Audit(ctx context.Context, name string, email io.Reader) (*AuditReport, error) {
	if err := c.requireAPIKey(); err != nil {
		return nil, err
	}
	if email == nil {
		return nil, fmt.Errorf("email content is required")
	}

	body, contentType, err := multipartFile("file", filepath.Base(name), email)
	if err != nil {
		return nil, err
	}

	var report AuditReport
	err = c.Do(ctx, PathAudit, &RequestOptions{
		Method:  http.MethodPost,
		Headers: map[string]string{headerContentType: contentType},
		Body:    body,
	}, &report)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) requireAPIKey() error {
	if c == nil || strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("api key is required")
	}
	return nil
}

func multipartFile(field, filename string, content io.Reader) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, "", fmt.Errorf("copy email content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return buf, writer.FormDataContentType(), nil
}
