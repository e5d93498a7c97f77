// Package apiclient dispatches JSON requests to the Email Auditor API.
//
// Each dispatch is a single attempt: no retries, no backoff, and no timeout
// beyond the caller's context and the configured *http.Client.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emailauditor/auditkit/internal/observability"
)

// Client sends requests relative to BaseURL.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	// Logger receives the diagnostic record for failed requests. Nil falls
	// back to observability.CLILogger.
	Logger *logging.Logger
}

// NewClient returns a client with whitespace trimmed from its settings.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimSpace(baseURL),
		APIKey:  strings.TrimSpace(apiKey),
	}
}

// Request dispatches to target and returns the decoded JSON payload
// (map[string]any, []any, string, float64, bool or nil).
func (c *Client) Request(ctx context.Context, target string, opts *RequestOptions) (any, error) {
	var payload any
	if err := c.Do(ctx, target, opts, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Do dispatches to target and decodes the JSON response into out.
//
// The body is parsed before the status is checked, so a body that is not
// JSON (empty included) yields a *TransportError whatever the status, as do
// network failures. A non-2xx JSON body yields a *RequestError and is still
// decoded into out.
func (c *Client) Do(ctx context.Context, target string, opts *RequestOptions, out any) error {
	if c == nil {
		return fmt.Errorf("api client not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	merged := mergeOptions(opts)
	if c.APIKey != "" {
		setDefaultHeader(merged.Headers, headerAPIKey, c.APIKey)
	}
	setDefaultHeader(merged.Headers, headerRequestID, uuid.New().String())

	endpoint, err := c.resolve(target, merged.Query)
	if err != nil {
		return err
	}

	body, err := requestBody(merged)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, merged.Method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	merged.apply(httpReq)

	entry := TraceEntry{
		RequestID: httpReq.Header.Get(headerRequestID),
		Method:    merged.Method,
		URL:       endpoint,
	}
	start := time.Now()

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return c.fail(entry, start, &TransportError{Method: merged.Method, URL: endpoint, Err: err})
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	entry.StatusCode = resp.StatusCode

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(entry, start, &TransportError{Method: merged.Method, URL: endpoint, Err: fmt.Errorf("read response: %w", err)})
	}
	entry.Response = respBody

	var raw json.RawMessage
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return c.fail(entry, start, &TransportError{
			Method:     merged.Method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode response: %w", err),
		})
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if out != nil {
			_ = json.Unmarshal(raw, out)
		}
		return c.fail(entry, start, &RequestError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw, resp.StatusCode),
			Body:       respBody,
		})
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return c.fail(entry, start, &TransportError{
				Method:     merged.Method,
				URL:        endpoint,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("decode response: %w", err),
			})
		}
	}

	entry.DurationMs = time.Since(start).Milliseconds()
	trace(entry)
	return nil
}

// fail emits the diagnostic record and trace entry for err, then returns it.
func (c *Client) fail(entry TraceEntry, start time.Time, err error) error {
	entry.DurationMs = time.Since(start).Milliseconds()
	entry.Error = err.Error()
	trace(entry)

	if logger := c.logger(); logger != nil {
		fields := []zap.Field{
			zap.String("method", entry.Method),
			zap.String("url", entry.URL),
			zap.String("request_id", entry.RequestID),
			zap.Error(err),
		}
		if entry.StatusCode > 0 {
			fields = append(fields, zap.Int("status", entry.StatusCode))
		}
		logger.Error("API request failed", fields...)
	}
	return err
}

func (c *Client) logger() *logging.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return observability.CLILogger
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// resolve joins target onto BaseURL unless target is already absolute.
func (c *Client) resolve(target string, query url.Values) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", fmt.Errorf("target url is required")
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid target url: %w", err)
	}

	if !parsed.IsAbs() {
		base := strings.TrimSpace(c.BaseURL)
		if base == "" {
			return "", fmt.Errorf("base url is required for relative target %q", target)
		}
		baseURL, err := url.Parse(strings.TrimRight(base, "/") + "/")
		if err != nil {
			return "", fmt.Errorf("invalid base url: %w", err)
		}
		parsed = baseURL.ResolveReference(&url.URL{
			Path:     strings.TrimLeft(parsed.Path, "/"),
			RawQuery: parsed.RawQuery,
		})
	}

	if len(query) > 0 {
		values := parsed.Query()
		for key, vals := range query {
			for _, v := range vals {
				values.Add(key, v)
			}
		}
		parsed.RawQuery = values.Encode()
	}

	return parsed.String(), nil
}

func requestBody(opts RequestOptions) (io.Reader, error) {
	if opts.Body != nil {
		return opts.Body, nil
	}
	if opts.JSON == nil {
		return nil, nil
	}
	data, err := json.Marshal(opts.JSON)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return bytes.NewReader(data), nil
}

// errorMessage pulls the server message out of an error body. It accepts
// {"error": "..."} and {"error": {"message": "..."}}.
func errorMessage(body []byte, status int) string {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch v := parsed["error"].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case map[string]any:
			if msg, ok := v["message"].(string); ok && strings.TrimSpace(msg) != "" {
				return msg
			}
		}
	}
	return statusMessage(status)
}

func setDefaultHeader(headers map[string]string, key, value string) {
	key = http.CanonicalHeaderKey(key)
	if _, ok := headers[key]; ok {
		return
	}
	headers[key] = value
}
