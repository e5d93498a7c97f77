package apiclient

import (
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	headerContentType = "Content-Type"
	headerRequestID   = "X-Request-ID"
	headerAPIKey      = "X-API-Key"

	contentTypeJSON = "application/json"
)

// RequestOptions configures a single dispatch. Zero fields fall back to the
// defaults; set fields win.
type RequestOptions struct {
	// Method defaults to GET.
	Method string
	// Headers are merged over the default Content-Type header. Keys are
	// compared in canonical form, so "content-type" overrides the default.
	Headers map[string]string
	// Query is appended to the target URL.
	Query url.Values
	// Body is sent as-is. It takes precedence over JSON.
	Body io.Reader
	// JSON is encoded as the request body when Body is nil.
	JSON any
}

func defaultOptions() RequestOptions {
	return RequestOptions{
		Method: http.MethodGet,
		Headers: map[string]string{
			headerContentType: contentTypeJSON,
		},
	}
}

// mergeOptions layers opts over the defaults field by field.
func mergeOptions(opts *RequestOptions) RequestOptions {
	merged := defaultOptions()
	if opts == nil {
		return merged
	}

	if method := strings.TrimSpace(opts.Method); method != "" {
		merged.Method = strings.ToUpper(method)
	}

	for key, value := range opts.Headers {
		canonical := http.CanonicalHeaderKey(strings.TrimSpace(key))
		if canonical == "" {
			continue
		}
		merged.Headers[canonical] = value
	}

	merged.Query = opts.Query
	merged.Body = opts.Body
	merged.JSON = opts.JSON
	return merged
}

func (o RequestOptions) apply(req *http.Request) {
	for key, value := range o.Headers {
		req.Header.Set(key, value)
	}
}
