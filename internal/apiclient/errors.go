package apiclient

import (
	"fmt"
)

// RequestError is returned when the endpoint answers with a non-2xx status.
//
// Message is the body's "error" field when present, otherwise a generic
// message naming the status code.
type RequestError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *RequestError) Error() string {
	if e == nil {
		return "request error"
	}
	if e.Message != "" {
		return e.Message
	}
	return statusMessage(e.StatusCode)
}

// TransportError is returned when the HTTP call itself failed or the body
// was not JSON. StatusCode is zero when no response arrived.
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "transport error"
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func statusMessage(code int) string {
	return fmt.Sprintf("HTTP error! status: %d", code)
}
