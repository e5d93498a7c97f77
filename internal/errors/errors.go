// Package errors converts auditctl failures into gofulmen error envelopes and
// maps them onto foundry exit codes.
package errors

import (
	"context"
	stderrors "errors"
	"io/fs"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"

	"github.com/emailauditor/auditkit/internal/apiclient"
)

// Error codes used by auditctl envelopes.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeRateLimited        = "RATE_LIMITED"
	CodeExternalService    = "EXTERNAL_SERVICE_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeTimeout            = "TIMEOUT"
	CodeDatabase           = "DATABASE_ERROR"
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeInternal           = "INTERNAL_ERROR"
)

func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

func NewUnauthorizedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeUnauthorized, message)
}

func NewConfigInvalidError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeConfigInvalid, message)
}

func NewExternalServiceError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeExternalService, message)
}

// Wrap functions attach the correlation ID carried by ctx and record the
// wrapped error in the envelope context.

func WrapInvalidInput(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeInvalidInput, err, message, false)
}

func WrapNotFound(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeNotFound, err, message, false)
}

func WrapDatabaseError(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeDatabase, err, message, true)
}

func WrapExternalService(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeExternalService, err, message, true)
}

func WrapConfigInvalid(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeConfigInvalid, err, message, true)
}

// FromAPIError classifies a dispatcher failure. RequestErrors map by status;
// TransportErrors become SERVICE_UNAVAILABLE (or TIMEOUT when the context
// deadline expired). Anything else is INTERNAL_ERROR.
func FromAPIError(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	if err == nil {
		return nil
	}

	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) && envelope != nil {
		return envelope
	}

	var reqErr *apiclient.RequestError
	if stderrors.As(err, &reqErr) {
		env := wrap(ctx, codeForStatus(reqErr.StatusCode), err, message, reqErr.StatusCode >= http.StatusInternalServerError)
		return withContext(env, map[string]any{"http_status": reqErr.StatusCode})
	}

	var transportErr *apiclient.TransportError
	if stderrors.As(err, &transportErr) {
		code := CodeServiceUnavailable
		if stderrors.Is(err, context.DeadlineExceeded) {
			code = CodeTimeout
		}
		env := wrap(ctx, code, err, message, true)
		return withContext(env, map[string]any{"method": transportErr.Method, "url": transportErr.URL})
	}

	if stderrors.Is(err, fs.ErrNotExist) {
		return wrap(ctx, CodeNotFound, err, message, false)
	}

	return wrap(ctx, CodeInternal, err, message, true)
}

// ExitCode resolves the foundry exit code for an envelope.
func ExitCode(envelope *errors.ErrorEnvelope) foundry.ExitCode {
	if envelope == nil {
		return foundry.ExitFailure
	}
	switch envelope.Code {
	case CodeConfigInvalid:
		return foundry.ExitConfigInvalid
	case CodeNotFound:
		return foundry.ExitFileNotFound
	case CodeServiceUnavailable, CodeTimeout, CodeExternalService:
		return foundry.ExitExternalServiceUnavailable
	default:
		return foundry.ExitFailure
	}
}

// EnsureEnvelope normalizes any error into a gofulmen ErrorEnvelope.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	if err == nil {
		env := errors.NewErrorEnvelope(CodeInternal, "unexpected nil error")
		env, _ = env.WithSeverity(errors.SeverityCritical)
		return env
	}

	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) && envelope != nil {
		return envelope
	}

	return FromAPIError(context.Background(), err, err.Error())
}

type correlationKey struct{}

// WithCorrelationID stores id on ctx so envelopes built from it share the
// same correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the ID stored by WithCorrelationID, if any.
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// wrap builds an envelope with SeverityHigh when high is set, otherwise
// SeverityMedium.
func wrap(ctx context.Context, code string, err error, message string, high bool) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(code, message)
	id := extractCorrelationID(ctx)
	envelope = envelope.WithCorrelationID(id)
	envelope = envelope.WithTraceID(id)
	severity := errors.SeverityMedium
	if high {
		severity = errors.SeverityHigh
	}
	if updated, sevErr := envelope.WithSeverity(severity); sevErr == nil {
		envelope = updated
	}
	if err != nil {
		envelope.Original = err
		envelope = withContext(envelope, map[string]any{"wrapped_error": err.Error()})
	}
	return envelope
}

func withContext(envelope *errors.ErrorEnvelope, values map[string]any) *errors.ErrorEnvelope {
	if envelope == nil {
		return nil
	}
	merged := make(map[string]any, len(envelope.Context)+len(values))
	for key, value := range envelope.Context {
		merged[key] = value
	}
	for key, value := range values {
		merged[key] = value
	}
	updated, err := envelope.WithContext(merged)
	if err != nil {
		return envelope
	}
	return updated
}

// extractCorrelationID gets the correlation ID from ctx, falling back to a new UUID.
func extractCorrelationID(ctx context.Context) string {
	if id := CorrelationID(ctx); id != "" {
		return id
	}
	return uuid.New().String()
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusBadRequest, status == http.StatusRequestEntityTooLarge:
		return CodeInvalidInput
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return CodeUnauthorized
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusTooManyRequests:
		return CodeRateLimited
	case status == http.StatusServiceUnavailable:
		return CodeServiceUnavailable
	case status == http.StatusGatewayTimeout:
		return CodeTimeout
	default:
		return CodeExternalService
	}
}
