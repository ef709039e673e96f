package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/tidwall/gjson"
)

// ErrorKind classifies a gateway failure for the wire envelope.
type ErrorKind string

const (
	// KindValidation indicates malformed, missing, or out-of-range input
	// fields, or a disallowed (model, provider) pairing. Client-correctable.
	KindValidation ErrorKind = "validation_error"
	// KindConfiguration indicates the requested provider is unknown or has
	// no credential configured. Not retryable until an operator fixes it.
	KindConfiguration ErrorKind = "configuration_error"
	// KindUpstream indicates the external provider returned a non-success
	// status, a network-level failure occurred, or the call timed out.
	KindUpstream ErrorKind = "upstream_error"
	// KindInternal covers anything unclassified.
	KindInternal ErrorKind = "internal_error"
)

// FieldViolation describes one field-level validation failure.
type FieldViolation struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error is the typed error raised by the validator, the factory, and the
// adapters. Only the outermost dispatch layer converts it into the wire
// envelope.
type Error struct {
	Kind        ErrorKind
	Message     string
	StatusCode  int
	Provider    string
	Details     []FieldViolation
	UserMessage string
	// Original error for debugging (not exposed to clients)
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the HTTP status to use for this error.
func (e *Error) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConfiguration:
		return http.StatusInternalServerError
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError creates a validation error carrying every collected
// field violation so a client can fix all problems from one response.
func NewValidationError(details []FieldViolation) *Error {
	return &Error{
		Kind:        KindValidation,
		Message:     "request validation failed",
		StatusCode:  http.StatusBadRequest,
		Details:     details,
		UserMessage: "One or more request fields are invalid.",
	}
}

// NewCompatibilityError creates a validation error for a (model, provider)
// pair outside the compatibility table.
func NewCompatibilityError(model, provider string) *Error {
	return &Error{
		Kind:       KindValidation,
		Message:    fmt.Sprintf("model %q is not available for provider %q", model, provider),
		StatusCode: http.StatusBadRequest,
		Details: []FieldViolation{{
			Field:   "model",
			Message: fmt.Sprintf("not in the model set of provider %q", provider),
			Value:   model,
		}},
		Provider:    provider,
		UserMessage: "The requested model is not offered by this provider.",
	}
}

// NewUnknownProviderError creates a configuration error for a provider name
// outside the supported set.
func NewUnknownProviderError(name string) *Error {
	return &Error{
		Kind:       KindConfiguration,
		Message:    fmt.Sprintf("unknown provider: %s", name),
		StatusCode: http.StatusNotFound,
		Provider:   name,
	}
}

// NewUnavailableError creates a configuration error for a provider with no
// credential configured.
func NewUnavailableError(provider string) *Error {
	return &Error{
		Kind:        KindConfiguration,
		Message:     fmt.Sprintf("provider %q is not configured: missing API key", provider),
		StatusCode:  http.StatusServiceUnavailable,
		Provider:    provider,
		UserMessage: fmt.Sprintf("Provider %s is currently unavailable.", provider),
	}
}

// NewConfigurationError creates a configuration error for missing or
// inconsistent gateway configuration.
func NewConfigurationError(message string) *Error {
	return &Error{
		Kind:       KindConfiguration,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewUpstreamError creates an upstream error with an explicit status code.
func NewUpstreamError(provider string, statusCode int, message string, err error) *Error {
	return &Error{
		Kind:        KindUpstream,
		Message:     message,
		StatusCode:  statusCode,
		Provider:    provider,
		UserMessage: fmt.Sprintf("The %s API returned an error.", provider),
		Err:         err,
	}
}

// NewInternalError creates an unclassified internal error.
func NewInternalError(message string, err error) *Error {
	return &Error{
		Kind:       KindInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// ParseUpstreamError maps a non-success provider response onto an upstream
// error. The status code is mirrored as-is (an upstream 429 stays a 429);
// the human-readable message is extracted from the body where possible.
// All four providers nest it under error.message, so a single gjson lookup
// covers them without per-provider structs.
func ParseUpstreamError(provider string, statusCode int, body []byte) *Error {
	message := string(body)
	if m := gjson.GetBytes(body, "error.message"); m.Exists() && m.String() != "" {
		message = m.String()
	}
	if statusCode < 400 {
		statusCode = http.StatusBadGateway
	}
	return NewUpstreamError(provider, statusCode, message, nil)
}

// ClassifyTransportError maps a transport-level failure (the request never
// produced an HTTP status) onto an upstream error: 504 for timeouts, 502
// for everything else.
func ClassifyTransportError(provider string, err error) *Error {
	var netErr net.Error
	timedOut := errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout())
	if timedOut {
		e := NewUpstreamError(provider, http.StatusGatewayTimeout,
			fmt.Sprintf("request to %s timed out", provider), err)
		e.UserMessage = fmt.Sprintf("The %s API took too long to respond.", provider)
		return e
	}
	return NewUpstreamError(provider, http.StatusBadGateway,
		fmt.Sprintf("failed to reach %s: %v", provider, err), err)
}
