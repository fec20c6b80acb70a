// Package gatewayerrors defines the error taxonomy shared by every gateway
// component and maps it to HTTP status codes at the API boundary. The shape
// mirrors runtime/agent/toolerrors.ToolError: a message plus an optional
// wrapped cause so provider/tool errors can be unwrapped without losing the
// original text.
package gatewayerrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Class is the taxonomy of gateway failures. Values are stable strings, not
// Go types, so they serialize directly into the user-visible error envelope.
type Class string

const (
	ClassInvalidRequest  Class = "invalid_request"
	ClassNotFound        Class = "not_found"
	ClassTimeout         Class = "timeout_error"
	ClassAPIError        Class = "api_error"
	ClassStreamingError  Class = "streaming_error"
	ClassProcessingError Class = "processing_error"
	ClassStorageError    Class = "storage_error"
	ClassVectorStore     Class = "vector_store_error"
	ClassToolNotFound    Class = "tool_not_found"
	ClassToolTimeout     Class = "tool_timeout"
	ClassInvalidArgs     Class = "invalid_arguments"
	ClassMCPUnavailable  Class = "mcp_unavailable"
)

// defaultStatus maps a Class to its default HTTP status A
// provider-reported status on an Error overrides this default when present.
var defaultStatus = map[Class]int{
	ClassInvalidRequest:  http.StatusBadRequest,
	ClassNotFound:        http.StatusNotFound,
	ClassTimeout:         http.StatusRequestTimeout,
	ClassAPIError:        http.StatusInternalServerError,
	ClassStreamingError:  http.StatusInternalServerError,
	ClassProcessingError: http.StatusInternalServerError,
	ClassStorageError:    http.StatusInternalServerError,
	ClassVectorStore:     http.StatusInternalServerError,
	ClassToolNotFound:    http.StatusNotFound,
	ClassToolTimeout:     http.StatusGatewayTimeout,
	ClassInvalidArgs:     http.StatusBadRequest,
	ClassMCPUnavailable:  http.StatusBadGateway,
}

// Error is the gateway's typed error envelope. It chains like ToolError
// (Cause *Error, Unwrap returns Cause) so a provider error can be wrapped by a
// streaming_error without losing the original provider detail.
type Error struct {
	Class   Class
	Message string
	Param   string
	Code    string
	Path    string // JSON path for invalid_request errors, e.g. tools[1].parameters.properties.x
	Status  int    // overrides the class default when non-zero (provider-reported status)
	Cause   *Error
}

// New constructs an Error with no cause.
func New(class Class, message string) *Error {
	return &Error{Class: class, Message: message}
}

// Newf constructs an Error with a formatted message.
func Newf(class Class, format string, args ...any) *Error {
	return &Error{Class: class, Message: fmt.Sprintf(format, args...)}
}

// WithCause wraps cause as the parent of a new Error, mirroring
// toolerrors.NewWithCause's chain-preserving pattern.
func WithCause(class Class, message string, cause *Error) *Error {
	return &Error{Class: class, Message: message, Cause: cause}
}

// WithPath annotates an invalid_request error with the offending JSON path.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithParam annotates an error with the offending request parameter name.
func (e *Error) WithParam(param string) *Error {
	e.Param = param
	return e
}

// WithStatus overrides the default HTTP status for this error, used when a
// provider reports its own status code.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Class, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

// Unwrap exposes the chained cause so errors.Is/As can traverse it.
func (e *Error) Unwrap() error {
	if e == nil || e.Cause == nil {
		return nil
	}
	return e.Cause
}

// HTTPStatus resolves the HTTP status code for this error: the provider-
// reported override if set, else the class default, else 500.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	if status, ok := defaultStatus[e.Class]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Envelope is the user-visible JSON error body: a stable type, a
// human message, optional param/code, and a timestamp.
type Envelope struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Param     string `json:"param,omitempty"`
	Code      string `json:"code,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ToEnvelope converts e into its wire representation, stamped with now.
// Callers pass the current time explicitly because this package never calls
// time.Now() itself, keeping it deterministic for tests.
func (e *Error) ToEnvelope(now time.Time) Envelope {
	return Envelope{
		Type:      string(e.Class),
		Message:   e.Message,
		Param:     e.Param,
		Code:      e.Code,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}

// From classifies an arbitrary error into a gateway Error. If err is already
// an *Error it is returned unchanged; context errors map to timeout_error;
// everything else becomes processing_error wrapping the original message.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return New(ClassTimeout, err.Error())
	}
	return New(ClassProcessingError, err.Error())
}

// ProviderErrorBody is the shape providers use for JSON error bodies,
// {"error": {...}}. Parsed fields are surfaced verbatim on the resulting
// Error.
type ProviderErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Param   string `json:"param"`
		Code    string `json:"code"`
	} `json:"error"`
}

// FromProvider builds an api_error Error from a parsed provider error body
// and the HTTP status the provider returned.
func FromProvider(body ProviderErrorBody, status int) *Error {
	return &Error{
		Class:   ClassAPIError,
		Message: body.Error.Message,
		Param:   body.Error.Param,
		Code:    body.Error.Code,
		Status:  status,
	}
}
