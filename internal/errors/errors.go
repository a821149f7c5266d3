package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
)

// Kind identifies an error class exposed to API clients. The string value is
// what ends up in the "error" and "code" fields of the response envelope.
type Kind string

const (
	KindMethodNotAllowed Kind = "method_not_allowed"
	KindConfig           Kind = "config_error"
	KindAuthRequired     Kind = "auth_required"
	KindInvalidToken     Kind = "invalid_token"
	KindInvalidJSON      Kind = "invalid_json"
	KindInvalidRequest   Kind = "invalid_request"
	KindImageTooLarge    Kind = "image_too_large"
	KindQuotaExceeded    Kind = "quota_exceeded"
	KindAI               Kind = "ai_error"
	KindParse            Kind = "parse_error"
	KindServer           Kind = "server_error"
)

var kindStatus = map[Kind]int{
	KindMethodNotAllowed: http.StatusMethodNotAllowed,
	KindConfig:           http.StatusInternalServerError,
	KindAuthRequired:     http.StatusUnauthorized,
	KindInvalidToken:     http.StatusUnauthorized,
	KindInvalidJSON:      http.StatusBadRequest,
	KindInvalidRequest:   http.StatusBadRequest,
	KindImageTooLarge:    http.StatusBadRequest,
	KindQuotaExceeded:    http.StatusTooManyRequests,
	KindAI:               http.StatusInternalServerError,
	KindParse:            http.StatusInternalServerError,
	KindServer:           http.StatusInternalServerError,
}

// Status returns the HTTP status code for the kind. Unknown kinds map to 500.
func (k Kind) Status() int {
	if s, ok := kindStatus[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// ClientFault reports whether the kind is caused by the caller rather than the server.
func (k Kind) ClientFault() bool {
	return k.Status() < http.StatusInternalServerError
}

// AppError represents an application error with additional context
type AppError struct {
	Kind     Kind
	Message  string
	Internal error
	Context  map[string]interface{}
	Source   string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Kind, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the internal error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Is matches another *AppError of the same kind.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// LogFields returns structured logging fields
func (e *AppError) LogFields() []interface{} {
	fields := []interface{}{
		"error_kind", e.Kind,
		"error_message", e.Message,
		"source", e.Source,
	}

	if e.Internal != nil {
		fields = append(fields, "internal_error", e.Internal.Error())
	}

	for k, v := range e.Context {
		fields = append(fields, k, v)
	}

	return fields
}

// New creates a new AppError
func New(kind Kind, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
		Source:  caller(),
		Context: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error into AppError
func Wrap(err error, kind Kind, message string) *AppError {
	return &AppError{
		Kind:     kind,
		Message:  message,
		Internal: err,
		Source:   caller(),
		Context:  make(map[string]interface{}),
	}
}

func caller() string {
	_, file, line, _ := runtime.Caller(2)
	return fmt.Sprintf("%s:%d", file, line)
}

// KindOf extracts the kind of err. Errors that are not *AppError are server errors.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindServer
}

// As is errors.As re-exported so callers importing this package under the
// name "errors" keep access to it.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is is errors.Is re-exported for the same reason as As.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Handler provides error handling strategies
type Handler struct {
	logger *slog.Logger
}

// NewHandler creates a new error handler
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

// Handle logs err at a level matching its kind.
func (h *Handler) Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		h.logger.ErrorContext(ctx, "Unhandled error", "error", err.Error())
		return
	}

	switch {
	case appErr.Kind == KindQuotaExceeded:
		h.logger.InfoContext(ctx, "Quota exceeded", appErr.LogFields()...)
	case appErr.Kind.ClientFault():
		h.logger.WarnContext(ctx, "Request rejected", appErr.LogFields()...)
	default:
		h.logger.ErrorContext(ctx, "Request failed", appErr.LogFields()...)
	}
}

// LogAndReturn logs an error and returns it
func (h *Handler) LogAndReturn(ctx context.Context, err error) error {
	h.Handle(ctx, err)
	return err
}

// Convenience constructors for the kinds raised in more than one place.

func NewInvalidRequest(message string) *AppError {
	return New(KindInvalidRequest, message)
}

func NewQuotaExceeded(message string) *AppError {
	return New(KindQuotaExceeded, message)
}

func NewServerError(err error) *AppError {
	return Wrap(err, KindServer, "Internal server error")
}

func NewAIError(err error, provider string) *AppError {
	return Wrap(err, KindAI, "AI service is temporarily unavailable").
		WithContext("provider", provider)
}
