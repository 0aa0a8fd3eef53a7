package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType names the pipeline stage an error came from
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeFetch       ErrorType = "fetch"
	ErrorTypeDecode      ErrorType = "decode"
	ErrorTypeTransform   ErrorType = "transform"
	ErrorTypeEncode      ErrorType = "encode"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeRateLimited ErrorType = "rate_limited"
	ErrorTypeInternal    ErrorType = "internal"
)

// Client-facing messages for the stages whose wording is fixed by the API.
const (
	MsgFetchFailed  = "Erro ao baixar a imagem."
	MsgEncodeFailed = "Falha ao gerar imagem Canny."
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewFetchError reports that the source image could not be downloaded.
// The message is the fixed client-facing text.
func NewFetchError(cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeFetch,
		Message:    MsgFetchFailed,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewDecodeError reports bytes that were fetched but are not a usable image
func NewDecodeError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeDecode,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewTransformError reports a failure inside edge detection
func NewTransformError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeTransform,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewEncodeError reports that the edge map could not be serialized
func NewEncodeError(cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeEncode,
		Message:    MsgEncodeFailed,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeTimeout,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewRateLimitedError creates a new rate limit error
func NewRateLimitedError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeRateLimited,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// IsType checks if the error chain holds an AppError of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// PublicMessage is the text placed in the "error" field of a response.
// Unclassified errors expose their own description.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err == nil {
		return http.StatusText(http.StatusInternalServerError)
	}
	return err.Error()
}
