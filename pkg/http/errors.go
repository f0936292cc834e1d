package http

import (
	"errors"
	"fmt"
	"net/http"

	"FinForecast/internal/domain/models"
)

// AppError represents application-level error with HTTP status.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error.
func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Field:   field,
		Status:  status,
	}
}

// WithParam sets a single error param.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// NotFoundErrorf creates a 404 error with formatting.
func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return NewAppError("ERR_NOT_FOUND", "", fmt.Sprintf(format, a...), http.StatusNotFound)
}

// BadRequestErrorf creates a 400 error with formatting.
func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return NewAppError("ERR_BAD_REQUEST", "", fmt.Sprintf(format, a...), http.StatusBadRequest)
}

// InternalError creates a 500 error.
func InternalError(message string) *AppError {
	return NewAppError("ERR_INTERNAL", "", message, http.StatusInternalServerError)
}

// FromError maps domain errors to an AppError: configuration and input
// errors are 400, missing reports 404, everything else 500.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var cfgErr *models.ConfigError
	var inErr *models.InvalidInputError
	switch {
	case errors.As(err, &cfgErr):
		return NewAppError("ERR_CONFIG", cfgErr.Field, cfgErr.Reason, http.StatusBadRequest).WithError(err)
	case errors.As(err, &inErr):
		return NewAppError("ERR_INVALID_INPUT", inErr.Field, inErr.Reason, http.StatusBadRequest).
			WithParam("row", inErr.Row).WithError(err)
	case errors.Is(err, models.ErrConfig), errors.Is(err, models.ErrInvalidInput):
		return BadRequestErrorf("%v", err).WithError(err)
	case errors.Is(err, models.ErrNotFound):
		return NotFoundErrorf("%v", err).WithError(err)
	default:
		return InternalError("Something went wrong").WithError(err)
	}
}
