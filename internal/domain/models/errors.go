package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrConfig        = errors.New("invalid configuration")
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrNonFiniteLoss = errors.New("non-finite loss")
	ErrNotFound      = errors.New("not found")
	ErrNoValidTrial  = errors.New("no trial finished with a finite loss")
)

// InvalidInputError reports a missing or non-numeric required field.
type InvalidInputError struct {
	Field  string
	Row    int // -1 when not row specific
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("invalid input: row %d field %q: %s", e.Row, e.Field, e.Reason)
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid input: field %q: %s", e.Field, e.Reason)
	}
	return "invalid input: " + e.Reason
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// NewInvalidInput builds an InvalidInputError that is not tied to a row.
func NewInvalidInput(field, format string, args ...interface{}) error {
	return &InvalidInputError{Field: field, Row: -1, Reason: fmt.Sprintf(format, args...)}
}

// ConfigError reports an invalid option: split ratios, window size, empty grid and so on.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// NewConfigError builds a ConfigError.
func NewConfigError(field, format string, args ...interface{}) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ShapeMismatchError reports sequences or tensors whose dimensions disagree.
type ShapeMismatchError struct {
	What string
	Want int
	Got  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: %s: want %d, got %d", e.What, e.Want, e.Got)
}

func (e *ShapeMismatchError) Is(target error) bool { return target == ErrShapeMismatch }

// NewShapeMismatch builds a ShapeMismatchError.
func NewShapeMismatch(what string, want, got int) error {
	return &ShapeMismatchError{What: what, Want: want, Got: got}
}
