package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrConflict
	ErrIntegrity
	ErrInternal
)

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func NewNotFound(message string, err error) *AppError {
	return New(ErrNotFound, message, err)
}

func NewBadRequest(message string, err error) *AppError {
	return New(ErrBadRequest, message, err)
}

// NewIntegrity flags a data-integrity problem, e.g. a notification that
// references a nonexistent user. These must reach an operator rather than
// being silently dropped.
func NewIntegrity(message string, err error) *AppError {
	return New(ErrIntegrity, message, err)
}

// Code extracts the ErrorCode from err, or ErrInternal if it carries none.
func Code(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// IsNotFound reports whether err is an ErrNotFound application error.
func IsNotFound(err error) bool {
	return Code(err) == ErrNotFound
}
