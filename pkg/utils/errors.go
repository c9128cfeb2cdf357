package utils

import (
	"errors"
	"fmt"
)

// AppError an error that already knows its response code
type AppError struct {
	Code    ResponseCode `json:"code"`
	Message string       `json:"message"`
	Err     error        `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%d] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus status the envelope is written with
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewError creates an AppError without a cause
func NewError(code ResponseCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// WrapError attaches code and a client-safe message to err
func WrapError(err error, code ResponseCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// ErrNotFound generic lookup miss
var ErrNotFound = NewError(CodeNotFound, "resource not found")

// IsAppError finds the first AppError in err's chain
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
