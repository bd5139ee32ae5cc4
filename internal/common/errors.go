package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrValidation   = errors.New("validation failed")
	ErrDatabase     = errors.New("database error")

	// ErrOCRFailure means a scan could not be read at all.
	ErrOCRFailure = errors.New("ocr failure")
	// ErrFetchFailure means the remote report store could not be reached.
	ErrFetchFailure = errors.New("fetch failure")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// OCRError wraps an engine error so callers can match ErrOCRFailure.
func OCRError(err error) error {
	return &AppError{Code: "OCR_FAILURE", Message: "scan could not be read", Cause: errors.Join(ErrOCRFailure, err)}
}

// FetchError wraps a remote-store error so callers can match ErrFetchFailure.
func FetchError(err error) error {
	return &AppError{Code: "FETCH_FAILURE", Message: "remote report store unreachable", Cause: errors.Join(ErrFetchFailure, err)}
}
