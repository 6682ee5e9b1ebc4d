package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is a coded error raised by the analysis routines and their adapters
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another AppError by code so callers can test with errors.Is
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == ""
}

// Error codes
const (
	CodeConfigInvalid     = "CONFIG_INVALID"
	CodeDatabaseError     = "DATABASE_ERROR"
	CodeValidationError   = "VALIDATION_ERROR"
	CodeUnsupportedMethod = "UNSUPPORTED_METHOD"
	CodeNonFinite         = "NON_FINITE"
	CodeInsufficientData  = "INSUFFICIENT_DATA"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeInternalError     = "INTERNAL_ERROR"
)

// Sentinels for errors.Is comparisons; they carry a code and no message.
var (
	ErrValidation        = &AppError{Code: CodeValidationError}
	ErrUnsupportedMethod = &AppError{Code: CodeUnsupportedMethod}
	ErrNonFinite         = &AppError{Code: CodeNonFinite}
	ErrInsufficientData  = &AppError{Code: CodeInsufficientData}
	ErrInvalidInput      = &AppError{Code: CodeInvalidInput}
	ErrConfigInvalid     = &AppError{Code: CodeConfigInvalid}
)

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message
func Newf(code, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an error with additional context, keeping the code of a wrapped AppError
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// GetCode returns the code of the outermost AppError in the chain, or "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string, cause error) *AppError {
	return &AppError{Code: CodeDatabaseError, Message: message, Cause: cause}
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message)
}

func UnsupportedMethod(method string) *AppError {
	return Newf(CodeUnsupportedMethod, "method %s not supported", method)
}

func NonFinite(message string) *AppError {
	return New(CodeNonFinite, message)
}

func InsufficientData(message string) *AppError {
	return New(CodeInsufficientData, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}
