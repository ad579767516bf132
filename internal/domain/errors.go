package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeUnsupportedConversion ErrorType = "unsupported_conversion"
	ErrorTypeUnreadableDocument    ErrorType = "unreadable_document"
	ErrorTypeNoTableFound          ErrorType = "no_table_found"
	ErrorTypeEncodingFailure       ErrorType = "encoding_failure"
	ErrorTypeValidation            ErrorType = "validation"
	ErrorTypeAPI                   ErrorType = "api"
	ErrorTypeConfig                ErrorType = "config"
	ErrorTypeIO                    ErrorType = "io"
)

// Sentinels for errors.Is. A DomainError matches the sentinel of its type.
var (
	ErrUnsupportedConversion = &DomainError{Type: ErrorTypeUnsupportedConversion, Message: "unsupported conversion"}
	ErrUnreadableDocument    = &DomainError{Type: ErrorTypeUnreadableDocument, Message: "unreadable document"}
	ErrNoTableFound          = &DomainError{Type: ErrorTypeNoTableFound, Message: "no table found"}
	ErrEncodingFailure       = &DomainError{Type: ErrorTypeEncodingFailure, Message: "encoding failure"}
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError of the same type.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func UnsupportedConversionError(message string) *DomainError {
	return NewError(ErrorTypeUnsupportedConversion, message, nil)
}

func UnreadableDocumentError(message string, err error) *DomainError {
	return NewError(ErrorTypeUnreadableDocument, message, err)
}

func NoTableFoundError(message string) *DomainError {
	return NewError(ErrorTypeNoTableFound, message, nil)
}

func EncodingFailureError(message string, err error) *DomainError {
	return NewError(ErrorTypeEncodingFailure, message, err)
}

func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func APIError(message string, err error) *DomainError {
	return NewError(ErrorTypeAPI, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

// TypeOf returns the ErrorType of the first DomainError in err's chain, or ""
// when there is none.
func TypeOf(err error) ErrorType {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type
	}
	return ""
}

// IsRecoverable reports whether err is a condition callers may present as a
// warning rather than a failure.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrNoTableFound)
}
