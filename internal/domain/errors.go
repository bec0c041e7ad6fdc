package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeOperation  ErrorType = "operation"
	ErrorTypeDocument   ErrorType = "document"
	ErrorTypeSelection  ErrorType = "selection"
	ErrorTypeExport     ErrorType = "export"
	ErrorTypeRender     ErrorType = "render"
)

// Sentinel errors shared across packages.
var (
	ErrSelectionTooSmall = errors.New("selection too small")
	ErrNoFrame           = errors.New("no rendered frame")
	ErrNoPress           = errors.New("release without press")
	ErrPageOutOfRange    = errors.New("page out of range")
	ErrUnsupportedImage  = errors.New("unsupported image")
	ErrNoDocument        = errors.New("no document open")
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

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// IsType reports whether err carries a DomainError of the given type anywhere in its chain.
func IsType(err error, errType ErrorType) bool {
	var de *DomainError
	for err != nil {
		if !errors.As(err, &de) {
			return false
		}
		if de.Type == errType {
			return true
		}
		err = de.Err
	}
	return false
}

// Common error constructors
func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

func OperationError(message string, err error) *DomainError {
	return NewError(ErrorTypeOperation, message, err)
}

func DocumentError(message string, err error) *DomainError {
	return NewError(ErrorTypeDocument, message, err)
}

func SelectionError(message string, err error) *DomainError {
	return NewError(ErrorTypeSelection, message, err)
}

func ExportError(message string, err error) *DomainError {
	return NewError(ErrorTypeExport, message, err)
}

func RenderError(message string, err error) *DomainError {
	return NewError(ErrorTypeRender, message, err)
}
