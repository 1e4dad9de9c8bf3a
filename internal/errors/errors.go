// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrPatternNotFound  = errors.New("pattern not found")
	ErrPresetImmutable  = errors.New("preset patterns cannot be modified")
	ErrDuplicateID      = errors.New("pattern id already exists")
	ErrInvalidPattern   = errors.New("invalid pattern")
	ErrUnknownMetric    = errors.New("unknown fundamental metric")
	ErrStockNotFound    = errors.New("stock not found")
	ErrNoData           = errors.New("no price data")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrCacheUnavailable = errors.New("results cache unavailable")
)

// PatternError represents a failed operation on a pattern.
type PatternError struct {
	PatternID string
	Op        string
	Err       error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("pattern %s [%s]: %v", e.Op, e.PatternID, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// NewPatternError creates a new PatternError.
func NewPatternError(patternID, op string, err error) *PatternError {
	return &PatternError{
		PatternID: patternID,
		Op:        op,
		Err:       err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets callers match any validation failure with ErrInvalidPattern.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidPattern
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// DetectionError represents a signal detection failure for one stock.
type DetectionError struct {
	StockID string
	Err     error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("detection error [%s]: %v", e.StockID, e.Err)
}

func (e *DetectionError) Unwrap() error {
	return e.Err
}

// NewDetectionError creates a new DetectionError.
func NewDetectionError(stockID string, err error) *DetectionError {
	return &DetectionError{
		StockID: stockID,
		Err:     err,
	}
}

// DataError represents a data-related error.
type DataError struct {
	DataType string
	StockID  string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.StockID, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.StockID, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, stockID, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		StockID:  stockID,
		Message:  message,
		Err:      err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
