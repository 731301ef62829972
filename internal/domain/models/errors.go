package models

import (
	"errors"
	"fmt"
)

// DataError marks a structurally invalid input. It is fatal for the current tick only.
type DataError struct {
	Field  string
	Reason string
}

func (e *DataError) Error() string {
	if e.Field == "" {
		return "data error: " + e.Reason
	}
	return fmt.Sprintf("data error: %s: %s", e.Field, e.Reason)
}

// NewDataError builds a DataError with a formatted reason.
func NewDataError(field, format string, a ...interface{}) *DataError {
	return &DataError{Field: field, Reason: fmt.Sprintf(format, a...)}
}

// InsufficientHistoryError reports that neutral defaults replaced a computation.
type InsufficientHistoryError struct {
	Component string
	Have      int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s (have %d)", e.Component, e.Have)
}

// ConfigError is returned while loading configuration; the pipeline never sees it.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Key, e.Reason)
}

// IsDataError reports whether err wraps a DataError.
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}
