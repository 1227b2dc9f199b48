package cephtools

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every *ConfigurationError with errors.Is.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrUndefinedRate is returned when a zero FIT rate is asked for a finite MTTF.
	ErrUndefinedRate = errors.New("undefined for a zero failure rate")
)

// ConfigurationError reports an invalid construction parameter.
type ConfigurationError struct {
	Model  string
	Field  string
	Reason string
}

func (err *ConfigurationError) Error() string {
	if err.Model == "" {
		return fmt.Sprintf("invalid configuration (field: %s): %s", err.Field, err.Reason)
	}
	return fmt.Sprintf("invalid %s configuration (field: %s): %s", err.Model, err.Field, err.Reason)
}

func (err *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// ConfigError is a shorthand used by model constructors.
func ConfigError(model, field, format string, args ...any) error {
	return &ConfigurationError{Model: model, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// CheckNonNegative returns a configuration error when value is negative.
func CheckNonNegative(model, field string, value float64) error {
	if value < 0 {
		return ConfigError(model, field, "must not be negative, got %g", value)
	}
	return nil
}
