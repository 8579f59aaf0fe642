package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks the configuration for values that cannot work.
func (c Config) Validate() ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(c.Namespace) == "" {
		errs.Add("namespace", "must not be empty", c.Namespace)
	} else if strings.Contains(c.Namespace, ":") {
		// ':' is the key separator in derived storage keys.
		errs.Add("namespace", "must not contain ':'", c.Namespace)
	}

	if c.Callback.Port < 1 || c.Callback.Port > 65535 {
		errs.Add("callback.port", "must be between 1 and 65535", c.Callback.Port)
	}
	if c.Callback.Host == "" {
		errs.Add("callback.host", "must not be empty", c.Callback.Host)
	}
	if !strings.HasPrefix(c.Callback.Path, "/") {
		errs.Add("callback.path", "must start with '/'", c.Callback.Path)
	}

	if c.Flow.PendingTTL <= 0 {
		errs.Add("flow.pendingTTL", "must be positive", c.Flow.PendingTTL.AsDuration().String())
	}
	if c.Flow.OutcomeTTL <= 0 {
		errs.Add("flow.outcomeTTL", "must be positive", c.Flow.OutcomeTTL.AsDuration().String())
	}
	if c.Flow.PollInterval <= 0 {
		errs.Add("flow.pollInterval", "must be positive", c.Flow.PollInterval.AsDuration().String())
	}
	if c.Flow.WaitTimeout <= 0 {
		errs.Add("flow.waitTimeout", "must be positive", c.Flow.WaitTimeout.AsDuration().String())
	}
	if c.Flow.GraceDelay <= 0 {
		errs.Add("flow.graceDelay", "must be positive", c.Flow.GraceDelay.AsDuration().String())
	}

	return errs
}
