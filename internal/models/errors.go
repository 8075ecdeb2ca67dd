package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInputValidation  = errors.New("input validation error")
	ErrExternalService  = errors.New("external service error")
	ErrOutputValidation = errors.New("output validation error")
)

// ValidationError reports missing or malformed request fields.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", ErrInputValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInputValidation, strings.Join(e.Fields, ", "), e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInputValidation }

// ExternalServiceError is returned when the classification capability is
// unreachable or keeps failing after retries.
type ExternalServiceError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: provider %s failed after %d attempt(s): %v", ErrExternalService, e.Provider, e.Attempts, e.Err)
}

func (e *ExternalServiceError) Unwrap() []error { return []error{ErrExternalService, e.Err} }

// OutputValidationError is returned when the model output does not match the
// expected shape. Violations lists every problem found.
type OutputValidationError struct {
	Stage      string
	Violations []string
}

func (e *OutputValidationError) Error() string {
	return fmt.Sprintf("%s: %s output rejected: %s", ErrOutputValidation, e.Stage, strings.Join(e.Violations, "; "))
}

func (e *OutputValidationError) Unwrap() error { return ErrOutputValidation }
