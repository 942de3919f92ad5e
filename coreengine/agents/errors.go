package agents

import (
	"errors"
	"fmt"
)

var (
	// ErrPrerequisiteMissing matches errors raised when an upstream context key or artifact is absent.
	ErrPrerequisiteMissing = errors.New("prerequisite missing")
	// ErrDomainFailure matches errors raised when a domain function reports a non-success status.
	ErrDomainFailure = errors.New("domain failure")
)

// PrerequisiteMissingError reports a context key that was never set, or an
// artifact it names that could not be loaded.
type PrerequisiteMissingError struct {
	Key      string
	Artifact string
	Cause    error
}

func (e *PrerequisiteMissingError) Error() string {
	if e.Artifact != "" {
		return fmt.Sprintf("prerequisite artifact '%s' (%s) could not be loaded: %v", e.Artifact, e.Key, e.Cause)
	}
	return fmt.Sprintf("prerequisite '%s' not found in session state", e.Key)
}

func (e *PrerequisiteMissingError) Is(target error) bool { return target == ErrPrerequisiteMissing }

func (e *PrerequisiteMissingError) Unwrap() error { return e.Cause }

// NewPrerequisiteMissingError creates an error for an unset context key.
func NewPrerequisiteMissingError(key string) *PrerequisiteMissingError {
	return &PrerequisiteMissingError{Key: key}
}

// DomainFailureError reports a domain function that returned an error status
// or a result the stage could not use.
type DomainFailureError struct {
	Tool    string
	Message string
	Cause   error
}

func (e *DomainFailureError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("domain function %s failed: %s: %v", e.Tool, e.Message, e.Cause)
	}
	return fmt.Sprintf("domain function %s failed: %s", e.Tool, e.Message)
}

func (e *DomainFailureError) Is(target error) bool { return target == ErrDomainFailure }

func (e *DomainFailureError) Unwrap() error { return e.Cause }

// NewDomainFailureError creates a DomainFailureError.
func NewDomainFailureError(tool, message string, cause error) *DomainFailureError {
	return &DomainFailureError{Tool: tool, Message: message, Cause: cause}
}
