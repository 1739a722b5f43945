package services

import "fmt"

// ValidationError is returned for input the caller has to fix. The message is shown verbatim.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// GenerationError means the model could not be driven to an answer: retries ran out or a
// fatal upstream error occurred. No partial output accompanies it.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
