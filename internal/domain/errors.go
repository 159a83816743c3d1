package domain

import "fmt"

// Error types for consistent error handling across the assistant core.

// ErrNotFound indicates a resource was not found (or belongs to another user).
// ID accepts both string identifiers (users) and int64 row ids (entries).
type ErrNotFound struct {
	Resource string
	ID       any
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %v", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrStorageUnavailable indicates the relational store could not be reached
// or rejected the operation. Candidates for caller-side retry.
type ErrStorageUnavailable struct {
	Op  string
	Err error
}

func (e *ErrStorageUnavailable) Error() string {
	return fmt.Sprintf("storage unavailable [%s]: %v", e.Op, e.Err)
}

func (e *ErrStorageUnavailable) Unwrap() error {
	return e.Err
}

// ErrClassificationUnavailable indicates the completion service failed during
// a classification that could not fall back to a default.
type ErrClassificationUnavailable struct {
	Stage string
	Err   error
}

func (e *ErrClassificationUnavailable) Error() string {
	return fmt.Sprintf("classification unavailable [%s]: %v", e.Stage, e.Err)
}

func (e *ErrClassificationUnavailable) Unwrap() error {
	return e.Err
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrUnauthorized indicates an invalid or missing identity token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
