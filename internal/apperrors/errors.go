package apperrors

import (
	"errors"
	"fmt"
)

// RetryableError indicates an error that might be resolved by retrying.
type RetryableError struct {
	Err error
}

// Error implements the error interface.
func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

// Unwrap returns the wrapped error.
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryable wraps the given error as a RetryableError, adding a message.
// It uses fmt.Errorf with %w to maintain the error chain.
func NewRetryable(err error, message string, args ...interface{}) error {
	format := message + ": %w"
	allArgs := append(args, err)
	return &RetryableError{Err: fmt.Errorf(format, allArgs...)}
}

// FatalError indicates an error that is unlikely to be resolved by retrying.
type FatalError struct {
	Err error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

// Unwrap returns the wrapped error.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// NewFatal wraps the given error as a FatalError, adding a message.
// It uses fmt.Errorf with %w to maintain the error chain.
func NewFatal(err error, message string, args ...interface{}) error {
	format := message + ": %w"
	allArgs := append(args, err)
	return &FatalError{Err: fmt.Errorf(format, allArgs...)}
}

// --- Standard Error Definitions ---

// These sentinel errors define the application-level error taxonomy.
// They can be checked using errors.Is and may be wrapped by RetryableError
// or FatalError depending on the context where they are handled.
var (
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidTenant indicates the tenant identifier is missing or malformed.
	// Fatal to the call, never retried.
	ErrInvalidTenant = errors.New("invalid tenant")
	// ErrAlreadyAssigned indicates a pickup lost the assignment race: another
	// agent already claimed the handoff. Expected under concurrency, not an
	// operational error.
	ErrAlreadyAssigned = errors.New("handoff already assigned")
	// ErrHandoffNotActive indicates an operation that requires an active
	// handoff hit one that is pending, resolved or expired. The caller's
	// view is stale and should be refreshed.
	ErrHandoffNotActive = errors.New("handoff not active")
	// ErrCapacityExceeded indicates the agent is at its concurrent-handoff
	// capacity. Surfaced distinctly from ErrAlreadyAssigned so UIs can
	// explain why the pickup failed.
	ErrCapacityExceeded = errors.New("agent capacity exceeded")
	// ErrAgentUnavailable indicates the agent is busy or offline and may not
	// receive assignments regardless of load.
	ErrAgentUnavailable = errors.New("agent unavailable")
	// ErrStorageUnavailable indicates a transient storage failure. Safe to
	// retry the whole operation since all writes are conditional.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrValidation indicates failure during data validation.
	ErrValidation = errors.New("validation failed")
	// ErrDatabase indicates a general database interaction error.
	ErrDatabase = errors.New("database error")
	// ErrNATS indicates a general NATS communication error.
	ErrNATS = errors.New("nats communication error")
	// ErrUnauthorized indicates an authorization failure.
	ErrUnauthorized = errors.New("unauthorized access")
	// ErrDuplicate indicates a conflict due to duplicate data (e.g., unique constraint).
	ErrDuplicate = errors.New("duplicate resource")
	// ErrBadRequest indicates a malformed or invalid request from the client/caller.
	ErrBadRequest = errors.New("bad request")
)

// --- Helper functions for checking ---

// IsRetryable checks if the error is a RetryableError or wraps one.
func IsRetryable(err error) bool {
	var target *RetryableError
	return errors.As(err, &target)
}

// IsFatal checks if the error is a FatalError or wraps one.
func IsFatal(err error) bool {
	var target *FatalError
	return errors.As(err, &target)
}

// --- Specific Standard Error Checkers ---

// IsNotFoundError checks if the error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidTenantError checks if the error is or wraps ErrInvalidTenant.
func IsInvalidTenantError(err error) bool {
	return errors.Is(err, ErrInvalidTenant)
}

// IsAlreadyAssignedError checks if the error is or wraps ErrAlreadyAssigned.
func IsAlreadyAssignedError(err error) bool {
	return errors.Is(err, ErrAlreadyAssigned)
}

// IsHandoffNotActiveError checks if the error is or wraps ErrHandoffNotActive.
func IsHandoffNotActiveError(err error) bool {
	return errors.Is(err, ErrHandoffNotActive)
}

// IsCapacityExceededError checks if the error is or wraps ErrCapacityExceeded.
func IsCapacityExceededError(err error) bool {
	return errors.Is(err, ErrCapacityExceeded)
}

// IsAgentUnavailableError checks if the error is or wraps ErrAgentUnavailable.
func IsAgentUnavailableError(err error) bool {
	return errors.Is(err, ErrAgentUnavailable)
}

// IsStorageUnavailableError checks if the error is or wraps ErrStorageUnavailable.
func IsStorageUnavailableError(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// IsValidationError checks if the error is or wraps ErrValidation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsDatabaseError checks if the error is or wraps ErrDatabase.
func IsDatabaseError(err error) bool {
	return errors.Is(err, ErrDatabase)
}

// IsDuplicateError checks if the error is or wraps ErrDuplicate.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsBadRequestError checks if the error is or wraps ErrBadRequest.
func IsBadRequestError(err error) bool {
	return errors.Is(err, ErrBadRequest)
}
