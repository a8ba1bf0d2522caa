package command

import (
	"errors"
	"fmt"
)

// The executor classifies every failure into one of these families. The
// consumer decides retry-vs-fail from the family, never from error text.
var (
	// ErrValidation marks a malformed command or rule definition. Rejected
	// before execution, never retried.
	ErrValidation = errors.New("validation error")

	// ErrResource marks a missing actor/target or insufficient funds. The
	// command fails with a reported reason and is not retried.
	ErrResource = errors.New("resource error")

	// ErrTransient marks store/queue unavailability or a transaction
	// conflict. Retried with backoff up to a bounded count.
	ErrTransient = errors.New("transient error")

	// ErrFatal marks an invariant violation, e.g. a negative resulting
	// resource after all modifiers. Execution aborts with no partial write.
	ErrFatal = errors.New("fatal error")

	// ErrCommandState marks an operation rejected because of the command's
	// current lifecycle state, e.g. cancelling an executing command.
	ErrCommandState = errors.New("command state conflict")
)

// Validationf wraps a formatted message with ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Resourcef wraps a formatted message with ErrResource.
func Resourcef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrResource, fmt.Sprintf(format, args...))
}

// Transientf wraps a formatted message with ErrTransient.
func Transientf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTransient, fmt.Sprintf(format, args...))
}

// Fatalf wraps a formatted message with ErrFatal.
func Fatalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFatal, fmt.Sprintf(format, args...))
}

// Retryable reports whether the consumer should nack and retry rather than
// fail the command outright.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
