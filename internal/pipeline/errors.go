package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrTransient     = errors.New("transient failure")
	ErrIntegrity     = errors.New("integrity violation")
	ErrCompensation  = errors.New("compensation failure")
)

// FailureClass groups pipeline errors by how the caller should react.
type FailureClass string

const (
	// FailureValidation covers illegal transitions and malformed workflow
	// configuration. Nothing was mutated; retrying without a change is
	// pointless.
	FailureValidation FailureClass = "validation"
	// FailureTransient covers storage or database unavailability. Completed
	// steps were rolled back; the whole run is safe to retry.
	FailureTransient FailureClass = "transient"
	// FailureIntegrity covers cross-resource inconsistency detected after
	// individually successful steps. Rolled back, not retryable until the
	// conflicting state is resolved.
	FailureIntegrity FailureClass = "integrity"
	// FailureCompensation covers a rollback that itself failed. A management
	// alert has been raised; manual intervention is pending.
	FailureCompensation FailureClass = "compensation"
)

// Wrap builds an error message that includes step context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, step, operation, message string, err error) error {
	detail := buildDetail(step, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps a pipeline error to its failure class.
func Classify(err error) FailureClass {
	switch {
	case errors.Is(err, ErrCompensation):
		return FailureCompensation
	case errors.Is(err, ErrIntegrity):
		return FailureIntegrity
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return FailureValidation
	default:
		return FailureTransient
	}
}

func buildDetail(step, operation, message string) string {
	parts := make([]string, 0, 3)
	if step = strings.TrimSpace(step); step != "" {
		parts = append(parts, step)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
