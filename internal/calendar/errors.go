// Package calendar is the single boundary for reading and mutating a
// doctor's external calendar. It validates event parameters, detects slot
// conflicts before every write, and maps provider failures into a small
// error taxonomy the orchestration layer can match on.
package calendar

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classifying gateway failures. Callers match with errors.Is.
var (
	// ErrSlotConflict indicates the requested window overlaps an active event.
	ErrSlotConflict = errors.New("slot already booked")
	// ErrNotFound indicates the referenced event or calendar does not exist.
	ErrNotFound = errors.New("event not found")
	// ErrAuth indicates a credential or permission failure at the provider.
	ErrAuth = errors.New("calendar access denied")
	// ErrProvider indicates a transport or otherwise unclassified provider failure.
	ErrProvider = errors.New("calendar provider failure")
)

// ValidationError reports event parameters that failed shape or range checks.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Problems, ", "))
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
