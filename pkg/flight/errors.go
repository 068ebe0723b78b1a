package flight

import (
	"errors"
	"fmt"
)

var (
	// ErrBringUp is returned when a required collaborator could
	// not be initialised.
	ErrBringUp = errors.New("bring-up failed")

	// ErrMissingCollaborator is returned when a required
	// collaborator was never configured.
	ErrMissingCollaborator = errors.New("required collaborator not configured")

	// ErrNoFix is returned when bring-up is abandoned while still
	// waiting for a position fix.
	ErrNoFix = errors.New("no position fix")
)

// BringUpError describes the collaborator that could not be
// brought up.
type BringUpError struct {
	Component string
	Attempts  int
	Err       error
}

func (e *BringUpError) Error() string {
	return fmt.Sprintf("initialising %s failed after %d attempts: %v", e.Component, e.Attempts, e.Err)
}

// Unwrap allows matching on both ErrBringUp and the cause.
func (e *BringUpError) Unwrap() []error { return []error{ErrBringUp, e.Err} }
