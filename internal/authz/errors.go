package authz

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownPermission reports that the principal holds no record for
	// the resolved permission ID.
	ErrUnknownPermission = errors.New("permission not held by principal")
	// ErrAmbiguousPermission reports that no permission ID was explicitly
	// requested and the merged declarations did not yield exactly one.
	ErrAmbiguousPermission = errors.New("permission declaration must resolve to exactly one id")
	// ErrUnresolvedController reports that a named controller reference was
	// not found in the registry.
	ErrUnresolvedController = errors.New("controller not found in registry")
)

// ControllerInitError reports that a controller factory failed. It is a
// deployment misconfiguration, never retried and never masked as a denial.
type ControllerInitError struct {
	Factory Factory
	Err     error
}

func (e *ControllerInitError) Error() string {
	return fmt.Sprintf("constructing controller from %T: %v", e.Factory, e.Err)
}

func (e *ControllerInitError) Unwrap() error { return e.Err }

// IsConfigError reports whether err indicates deployment misconfiguration
// rather than a legitimate access refusal or a missing principal. Callers
// should surface these to operators instead of folding them into a generic
// forbidden response.
func IsConfigError(err error) bool {
	var initErr *ControllerInitError
	return errors.Is(err, ErrAmbiguousPermission) ||
		errors.Is(err, ErrUnresolvedController) ||
		errors.As(err, &initErr)
}
