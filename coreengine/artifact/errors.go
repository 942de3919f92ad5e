package artifact

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("artifact not found")

// NotFoundError is returned when a name was never saved in a scope or the
// requested version does not exist.
type NotFoundError struct {
	Name    string
	Version int
}

func (e *NotFoundError) Error() string {
	if e.Version == Latest {
		return fmt.Sprintf("artifact '%s' not found", e.Name)
	}
	return fmt.Sprintf("artifact '%s' version %d not found", e.Name, e.Version)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(name string, version int) *NotFoundError {
	return &NotFoundError{Name: name, Version: version}
}
