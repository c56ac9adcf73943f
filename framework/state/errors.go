package state

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyName       = errors.New("state: mutation name must not be empty")
	ErrNilMutation     = errors.New("state: mutation must not be nil")
	ErrUnknownMutation = errors.New("state: unknown mutation")
	ErrEmptyPath       = errors.New("state: path must not be empty")
	ErrNotAMap         = errors.New("state: path segment is not a map")
	ErrPersist         = errors.New("state: persist failed")
	ErrMutationPanic   = errors.New("state: mutation panicked")
)

// UnknownMutationError reports a commit to a name with no registered mutation.
type UnknownMutationError struct {
	Name string
}

func (e *UnknownMutationError) Error() string {
	return fmt.Sprintf("state: no mutation registered for [%s]", e.Name)
}

func (e *UnknownMutationError) Unwrap() error { return ErrUnknownMutation }
