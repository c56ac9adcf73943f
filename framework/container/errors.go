package container

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyKey           = errors.New("container: key must not be empty")
	ErrNilFactory         = errors.New("container: factory must not be nil")
	ErrNotBound           = errors.New("container: no binding registered")
	ErrCircularDependency = errors.New("container: circular dependency")
	ErrTypeMismatch       = errors.New("container: resolved value has unexpected type")
	ErrFactoryFailed      = errors.New("container: factory failed")
)

// ResolutionError reports a Get for a key that was never registered.
type ResolutionError struct {
	Key string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("container: no binding registered for [%s]", e.Key)
}

func (e *ResolutionError) Unwrap() error { return ErrNotBound }

// CircularDependencyError reports a key requested again while it was still
// being built. Cycle starts and ends with that key.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return "circular dependency: " + strings.Join(e.Cycle, " -> ")
}

func (e *CircularDependencyError) Unwrap() error { return ErrCircularDependency }

// FactoryError wraps an error returned (or a panic raised) by a factory.
type FactoryError struct {
	Key string
	Err error
}

func (e *FactoryError) Error() string {
	return fmt.Sprintf("container: factory for [%s] failed: %v", e.Key, e.Err)
}

func (e *FactoryError) Unwrap() []error { return []error{ErrFactoryFailed, e.Err} }

// isContainerError reports whether err already describes a resolution
// failure, in which case it propagates to the caller unchanged.
func isContainerError(err error) bool {
	var re *ResolutionError
	var ce *CircularDependencyError
	var fe *FactoryError
	return errors.As(err, &re) || errors.As(err, &ce) || errors.As(err, &fe)
}
