package bus

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyName      = errors.New("bus: name must not be empty")
	ErrNilHandler     = errors.New("bus: handler must not be nil")
	ErrUnknownCommand = errors.New("bus: no handler registered")
	ErrValidation     = errors.New("bus: validation failed")
	ErrPayloadType    = errors.New("bus: payload has unexpected type")
	ErrResultType     = errors.New("bus: result has unexpected type")
	ErrWrongKind      = errors.New("bus: registration does not match bus kind")
	ErrDecode         = errors.New("bus: payload could not be decoded")
)

// UnknownCommandError reports a dispatch to a name with no registration.
type UnknownCommandError struct {
	Kind Kind
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("bus: no %s handler registered for [%s]", e.Kind, e.Name)
}

func (e *UnknownCommandError) Unwrap() error { return ErrUnknownCommand }

// ValidationError reports a payload rejected by the registration's validator.
// Messages are the validator's human-readable reasons, in order.
type ValidationError struct {
	Name     string
	Messages []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("bus: validation failed for [%s]: %s", e.Name, strings.Join(e.Messages, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
