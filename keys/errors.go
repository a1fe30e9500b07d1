package keys

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrInvalidArgument is returned when a required entity or entry is nil.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidState is returned when a key does not have the shape the caller asked for.
	ErrInvalidState = errors.New("invalid state")
)

// CompositeKeyError is returned by the single-key accessors when the
// primary key does not consist of exactly one part.
type CompositeKeyError struct {
	Type  reflect.Type
	Parts int
}

func (e *CompositeKeyError) Error() string {
	return fmt.Sprintf("entity %s: expected a single key part, found %d", e.Type, e.Parts)
}

func (e *CompositeKeyError) Is(target error) bool {
	return target == ErrInvalidState
}

// KeyTypeError is returned when a single key value cannot be cast to the
// requested type.
type KeyTypeError struct {
	Type     reflect.Type
	Property string
	Got      reflect.Type
	Want     reflect.Type
}

func (e *KeyTypeError) Error() string {
	return fmt.Sprintf("entity %s: key %s is %v, not %v", e.Type, e.Property, e.Got, e.Want)
}

func (e *KeyTypeError) Is(target error) bool {
	return target == ErrInvalidState
}

func invalidArgument(name string) error {
	return fmt.Errorf("%w: %s is nil", ErrInvalidArgument, name)
}
