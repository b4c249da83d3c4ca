package proxy

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAttribute is returned when a proxy has no persisted attribute of the given name
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrAttributeType is returned when a value cannot be assigned to an attribute
	ErrAttributeType = errors.New("attribute type mismatch")

	// ErrSerializationHook is returned when a custom MarshalJSON does not produce a JSON object
	ErrSerializationHook = errors.New("serialization hook must produce a JSON object")

	// ErrNotRegistered is returned when no definition is registered under a name
	ErrNotRegistered = errors.New("proxy definition not registered")
)

// LoadError wraps a loader failure with the proxy it was loading
type LoadError struct {
	Class      string
	Identifier string
	Err        error
}

// Error implements the error interface
func (e *LoadError) Error() string {
	return fmt.Sprintf("proxy: loading %s %q: %v", e.Class, e.Identifier, e.Err)
}

// Unwrap returns the loader error
func (e *LoadError) Unwrap() error {
	return e.Err
}

// UnknownAttribute builds the error returned by GetAttribute and SetAttribute for unknown names
func UnknownAttribute(class, name string) error {
	return fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, class, name)
}

// AttributeTypeError builds the error returned by SetAttribute when value has the wrong type
func AttributeTypeError(class, name string, value any) error {
	return fmt.Errorf("%w: %s.%s cannot hold %T", ErrAttributeType, class, name, value)
}
