package proxyfactory

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is the parent of every construction error
	ErrConfiguration = errors.New("invalid proxy configuration")

	// ErrMissingDir is returned when no definition directory is configured
	ErrMissingDir = fmt.Errorf("%w: proxy directory is empty", ErrConfiguration)

	// ErrMissingNamespace is returned when no namespace is configured
	ErrMissingNamespace = fmt.Errorf("%w: proxy namespace is empty", ErrConfiguration)

	// ErrInvalidNamespace is returned when the namespace is not a valid package name
	ErrInvalidNamespace = fmt.Errorf("%w: proxy namespace is not a valid package name", ErrConfiguration)

	// ErrMissingLoader is returned when a factory is created without a loader provider
	ErrMissingLoader = fmt.Errorf("%w: loader provider is nil", ErrConfiguration)

	// ErrDefinitionNotLoaded is returned when a definition exists on disk but was not
	// compiled into the running program
	ErrDefinitionNotLoaded = errors.New("proxy definition is not compiled into this program")
)

// WriteError is returned when a definition cannot be written to storage
type WriteError struct {
	Path string
	Err  error
}

// Error implements the error interface
func (e *WriteError) Error() string {
	return fmt.Sprintf("writing proxy definition %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying I/O error
func (e *WriteError) Unwrap() error {
	return e.Err
}
