package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrAdapterNotFound is returned when no factory is registered for an adapter
	ErrAdapterNotFound = errors.New("adapter not found")

	// ErrDatasetNotFound is returned by introspection for unknown datasets
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrDisconnected is returned when a disconnected gateway is used
	ErrDisconnected = errors.New("gateway is disconnected")
)

// AdapterLoadError is returned when an adapter cannot be loaded.
// The runtime treats it as recoverable during bulk adapter loading.
type AdapterLoadError struct {
	Adapter string
}

// Error implements the error interface
func (e *AdapterLoadError) Error() string {
	return fmt.Sprintf("failed to load adapter %q: %v", e.Adapter, ErrAdapterNotFound)
}

// Unwrap returns ErrAdapterNotFound
func (e *AdapterLoadError) Unwrap() error {
	return ErrAdapterNotFound
}

// IsAdapterLoadError returns true if the error is an AdapterLoadError
func IsAdapterLoadError(err error) bool {
	var e *AdapterLoadError
	return errors.As(err, &e)
}
