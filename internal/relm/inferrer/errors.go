package inferrer

import (
	"errors"
	"fmt"

	"github.com/conduit-lang/relm/internal/relm/component"
)

var (
	// ErrNoIntrospection is returned when the gateway cannot describe datasets
	ErrNoIntrospection = errors.New("gateway does not support introspection")

	// ErrDatasetNotFound is returned when the queried dataset does not exist
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrUnsupportedType is returned for component types with no compiler
	ErrUnsupportedType = errors.New("type cannot be inferred")
)

// InferenceError reports a failed inference
type InferenceError struct {
	Type  component.Type
	Query Query
	Err   error
}

// Error implements the error interface
func (e *InferenceError) Error() string {
	return fmt.Sprintf("cannot infer %s %q: %v", e.Type.Singular(), e.Query.ID, e.Err)
}

// Unwrap returns the underlying error
func (e *InferenceError) Unwrap() error {
	return e.Err
}

// IsInferenceError returns true if the error is an InferenceError
func IsInferenceError(err error) bool {
	var e *InferenceError
	return errors.As(err, &e)
}
