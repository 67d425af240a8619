package component

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateComponent is returned when a (type, key) pair is registered twice
	ErrDuplicateComponent = errors.New("duplicate component")

	// ErrFrozen is returned when adding to a store after Freeze
	ErrFrozen = errors.New("component store is frozen")

	// ErrInvalidNamespace is returned when a relation-scoped component is not
	// namespaced under a relation
	ErrInvalidNamespace = errors.New("invalid component namespace")

	// ErrMissingID is returned when a component has no id
	ErrMissingID = errors.New("component id is required")

	// ErrUnknownType is returned for a type tag outside CoreTypes
	ErrUnknownType = errors.New("unknown component type")
)

// DuplicateComponentError names the component that was already registered
type DuplicateComponentError struct {
	Type Type
	Key  string
}

// Error implements the error interface
func (e *DuplicateComponentError) Error() string {
	return fmt.Sprintf("duplicate component: %s %q is already registered", e.Type.Singular(), e.Key)
}

// Is allows errors.Is(err, ErrDuplicateComponent)
func (e *DuplicateComponentError) Is(target error) bool {
	return target == ErrDuplicateComponent
}

// IsDuplicate returns true if the error is a DuplicateComponentError
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateComponent)
}
