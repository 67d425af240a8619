package resolver

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCycle is returned when a builder re-requests a key it is building
	ErrCycle = errors.New("cyclic resolution")

	// ErrUnresolvable is returned when a key has no builder
	ErrUnresolvable = errors.New("key cannot be resolved")
)

// CycleError reports the resolution path that led back to Key
type CycleError struct {
	Key  string
	Path []string
}

// Error implements the error interface
func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic resolution of %q: %s", e.Key, strings.Join(e.Path, " -> "))
}

// Is allows errors.Is(err, ErrCycle)
func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}

// UnresolvableError is returned by Call when no builder was given
type UnresolvableError struct {
	Key string
}

// Error implements the error interface
func (e *UnresolvableError) Error() string {
	return fmt.Sprintf("key %q cannot be resolved", e.Key)
}

// Is allows errors.Is(err, ErrUnresolvable)
func (e *UnresolvableError) Is(target error) bool {
	return target == ErrUnresolvable
}
