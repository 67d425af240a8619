package registry

import (
	"errors"
	"fmt"

	"github.com/conduit-lang/relm/internal/relm/component"
)

var (
	// ErrMissing matches every MissingElementError
	ErrMissing = errors.New("element not found")

	ErrGatewayMissing     = errors.New("gateway not found")
	ErrDatasetMissing     = errors.New("dataset not found")
	ErrSchemaMissing      = errors.New("schema not found")
	ErrRelationMissing    = errors.New("relation not found")
	ErrMapperMissing      = errors.New("mapper not found")
	ErrCommandMissing     = errors.New("command not found")
	ErrAssociationMissing = errors.New("association not found")
	ErrPluginMissing      = errors.New("plugin not found")

	// ErrDisconnected is returned by builders after Disconnect
	ErrDisconnected = errors.New("registry is disconnected")

	// errNotFound is the internal lookup failure remapped at the Fetch boundary
	errNotFound = errors.New("key not found")
)

var missingByType = map[component.Type]error{
	component.Gateways:     ErrGatewayMissing,
	component.Datasets:     ErrDatasetMissing,
	component.Schemas:      ErrSchemaMissing,
	component.Relations:    ErrRelationMissing,
	component.Mappers:      ErrMapperMissing,
	component.Commands:     ErrCommandMissing,
	component.Associations: ErrAssociationMissing,
	component.Plugins:      ErrPluginMissing,
}

// MissingElementError is returned when a key cannot be resolved. Type is the
// component type the registry expected.
type MissingElementError struct {
	Type component.Type
	Key  string
	Err  error
}

// Error implements the error interface
func (e *MissingElementError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("%q not found", e.Key)
	}
	return fmt.Sprintf("%s %q not found", e.Type.Singular(), e.Key)
}

// Is matches ErrMissing and the sentinel of the element type
func (e *MissingElementError) Is(target error) bool {
	if target == ErrMissing {
		return true
	}
	sentinel, ok := missingByType[e.Type]
	return ok && target == sentinel
}

// Unwrap returns the underlying lookup error
func (e *MissingElementError) Unwrap() error {
	return e.Err
}

// IsMissing returns true if the error is a MissingElementError
func IsMissing(err error) bool {
	return errors.Is(err, ErrMissing)
}
