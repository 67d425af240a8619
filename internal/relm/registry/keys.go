package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/conduit-lang/relm/internal/relm/inferrer"
)

// ErrInvalidKey is returned for values that cannot be used as lookup keys
var ErrInvalidKey = errors.New("invalid lookup key")

// Key is a registry lookup key: Name, Path or Query
type Key interface {
	fmt.Stringer
	lookupKey()
}

// Name is a single segment resolved relative to the registry namespace
type Name string

// Path is a dotted key resolved from the root ("relations.users")
type Path string

// Query requests ad hoc inference of the registry's type; results are not cached
type Query inferrer.Query

func (Name) lookupKey() {}
func (Path) lookupKey() {}
func (Query) lookupKey() {}

func (n Name) String() string { return string(n) }

func (p Path) String() string { return string(p) }

func (q Query) String() string { return inferrer.Query(q).String() }

// KeyOf converts v to a Key. Strings without dots become Names, dotted
// strings Paths; any fmt.Stringer is converted through its string form.
func KeyOf(v any) (Key, error) {
	switch k := v.(type) {
	case Key:
		return k, nil
	case string:
		return keyOfString(k)
	case inferrer.Query:
		return Query(k), nil
	case fmt.Stringer:
		return keyOfString(k.String())
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidKey, v)
}

func keyOfString(s string) (Key, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.Contains(s, ".") {
		return Path(s), nil
	}
	return Name(s), nil
}
