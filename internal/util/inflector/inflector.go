// Package inflector wraps word inflection used to derive component namespaces,
// config keys and display names.
package inflector

import (
	"strings"

	"github.com/go-openapi/inflect"
)

// Pluralize returns the plural form of word ("relation" -> "relations")
func Pluralize(word string) string {
	return inflect.Pluralize(word)
}

// Singularize returns the singular form of word ("mappers" -> "mapper")
func Singularize(word string) string {
	return inflect.Singularize(word)
}

// Camelize converts snake_case to CamelCase ("user_accounts" -> "UserAccounts")
func Camelize(word string) string {
	return inflect.Camelize(word)
}

// Classify returns the singular CamelCase name for a plural dataset name
// ("user_accounts" -> "UserAccount")
func Classify(word string) string {
	return inflect.Camelize(inflect.Singularize(word))
}

// NameOptions carries the inputs of a component name inferrer
type NameOptions struct {
	Type        string // component type, singular ("relation", "command")
	Adapter     string // gateway adapter, used for commands
	CommandType string // "create", "update", "delete"
	Namespace   string // leading display namespace, e.g. "Relm"
}

// NameInferrer derives a display name for a component
type NameInferrer func(name string, opts NameOptions) string

var nameInferrers = map[string]NameInferrer{
	"relation": func(name string, opts NameOptions) string {
		return joinNonEmpty(".", opts.Namespace, Pluralize(Camelize(opts.Type)), Camelize(name))
	},
	"command": func(name string, opts NameOptions) string {
		return joinNonEmpty(".",
			opts.Namespace,
			Classify(opts.Adapter),
			"Commands",
			Camelize(opts.CommandType)+"["+Pluralize(Classify(name))+"]",
		)
	},
}

// ComponentName is the default name inferrer. Types without a dedicated rule
// fall back to "<Namespace>.<Types>.<Name>".
func ComponentName(name string, opts NameOptions) string {
	if fn, ok := nameInferrers[opts.Type]; ok {
		return fn(name, opts)
	}
	return joinNonEmpty(".", opts.Namespace, Pluralize(Camelize(opts.Type)), Camelize(name))
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
