package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/relm/internal/cli/ui"
	"github.com/conduit-lang/relm/internal/relm/component"
	"github.com/conduit-lang/relm/internal/relm/gateway"
	"github.com/conduit-lang/relm/internal/relm/registry"
	"github.com/conduit-lang/relm/internal/relm/relation"
	"github.com/conduit-lang/relm/internal/relm/schema"
	"github.com/conduit-lang/relm/internal/util/inflector"
)

// NewInspectCommand creates the inspect command
func NewInspectCommand(opts *rootOptions) *cobra.Command {
	var typeFilter string

	cmd := &cobra.Command{
		Use:   "inspect [key]",
		Short: "List registered components or describe one key",
		Long: `List every component declared in relm.yml and the auto-registration
directory, or resolve one key and describe the built object.

Keys are dotted paths ("relations.users", "commands.users.create") or plain
ids looked up under --type.`,
		Example: `  relm inspect
  relm inspect --type relations
  relm inspect relations.users
  relm inspect users --type relations`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var t component.Type
			if typeFilter != "" {
				parsed, err := component.ParseType(typeFilter)
				if err != nil {
					return err
				}
				t = parsed
			}

			s, err := openSession(ctx, opts)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				return listComponents(out, s, t, opts.noColor)
			}
			return describeKey(ctx, cmd, s, t, args[0], opts.noColor)
		},
	}

	cmd.Flags().StringVarP(&typeFilter, "type", "t", "", "component type (relations, commands, ...)")

	return cmd
}

// listComponents renders every declared component, optionally of one type
func listComponents(w io.Writer, s *session, t component.Type, noColor bool) error {
	reg := s.registry
	if t != "" {
		reg = reg.ScopedAs(t, string(t))
	}

	ui.Header(w, "Registry", noColor)
	kv := ui.NewKeyValueTable(w, noColor)
	kv.AddRow("view", reg.String())
	kv.AddRow("gateways", strings.Join(s.cfg.GatewayIDs(), ", "))
	kv.AddRow("plugins", strings.Join(s.runtime.Enabled(), ", "))
	kv.AddRow("inference cache", s.cfg.InferenceCache.Backend)
	kv.Render()
	fmt.Fprintln(w)

	table := ui.NewTable(w, noColor, "KEY", "TYPE", "NAME", "BUILT")
	for _, ct := range component.CoreTypes {
		if t != "" && ct != t {
			continue
		}
		for _, c := range s.runtime.Components().All(ct) {
			table.AddRow(c.Key(), string(c.Type), displayName(s, c), strconv.FormatBool(c.Built()))
		}
	}

	if table.Len() == 0 {
		fmt.Fprintln(w, "No components registered")
		return nil
	}
	table.Render()
	return nil
}

// displayName derives the inferred display name of a component
func displayName(s *session, c *component.Component) string {
	name := c.ID
	opts := inflector.NameOptions{Type: c.Type.Singular()}

	switch c.Type {
	case component.Commands:
		relationID := c.Parent()
		name = relationID
		opts.CommandType = c.StringOption("type", c.ID)
		gatewayID := relationGateway(s, relationID)
		opts.Adapter = s.adapterOf(gatewayID)
	case component.Relations:
		name = c.StringOption("dataset", c.ID)
	}
	return inflector.ComponentName(name, opts)
}

// relationGateway returns the gateway id a declared relation reads from
func relationGateway(s *session, relationID string) string {
	c, ok := s.runtime.Components().Get(component.Relations, relationID)
	if !ok {
		return ""
	}
	return c.StringOption("gateway", "")
}

// describeKey resolves key and renders the built object
func describeKey(ctx context.Context, cmd *cobra.Command, s *session, t component.Type, key string, noColor bool) error {
	reg := s.registry
	lookup := registry.Key(registry.Path(key))
	if t != "" {
		reg = reg.ScopedAs(t, string(t))
		if !strings.Contains(key, ".") {
			lookup = registry.Name(key)
		}
	} else if k, err := registry.KeyOf(key); err == nil {
		lookup = k
	}

	v, err := reg.Fetch(ctx, lookup)
	if err != nil {
		if !registry.IsMissing(err) {
			return err
		}
		ui.Message{
			Problem:     err.Error(),
			Suggestions: ui.SuggestKeys(key, reg.Root().Keys()),
			Hints:       []string{"List keys: relm inspect"},
			NoColor:     noColor,
		}.Write(cmd.ErrOrStderr())
		return reportedError{err}
	}

	describe(cmd.OutOrStdout(), key, v, noColor)
	return nil
}

// describe renders a built object by kind
func describe(w io.Writer, key string, v any, noColor bool) {
	ui.Header(w, key, noColor)
	kv := ui.NewKeyValueTable(w, noColor)

	switch obj := v.(type) {
	case *relation.Relation:
		kv.AddRow("relation", obj.Name)
		kv.AddRow("gateway", obj.GatewayID)
		kv.AddRow("adapter", obj.Adapter())
		kv.AddRow("dataset", obj.DatasetName)
		kv.AddRow("primary key", strings.Join(obj.Schema.PrimaryKey(), ", "))
		kv.Render()
		fmt.Fprintln(w)
		renderAttributes(w, obj.Schema, noColor)
		if len(obj.Associations) > 0 {
			fmt.Fprintln(w)
			table := ui.NewTable(w, noColor, "ASSOCIATION", "KIND", "TARGET")
			for _, a := range obj.Associations {
				table.AddRow(a.Alias(), a.Kind, a.Target)
			}
			table.Render()
		}
	case *schema.Schema:
		kv.AddRow("schema", obj.Name)
		kv.AddRow("dataset", obj.Dataset)
		kv.AddRow("inferred", strconv.FormatBool(obj.Inferred))
		kv.Render()
		fmt.Fprintln(w)
		renderAttributes(w, obj, noColor)
	case *relation.Command:
		kv.AddRow("command", obj.ID)
		kv.AddRow("type", obj.Kind)
		kv.AddRow("result", obj.Result)
		kv.AddRow("relation", obj.Relation.Name)
		kv.Render()
	case *relation.Mapper:
		kv.AddRow("mapper", obj.ID)
		kv.AddRow("relation", obj.Relation)
		kv.AddRow("only", strings.Join(obj.Only, ", "))
		kv.Render()
	case *relation.Association:
		kv.AddRow("association", obj.Key())
		kv.AddRow("name", obj.Name)
		kv.AddRow("kind", obj.Kind)
		kv.AddRow("target", obj.Target)
		kv.Render()
	case gateway.Gateway:
		kv.AddRow("adapter", obj.Adapter())
		kv.Render()
	case *registry.Registry:
		kv.AddRow("namespace", obj.Namespace())
		kv.AddRow("keys", strings.Join(obj.Keys(), ", "))
		kv.Render()
	default:
		kv.AddRow("value", fmt.Sprintf("%v", v))
		kv.Render()
	}
}

func renderAttributes(w io.Writer, s *schema.Schema, noColor bool) {
	table := ui.NewTable(w, noColor, "ATTRIBUTE", "TYPE", "PRIMARY KEY", "NULLABLE", "ALIAS")
	for _, a := range s.Attributes {
		table.AddRow(a.Name, a.Type, strconv.FormatBool(a.PrimaryKey), strconv.FormatBool(a.Nullable), a.Alias)
	}
	table.Render()
}
