package commands

import (
	"context"
	"fmt"
	"maps"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/relm/internal/cli/ui"
	"github.com/conduit-lang/relm/internal/relm/component"
	"github.com/conduit-lang/relm/internal/relm/inferrer"
	"github.com/conduit-lang/relm/internal/relm/registry"
	"github.com/conduit-lang/relm/internal/relm/schema"
)

type inferOptions struct {
	gateway    string
	only       []string
	wrap       string
	asYAML     bool
	invalidate bool
}

// NewInferCommand creates the infer command
func NewInferCommand(opts *rootOptions) *cobra.Command {
	inferOpts := &inferOptions{}

	cmd := &cobra.Command{
		Use:   "infer <dataset>",
		Short: "Infer a schema from a gateway dataset",
		Long: `Introspect a dataset through its gateway and print the inferred schema.

With --yaml the schema is printed as a component file that can be saved under
the auto-registration directory (schemas/<dataset>.yml).`,
		Example: `  relm infer users
  relm infer users --gateway warehouse --only id,email
  relm infer users --yaml > components/schemas/users.yml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			s, err := openSession(ctx, opts)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			return runInfer(ctx, cmd, s, args[0], inferOpts, opts.noColor)
		},
	}

	cmd.Flags().StringVarP(&inferOpts.gateway, "gateway", "g", inferrer.DefaultGateway, "gateway to introspect")
	cmd.Flags().StringSliceVar(&inferOpts.only, "only", nil, "restrict to the listed columns")
	cmd.Flags().StringVar(&inferOpts.wrap, "wrap", "", "alias every attribute as <wrap>_<name>")
	cmd.Flags().BoolVar(&inferOpts.asYAML, "yaml", false, "print a schema component file")
	cmd.Flags().BoolVar(&inferOpts.invalidate, "refresh", false, "drop cached columns for the gateway first")

	return cmd
}

func runInfer(ctx context.Context, cmd *cobra.Command, s *session, dataset string, opts *inferOptions, noColor bool) error {
	if opts.invalidate {
		if err := s.registry.Inferrer().Invalidate(ctx, opts.gateway); err != nil {
			return fmt.Errorf("failed to refresh inference cache: %w", err)
		}
	}

	compilerOpts := make(map[string]any)
	if len(opts.only) > 0 {
		compilerOpts["only"] = opts.only
	}
	if opts.wrap != "" {
		compilerOpts["wrap"] = opts.wrap
	}

	view := s.registry.Schemas().WithOptions(compilerOpts)
	v, err := view.Fetch(ctx, registry.Query{ID: dataset, Dataset: dataset, Gateway: opts.gateway})
	if err != nil {
		if inferrer.IsInferenceError(err) || registry.IsMissing(err) {
			ui.Message{
				Problem:     err.Error(),
				Suggestions: ui.SuggestKeys(opts.gateway, s.cfg.GatewayIDs()),
				Hints:       []string{"Check the gateways section of relm.yml"},
				NoColor:     noColor,
			}.Write(cmd.ErrOrStderr())
			return reportedError{err}
		}
		return err
	}

	c, ok := v.(*component.Component)
	if !ok {
		return fmt.Errorf("unexpected inference result %T", v)
	}

	if opts.asYAML {
		return writeComponentYAML(cmd, c)
	}

	sch, err := schema.FromConfig(dataset, c.Config)
	if err != nil {
		return err
	}
	describe(cmd.OutOrStdout(), "schemas."+dataset, sch, noColor)
	return nil
}

// writeComponentYAML prints c's config in the loader's component file format
func writeComponentYAML(cmd *cobra.Command, c *component.Component) error {
	doc := maps.Clone(c.Config)
	doc["id"] = c.ID

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode component: %w", err)
	}
	return enc.Close()
}
