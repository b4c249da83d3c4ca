package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/refproxy/internal/cli/ui"
	"github.com/conduit-lang/refproxy/internal/orm/codegen"
	"github.com/conduit-lang/refproxy/internal/orm/schema"
)

// classView is the inspect output of one class
type classView struct {
	Class             string          `yaml:"class"`
	Proxy             string          `yaml:"proxy"`
	Identifier        string          `yaml:"identifier"`
	MappedSuperclass  bool            `yaml:"mapped_superclass,omitempty"`
	SerializationHook bool            `yaml:"serialization_hook"`
	Attributes        []attributeView `yaml:"attributes"`
	Behaviors         []string        `yaml:"behaviors,omitempty"`
	Warnings          []string        `yaml:"warnings,omitempty"`
}

type attributeView struct {
	Name string          `yaml:"name"`
	Type *schema.TypeRef `yaml:"type,omitempty"`
}

// NewInspectCommand creates the inspect command
func NewInspectCommand(opts *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "inspect [class]",
		Short: "Show the proxy shape of mapped classes",
		Long: `Without arguments, list every mapped class with its proxy name.
With a class, show its persisted attributes, forwarded behaviors and any members the
proxy cannot forward.

Examples:
  refproxy inspect
  refproxy inspect User
  refproxy inspect example.com/app/model.User --format yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "table" && format != "yaml" {
				return fmt.Errorf("unknown format %q (want table or yaml)", format)
			}

			env, err := newEnvironment(cmd, opts)
			if err != nil {
				return err
			}
			defer env.close()

			catalog, err := env.catalog(cmd.Context())
			if err != nil {
				return err
			}

			synth := codegen.NewProxyGenerator(env.cfg.Proxy.Namespace)

			var views []classView
			for _, desc := range catalog.All() {
				if len(args) == 1 && !matchesClass(desc, args) {
					continue
				}
				view, err := newClassView(synth, codegen.Inspect(desc))
				if err != nil {
					return err
				}
				views = append(views, view)
			}

			if len(args) == 1 && len(views) == 0 {
				ui.ClassNotFound(args[0], catalog.List(), env.noColor).Write(env.errOut)
				return fmt.Errorf("%w: %s", schema.ErrClassNotFound, args[0])
			}

			if format == "yaml" {
				enc := yaml.NewEncoder(env.out)
				enc.SetIndent(2)
				defer enc.Close()
				if len(args) == 1 {
					return enc.Encode(views[0])
				}
				return enc.Encode(views)
			}

			if len(args) == 1 {
				renderClass(env, views[0])
				return nil
			}

			table := ui.NewTable(env.out, env.noColor, "Class", "Proxy", "Identifier", "Attributes", "Behaviors")
			for _, view := range views {
				proxyName := view.Proxy
				if view.MappedSuperclass {
					proxyName = "(mapped superclass)"
				}
				table.AddRow(view.Class, proxyName, view.Identifier,
					strconv.Itoa(len(view.Attributes)), strconv.Itoa(len(view.Behaviors)))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table or yaml")

	return cmd
}

func newClassView(synth *codegen.ProxyGenerator, shape *codegen.ClassShape) (classView, error) {
	view := classView{
		Class:             shape.QualifiedName,
		Proxy:             codegen.MangledName(shape.QualifiedName),
		Identifier:        shape.Identifier,
		MappedSuperclass:  shape.MappedSuperclass,
		SerializationHook: shape.HasCustomSerializationHook,
	}

	for _, attr := range shape.PersistedAttributes {
		view.Attributes = append(view.Attributes, attributeView{Name: attr, Type: shape.Members[attr]})
	}
	for _, b := range shape.ForwardableBehaviors {
		view.Behaviors = append(view.Behaviors, behaviorSignature(b))
	}

	if !shape.MappedSuperclass {
		result, err := synth.Generate(shape)
		if err != nil {
			return view, err
		}
		view.Warnings = result.Warnings
	}
	return view, nil
}

func behaviorSignature(b codegen.Behavior) string {
	params := make([]string, len(b.Params))
	for i, p := range b.Params {
		typ := p.Type.String()
		if p.Variadic {
			typ = "..." + strings.TrimPrefix(typ, "[]")
		}
		params[i] = strings.TrimSpace(p.Name + " " + typ)
	}

	sig := b.Name + "(" + strings.Join(params, ", ") + ")"
	switch len(b.Results) {
	case 0:
	case 1:
		sig += " " + b.Results[0].String()
	default:
		results := make([]string, len(b.Results))
		for i, r := range b.Results {
			results[i] = r.String()
		}
		sig += " (" + strings.Join(results, ", ") + ")"
	}
	return sig
}

func renderClass(env *environment, view classView) {
	kv := ui.NewKeyValueTable(env.out, env.noColor)
	kv.AddRow("Class", view.Class)
	kv.AddRow("Proxy", view.Proxy)
	kv.AddRow("Identifier", view.Identifier)
	kv.AddRow("Serialization hook", strconv.FormatBool(view.SerializationHook))
	kv.Render()
	fmt.Fprintln(env.out)

	attrs := ui.NewTable(env.out, env.noColor, "Attribute", "Type")
	for _, attr := range view.Attributes {
		typ := "(implicit)"
		if attr.Type != nil {
			typ = attr.Type.String()
		}
		attrs.AddRow(attr.Name, typ)
	}
	attrs.Render()

	if len(view.Behaviors) > 0 {
		fmt.Fprintln(env.out)
		behaviors := ui.NewTable(env.out, env.noColor, "Forwarded behavior")
		for _, b := range view.Behaviors {
			behaviors.AddRow(b)
		}
		behaviors.Render()
	}

	if len(view.Warnings) > 0 {
		fmt.Fprintln(env.out)
		ui.Warnings(view.Class, view.Warnings, env.noColor).Write(env.out)
	}
}
