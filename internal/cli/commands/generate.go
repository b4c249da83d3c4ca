package commands

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/refproxy/internal/cli/ui"
	"github.com/conduit-lang/refproxy/internal/orm/codegen"
)

// NewGenerateCommand creates the generate command
func NewGenerateCommand(opts *globalOptions) *cobra.Command {
	var (
		dir         string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:     "generate [class...]",
		Aliases: []string{"g"},
		Short:   "Regenerate proxy definitions",
		Long: `Rewrite the proxy definition of every mapped class, replacing existing files.

Classes can be limited by qualified name (example.com/app/model.User) or type name (User).

Examples:
  refproxy generate
  refproxy generate User Group
  refproxy generate --dir build/proxies
  refproxy g --interactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment(cmd, opts)
			if err != nil {
				return err
			}
			defer env.close()

			shapes, err := env.shapes(cmd.Context(), args...)
			if err != nil {
				return err
			}
			if len(shapes) == 0 {
				return fmt.Errorf("no mapped classes found in %v", env.cfg.Proxy.Sources)
			}

			if interactive {
				if shapes, err = selectShapes(shapes); err != nil {
					return err
				}
			}

			gen, err := env.generator()
			if err != nil {
				return err
			}

			defs, err := gen.Regenerate(shapes, dir)
			if err != nil {
				return err
			}

			table := ui.NewTable(env.out, env.noColor, "Class", "Proxy", "File")
			for _, def := range defs {
				table.AddRow(def.SourceClass, def.MangledName, env.relative(def.Path))
			}
			table.Render()

			fmt.Fprintln(env.out)
			ui.WriteSuccess(env.out, fmt.Sprintf("Generated %d proxy definitions", len(defs)), env.noColor)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Write definitions to this directory instead of proxy.dir")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Choose the classes to generate")

	return cmd
}

// selectShapes asks which classes to generate. Mapped superclasses are left to Regenerate.
func selectShapes(shapes []*codegen.ClassShape) ([]*codegen.ClassShape, error) {
	names := make([]string, 0, len(shapes))
	byName := make(map[string]*codegen.ClassShape, len(shapes))
	for _, shape := range shapes {
		names = append(names, shape.QualifiedName)
		byName[shape.QualifiedName] = shape
	}

	var selected []string
	prompt := &survey.MultiSelect{
		Message: "Classes to generate:",
		Options: names,
		Default: names,
	}
	if err := survey.AskOne(prompt, &selected, survey.WithValidator(survey.MinItems(1))); err != nil {
		return nil, err
	}

	result := make([]*codegen.ClassShape, 0, len(selected))
	for _, name := range selected {
		result = append(result, byName[name])
	}
	return result, nil
}
