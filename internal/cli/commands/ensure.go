package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/refproxy/internal/cli/ui"
)

// NewEnsureCommand creates the ensure command
func NewEnsureCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure [class...]",
		Short: "Write missing proxy definitions",
		Long: `Write a proxy definition for every mapped class that does not have one yet.
Existing files are left untouched; use "refproxy generate" to rewrite them.`,
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

			gen, err := env.generator()
			if err != nil {
				return err
			}

			table := ui.NewTable(env.out, env.noColor, "Class", "Proxy", "Status")
			created := 0
			for _, shape := range shapes {
				if shape.MappedSuperclass {
					continue
				}

				def, err := gen.GetOrCreateDefinition(shape, true)
				if err != nil {
					return err
				}

				status := "exists"
				if def.Generated {
					status = "generated"
					created++
				}
				table.AddRow(def.SourceClass, def.MangledName, status)
			}
			table.Render()

			fmt.Fprintln(env.out)
			ui.WriteSuccess(env.out, fmt.Sprintf("%d of %d proxy definitions generated", created, table.Len()), env.noColor)
			return nil
		},
	}
}
