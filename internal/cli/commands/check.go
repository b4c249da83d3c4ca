package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/refproxy/internal/cli/ui"
)

// ErrDrift is returned by check when a definition is missing or stale
var ErrDrift = errors.New("proxy definitions are out of date")

// NewCheckCommand creates the check command
func NewCheckCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify proxy definitions match their classes",
		Long: `Synthesize every proxy in memory and compare it with the stored definition.
Exits non-zero when a definition is missing or stale.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment(cmd, opts)
			if err != nil {
				return err
			}
			defer env.close()

			shapes, err := env.shapes(cmd.Context())
			if err != nil {
				return err
			}

			gen, err := env.generator()
			if err != nil {
				return err
			}

			drifts, err := gen.Check(shapes)
			if err != nil {
				return err
			}

			if len(drifts) == 0 {
				ui.WriteSuccess(env.out, "All proxy definitions are up to date", env.noColor)
				return nil
			}

			table := ui.NewTable(env.out, env.noColor, "Class", "File", "Status")
			for _, drift := range drifts {
				table.AddRow(drift.SourceClass, env.relative(drift.Path), string(drift.Status))
			}
			table.Render()

			ui.Message{
				Level:    ui.LevelError,
				Problem:  fmt.Sprintf("%d proxy definitions need regeneration", len(drifts)),
				Commands: []string{"Regenerate: refproxy generate"},
				NoColor:  env.noColor,
			}.Write(env.errOut)

			return ErrDrift
		},
	}
}
