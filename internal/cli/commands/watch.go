package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/refproxy/internal/watch"
)

// NewWatchCommand creates the watch command
func NewWatchCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Regenerate proxies when sources change",
		Long: `Regenerate every proxy definition, then watch the source packages and
regenerate again after each batch of .go file changes. Test files are ignored.

Examples:
  refproxy watch
  refproxy watch -C ./service --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment(cmd, opts)
			if err != nil {
				return err
			}
			defer env.close()

			scanner, err := env.scanner()
			if err != nil {
				return err
			}

			dirs, err := env.packageDirs()
			if err != nil {
				return err
			}
			if len(dirs) == 0 {
				return fmt.Errorf("no Go packages found in %v", env.cfg.Proxy.Sources)
			}

			gen, err := env.generator()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			banner := color.New(color.FgCyan, color.Bold)
			banner.Fprintln(env.out, "refproxy watch")
			fmt.Fprintf(env.out, "   Packages: %d\n", len(dirs))
			fmt.Fprintf(env.out, "   Proxies:  %s\n", env.relative(env.cfg.ProxyDir()))
			color.New(color.FgYellow).Fprintln(env.out, "   Press Ctrl+C to stop")

			regen := watch.NewRegenerator(scanner, gen, dirs, env.logger)
			if err := regen.Watch(ctx); err != nil {
				return err
			}

			color.New(color.FgGreen).Fprintf(env.out, "Stopped after %d regenerations\n", regen.Runs())
			return nil
		},
	}
}
