package commands

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/refproxy/internal/cli/config"
	"github.com/conduit-lang/refproxy/internal/orm/codegen"
	"github.com/conduit-lang/refproxy/internal/orm/proxyfactory"
	"github.com/conduit-lang/refproxy/internal/orm/scan"
	"github.com/conduit-lang/refproxy/internal/orm/schema"
	"github.com/conduit-lang/refproxy/internal/utils"
)

// globalOptions holds the persistent root flags
type globalOptions struct {
	project string
	verbose bool
	noColor bool
}

// environment is the loaded project a command operates on
type environment struct {
	cfg     *config.Config
	logger  *zap.Logger
	fs      afero.Fs
	out     io.Writer
	errOut  io.Writer
	noColor bool
}

func newEnvironment(cmd *cobra.Command, opts *globalOptions) (*environment, error) {
	cfg, err := config.LoadFrom(opts.project)
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	if opts.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return nil, err
		}
	}

	return &environment{
		cfg:     cfg,
		logger:  logger,
		fs:      afero.NewOsFs(),
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
		noColor: opts.noColor,
	}, nil
}

func (e *environment) close() {
	_ = e.logger.Sync()
}

func (e *environment) scanner() (*scan.Scanner, error) {
	return scan.NewFromDir(e.cfg.Root, e.logger)
}

// packageDirs expands the configured sources into package directories, skipping the
// generated proxy package
func (e *environment) packageDirs() ([]string, error) {
	var dirs []string
	for _, src := range e.cfg.SourceDirs() {
		found, err := utils.FindPackageDirs(src, e.cfg.ProxyDir())
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, found...)
	}
	return dirs, nil
}

func (e *environment) generator() (*proxyfactory.Generator, error) {
	return proxyfactory.NewGenerator(e.cfg.GeneratorConfig(e.fs, e.logger))
}

// catalog scans the sources into a metadata catalog
func (e *environment) catalog(ctx context.Context) (*schema.Registry, error) {
	scanner, err := e.scanner()
	if err != nil {
		return nil, err
	}

	dirs, err := e.packageDirs()
	if err != nil {
		return nil, err
	}

	descs, err := scanner.ScanDirs(ctx, dirs)
	if err != nil {
		return nil, err
	}

	catalog := schema.NewRegistry()
	if err := catalog.RegisterAll(descs); err != nil {
		return nil, err
	}
	return catalog, nil
}

// shapes scans the sources and inspects every class; names filters by qualified or type name
func (e *environment) shapes(ctx context.Context, names ...string) ([]*codegen.ClassShape, error) {
	catalog, err := e.catalog(ctx)
	if err != nil {
		return nil, err
	}

	var shapes []*codegen.ClassShape
	for _, desc := range catalog.All() {
		if len(names) > 0 && !matchesClass(desc, names) {
			continue
		}
		shapes = append(shapes, codegen.Inspect(desc))
	}
	return shapes, nil
}

func (e *environment) relative(path string) string {
	if rel, err := filepath.Rel(e.cfg.Root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

func matchesClass(desc *schema.ClassDescriptor, names []string) bool {
	for _, name := range names {
		if name == desc.Name || name == desc.TypeName {
			return true
		}
	}
	return false
}
