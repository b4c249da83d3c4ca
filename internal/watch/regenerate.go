package watch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/refproxy/internal/orm/codegen"
	"github.com/conduit-lang/refproxy/internal/orm/proxyfactory"
	"github.com/conduit-lang/refproxy/internal/orm/schema"
	"github.com/conduit-lang/refproxy/internal/orm/scan"
)

// Regenerator rescans source packages and rewrites every proxy definition
type Regenerator struct {
	scanner   *scan.Scanner
	generator *proxyfactory.Generator
	dirs      []string
	logger    *zap.Logger

	mu   sync.Mutex
	runs int
}

// NewRegenerator creates a regenerator for the packages in dirs
func NewRegenerator(scanner *scan.Scanner, generator *proxyfactory.Generator, dirs []string, logger *zap.Logger) *Regenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Regenerator{
		scanner:   scanner,
		generator: generator,
		dirs:      dirs,
		logger:    logger,
	}
}

// Run scans all packages and regenerates their definitions
func (r *Regenerator) Run(ctx context.Context) ([]*proxyfactory.Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	descs, err := r.scanner.ScanDirs(ctx, r.dirs)
	if err != nil {
		return nil, err
	}

	catalog := schema.NewRegistry()
	if err := catalog.RegisterAll(descs); err != nil {
		return nil, err
	}

	shapes := make([]*codegen.ClassShape, 0, len(descs))
	for _, desc := range catalog.All() {
		shapes = append(shapes, codegen.Inspect(desc))
	}

	defs, err := r.generator.Regenerate(shapes, "")
	if err != nil {
		return nil, err
	}

	r.runs++
	r.logger.Info("regenerated proxies",
		zap.Int("classes", len(descs)),
		zap.Int("definitions", len(defs)))
	return defs, nil
}

// Runs returns how many regenerations completed
func (r *Regenerator) Runs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

// Watch regenerates once, then again after every batch of Go source changes until ctx is
// cancelled.
func (r *Regenerator) Watch(ctx context.Context) error {
	if _, err := r.Run(ctx); err != nil {
		return err
	}

	fw, err := NewFileWatcher(r.dirs, []string{"*.go"}, []string{"*_test.go"}, func(files []string) error {
		r.logger.Info("sources changed", zap.Strings("files", files))
		_, err := r.Run(ctx)
		return err
	}, r.logger)
	if err != nil {
		return err
	}

	if err := fw.Start(); err != nil {
		_ = fw.Stop()
		return err
	}

	<-ctx.Done()
	return fw.Stop()
}
