// Package proxyfactory manages generated proxy definitions and hands out proxy instances.
//
// A Generator owns the definition directory: it synthesizes missing definitions, rewrites
// all of them on demand and reports stale files. The directory is a Go package; importing
// it registers every proxy type with the runtime so that a Factory can instantiate them.
package proxyfactory

import (
	"errors"
	"fmt"
	"go/token"
	"os"
	"sort"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/conduit-lang/refproxy/internal/orm/codegen"
	"github.com/conduit-lang/refproxy/pkg/proxy"
)

// Config configures where and how proxy definitions are generated
type Config struct {
	// Dir is the directory of the generated package
	Dir string
	// Namespace is the package name of generated files
	Namespace string
	// AutoGenerate writes missing definitions when a proxy is acquired
	AutoGenerate bool

	// Registry holds the definitions compiled into the process; nil means proxy.DefaultRegistry
	Registry *proxy.Registry

	Fs     afero.Fs
	Logger *zap.Logger
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Dir == "" {
		return ErrMissingDir
	}
	if c.Namespace == "" {
		return ErrMissingNamespace
	}
	if !token.IsIdentifier(c.Namespace) || c.Namespace == "main" {
		return fmt.Errorf("%w: %q", ErrInvalidNamespace, c.Namespace)
	}
	return nil
}

// Definition describes a proxy type and where its source lives
type Definition struct {
	MangledName string
	SourceClass string
	Path        string
	Code        string
	Checksum    string
	// Generated is true when this call wrote the file
	Generated bool
	// Registered is true when the definition is already compiled into the process
	Registered bool
}

// DriftStatus classifies a definition that does not match its class
type DriftStatus string

const (
	DriftMissing DriftStatus = "missing"
	DriftStale   DriftStatus = "stale"
)

// Drift reports a definition whose stored source differs from a fresh synthesis
type Drift struct {
	MangledName string
	SourceClass string
	Path        string
	Status      DriftStatus
}

// Generator synthesizes proxy definitions into a directory
type Generator struct {
	config  Config
	storage *Storage
	proxies  *codegen.ProxyGenerator
	registry *proxy.Registry
	hasher   *Hasher
	logger  *zap.Logger

	mu          sync.Mutex
	definitions map[string]*Definition
}

// NewGenerator creates a generator from cfg
func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := cfg.Registry
	if registry == nil {
		registry = proxy.DefaultRegistry
	}

	return &Generator{
		config:      cfg,
		registry:    registry,
		storage:     NewStorage(cfg.Fs, cfg.Dir),
		proxies:     codegen.NewProxyGenerator(cfg.Namespace),
		hasher:      NewHasher(),
		logger:      logger,
		definitions: make(map[string]*Definition),
	}, nil
}

// Config returns the generator configuration
func (g *Generator) Config() Config {
	return g.config
}

// Storage returns the definition storage
func (g *Generator) Storage() *Storage {
	return g.storage
}

// GetOrCreateDefinition resolves the definition of shape.
//
// Without autoGenerate the definition is only named; nothing is read or written. With
// autoGenerate a definition already registered with the runtime is used without touching
// storage, a missing file is synthesized and created exclusively, and an existing file is
// used as is, even if it no longer matches the class.
func (g *Generator) GetOrCreateDefinition(shape *codegen.ClassShape, autoGenerate bool) (*Definition, error) {
	return g.resolve(shape, autoGenerate, g.registry)
}

func (g *Generator) resolve(shape *codegen.ClassShape, autoGenerate bool, registry *proxy.Registry) (*Definition, error) {
	mangled := codegen.MangledName(shape.QualifiedName)

	if !autoGenerate {
		return &Definition{
			MangledName: mangled,
			SourceClass: shape.QualifiedName,
			Path:        g.storage.Path(mangled),
			Registered:  registry.Exists(mangled),
		}, nil
	}

	if registry.Exists(mangled) {
		g.logger.Debug("proxy definition already registered",
			zap.String("class", shape.QualifiedName),
			zap.String("proxy", mangled))
		return &Definition{
			MangledName: mangled,
			SourceClass: shape.QualifiedName,
			Path:        g.storage.Path(mangled),
			Registered:  true,
		}, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if def, ok := g.definitions[mangled]; ok {
		return def, nil
	}

	def, err := g.ensure(shape, mangled)
	if err != nil {
		return nil, err
	}
	g.definitions[mangled] = def
	return def, nil
}

func (g *Generator) ensure(shape *codegen.ClassShape, mangled string) (*Definition, error) {
	path := g.storage.Path(mangled)

	exists, err := g.storage.Exists(mangled)
	if err != nil {
		return nil, fmt.Errorf("checking proxy definition %s: %w", path, err)
	}
	if exists {
		return g.existing(shape, mangled)
	}

	result, err := g.synthesize(shape)
	if err != nil {
		return nil, err
	}

	if err := g.storage.Create(mangled, []byte(result.Code)); err != nil {
		if errors.Is(err, os.ErrExist) {
			// written concurrently by another process
			return g.existing(shape, mangled)
		}
		return nil, err
	}

	g.logger.Info("generated proxy definition",
		zap.String("class", shape.QualifiedName),
		zap.String("proxy", mangled),
		zap.String("path", path))

	return &Definition{
		MangledName: mangled,
		SourceClass: shape.QualifiedName,
		Path:        path,
		Code:        result.Code,
		Checksum:    g.hasher.HashString(result.Code),
		Generated:   true,
	}, nil
}

func (g *Generator) existing(shape *codegen.ClassShape, mangled string) (*Definition, error) {
	path := g.storage.Path(mangled)
	code, err := g.storage.Read(mangled)
	if err != nil {
		return nil, fmt.Errorf("reading proxy definition %s: %w", path, err)
	}
	return &Definition{
		MangledName: mangled,
		SourceClass: shape.QualifiedName,
		Path:        path,
		Code:        string(code),
		Checksum:    g.hasher.HashContent(code),
	}, nil
}

func (g *Generator) synthesize(shape *codegen.ClassShape) (*codegen.Result, error) {
	result, err := g.proxies.Generate(shape)
	if err != nil {
		return nil, fmt.Errorf("synthesizing proxy for %s: %w", shape.QualifiedName, err)
	}
	for _, w := range result.Warnings {
		g.logger.Warn(w,
			zap.String("class", shape.QualifiedName),
			zap.String("proxy", result.MangledName))
	}
	return result, nil
}

// RegenerateAll rewrites the definition of every shape into targetDir, or into the
// configured directory when targetDir is empty. Mapped superclasses are skipped.
func (g *Generator) RegenerateAll(shapes []*codegen.ClassShape, targetDir string) error {
	_, err := g.Regenerate(shapes, targetDir)
	return err
}

// Regenerate is RegenerateAll returning the written definitions
func (g *Generator) Regenerate(shapes []*codegen.ClassShape, targetDir string) ([]*Definition, error) {
	storage := g.storage
	if targetDir != "" {
		storage = g.storage.WithDir(targetDir)
	}

	var defs []*Definition
	for _, shape := range sortedShapes(shapes) {
		if shape.MappedSuperclass {
			g.logger.Debug("skipping mapped superclass", zap.String("class", shape.QualifiedName))
			continue
		}

		result, err := g.synthesize(shape)
		if err != nil {
			return defs, err
		}

		mangled := result.MangledName
		if err := storage.Overwrite(mangled, []byte(result.Code)); err != nil {
			return defs, err
		}

		def := &Definition{
			MangledName: mangled,
			SourceClass: shape.QualifiedName,
			Path:        storage.Path(mangled),
			Code:        result.Code,
			Checksum:    g.hasher.HashString(result.Code),
			Generated:   true,
		}
		defs = append(defs, def)

		if storage.Dir() == g.storage.Dir() {
			g.mu.Lock()
			g.definitions[mangled] = def
			g.mu.Unlock()
		}

		g.logger.Info("regenerated proxy definition",
			zap.String("class", shape.QualifiedName),
			zap.String("proxy", mangled),
			zap.String("path", def.Path))
	}
	return defs, nil
}

// Check compares stored definitions with a fresh synthesis and reports every missing or
// stale file. Mapped superclasses are ignored.
func (g *Generator) Check(shapes []*codegen.ClassShape) ([]Drift, error) {
	var drifts []Drift
	for _, shape := range sortedShapes(shapes) {
		if shape.MappedSuperclass {
			continue
		}

		result, err := g.synthesize(shape)
		if err != nil {
			return nil, err
		}

		mangled := result.MangledName
		drift := Drift{
			MangledName: mangled,
			SourceClass: shape.QualifiedName,
			Path:        g.storage.Path(mangled),
		}

		exists, err := g.storage.Exists(mangled)
		if err != nil {
			return nil, err
		}
		if !exists {
			drift.Status = DriftMissing
			drifts = append(drifts, drift)
			continue
		}

		stored, err := g.hasher.HashFile(g.storage.Fs(), drift.Path)
		if err != nil {
			return nil, err
		}
		if stored != g.hasher.HashString(result.Code) {
			drift.Status = DriftStale
			drifts = append(drifts, drift)
		}
	}
	return drifts, nil
}

// Forget drops cached definitions so the next lookup reads storage again
func (g *Generator) Forget() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.definitions = make(map[string]*Definition)
}

func sortedShapes(shapes []*codegen.ClassShape) []*codegen.ClassShape {
	out := append([]*codegen.ClassShape(nil), shapes...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].QualifiedName < out[j].QualifiedName
	})
	return out
}
