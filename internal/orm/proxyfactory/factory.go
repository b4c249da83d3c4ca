package proxyfactory

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/refproxy/internal/orm/codegen"
	"github.com/conduit-lang/refproxy/internal/orm/schema"
	"github.com/conduit-lang/refproxy/pkg/proxy"
)

// MetadataCatalog is the part of the metadata registry the factory uses
type MetadataCatalog interface {
	HasMetadataFor(name string) bool
	SetMetadataFor(name string, desc *schema.ClassDescriptor)
	GetClassMetadata(name string) (*schema.ClassDescriptor, error)
}

// LoaderProvider returns the loader new proxies are bound to
type LoaderProvider interface {
	LoaderFor(ctx context.Context) proxy.Loader
}

// Option configures a Factory
type Option func(*Factory)

// WithRegistry sets the runtime registry proxies are instantiated from
func WithRegistry(r *proxy.Registry) Option {
	return func(f *Factory) {
		f.registry = r
	}
}

// WithLogger sets the factory logger
func WithLogger(logger *zap.Logger) Option {
	return func(f *Factory) {
		f.logger = logger
	}
}

// Factory hands out reference proxies for mapped classes
type Factory struct {
	generator *Generator
	catalog   MetadataCatalog
	loaders   LoaderProvider
	registry  *proxy.Registry
	logger    *zap.Logger
}

// NewFactory creates a factory generating through gen
func NewFactory(gen *Generator, catalog MetadataCatalog, loaders LoaderProvider, opts ...Option) (*Factory, error) {
	if gen == nil {
		return nil, fmt.Errorf("%w: generator is nil", ErrConfiguration)
	}
	if catalog == nil {
		return nil, fmt.Errorf("%w: metadata catalog is nil", ErrConfiguration)
	}
	if loaders == nil {
		return nil, ErrMissingLoader
	}

	f := &Factory{
		generator: gen,
		catalog:   catalog,
		loaders:   loaders,
		registry:  gen.registry,
		logger:    gen.logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	return f, nil
}

// Generator returns the definition generator
func (f *Factory) Generator() *Generator {
	return f.generator
}

// AcquireProxy returns an unloaded proxy of className bound to the loader for ctx and to
// identifier. The definition is generated first when auto-generation is enabled, and the
// class metadata is registered under the proxy name if it is not yet.
func (f *Factory) AcquireProxy(ctx context.Context, className, identifier string) (proxy.Proxy, error) {
	desc, err := f.catalog.GetClassMetadata(className)
	if err != nil {
		return nil, err
	}

	def, err := f.generator.resolve(codegen.Inspect(desc), f.generator.config.AutoGenerate, f.registry)
	if err != nil {
		return nil, err
	}

	if !f.catalog.HasMetadataFor(def.MangledName) {
		f.catalog.SetMetadataFor(def.MangledName, desc.CloneAs(def.MangledName))
	}

	p, err := f.registry.New(def.MangledName, f.loaders.LoaderFor(ctx), identifier)
	if err != nil {
		if errors.Is(err, proxy.ErrNotRegistered) {
			return nil, fmt.Errorf("%w: %s from %s; import the package in %s",
				ErrDefinitionNotLoaded, def.MangledName, className, f.generator.config.Dir)
		}
		return nil, err
	}

	f.logger.Debug("acquired proxy",
		zap.String("class", className),
		zap.String("proxy", def.MangledName),
		zap.String("identifier", identifier))
	return p, nil
}
