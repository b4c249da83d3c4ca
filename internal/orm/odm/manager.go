// Package odm is a small document manager handing out reference proxies.
// It keeps an identity map per manager, persists documents as JSON in a store and acts as
// the loader of every proxy it creates.
package odm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/refproxy/internal/orm/proxyfactory"
	"github.com/conduit-lang/refproxy/internal/orm/schema"
	"github.com/conduit-lang/refproxy/internal/orm/store"
	"github.com/conduit-lang/refproxy/pkg/proxy"
)

// attributeAccessor is implemented by generated proxies
type attributeAccessor interface {
	GetAttribute(name string) (any, error)
	SetAttribute(name string, value any) error
}

// Option configures a Manager
type Option func(*options)

type options struct {
	logger   *zap.Logger
	registry *proxy.Registry
}

// WithLogger sets the manager logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegistry sets the runtime registry proxies are instantiated from
func WithRegistry(r *proxy.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

type identityKey struct {
	class string
	id    string
}

// Manager tracks documents and proxies of one unit of work
type Manager struct {
	store   store.Store
	catalog *schema.Registry
	factory *proxyfactory.Factory
	session uuid.UUID
	logger  *zap.Logger

	mu       sync.Mutex
	identity map[identityKey]any
}

// New creates a manager reading documents from s and class metadata from catalog.
// Proxies are produced through gen.
func New(s store.Store, catalog *schema.Registry, gen *proxyfactory.Generator, opts ...Option) (*Manager, error) {
	if s == nil {
		return nil, errors.New("odm: store is nil")
	}

	o := &options{registry: proxy.DefaultRegistry}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	m := &Manager{
		store:    s,
		catalog:  catalog,
		session:  uuid.New(),
		identity: make(map[identityKey]any),
	}
	m.logger = o.logger.With(zap.String("session", m.session.String()))

	factory, err := proxyfactory.NewFactory(gen, catalog, m,
		proxyfactory.WithRegistry(o.registry),
		proxyfactory.WithLogger(m.logger))
	if err != nil {
		return nil, err
	}
	m.factory = factory
	return m, nil
}

// Session returns the identifier of this unit of work
func (m *Manager) Session() uuid.UUID {
	return m.session
}

// GetReference returns the managed object of className with identifier id. An unknown
// document is represented by an unloaded proxy; the store is not queried.
func (m *Manager) GetReference(ctx context.Context, className, id string) (any, error) {
	key := identityKey{class: className, id: id}

	m.mu.Lock()
	defer m.mu.Unlock()

	if obj, ok := m.identity[key]; ok {
		return obj, nil
	}

	p, err := m.factory.AcquireProxy(ctx, className, id)
	if err != nil {
		return nil, err
	}
	m.identity[key] = p
	return p, nil
}

// Find returns the managed object of className with identifier id, loading it first
func (m *Manager) Find(ctx context.Context, className, id string) (any, error) {
	obj, err := m.GetReference(ctx, className, id)
	if err != nil {
		return nil, err
	}
	if p, ok := obj.(proxy.Proxy); ok {
		if err := p.ProxyLoad(); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// Persist stores entity as the document of className with identifier id and manages it.
// Proxies are stored with their full entity, loading them first.
func (m *Manager) Persist(ctx context.Context, className, id string, entity any) error {
	value := entity
	if p, ok := entity.(proxy.Proxy); ok {
		if err := p.ProxyLoad(); err != nil {
			return err
		}
		value = p.ProxiedEntity()
	}

	doc, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s %q: %w", className, id, err)
	}
	if err := m.store.Put(ctx, className, id, doc); err != nil {
		return err
	}

	m.mu.Lock()
	m.identity[identityKey{class: className, id: id}] = entity
	m.mu.Unlock()

	m.logger.Debug("persisted document",
		zap.String("class", className),
		zap.String("identifier", id))
	return nil
}

// Remove deletes the document and forgets the managed object
func (m *Manager) Remove(ctx context.Context, className, id string) error {
	if err := m.store.Delete(ctx, className, id); err != nil {
		return err
	}
	m.Detach(className, id)
	return nil
}

// Detach forgets the managed object of className with identifier id
func (m *Manager) Detach(className, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.identity, identityKey{class: className, id: id})
}

// Clear forgets every managed object
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.identity = make(map[identityKey]any)
}

// Contains reports whether an object of className with identifier id is managed
func (m *Manager) Contains(className, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.identity[identityKey{class: className, id: id}]
	return ok
}

// LoaderFor returns a loader bound to ctx
func (m *Manager) LoaderFor(ctx context.Context) proxy.Loader {
	return &boundLoader{manager: m, ctx: ctx}
}

// RefreshInstance fetches the document of p and decodes it into the proxied entity
func (m *Manager) RefreshInstance(ctx context.Context, p proxy.Proxy) error {
	class := p.ProxyClassName()
	id := p.ProxyIdentifier()

	doc, err := m.store.Get(ctx, class, id)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(doc, p.ProxiedEntity()); err != nil {
		return fmt.Errorf("decoding %s %q: %w", class, id, err)
	}

	m.restoreIdentifier(p)

	m.logger.Debug("loaded proxy",
		zap.String("class", class),
		zap.String("identifier", id))
	return nil
}

// restoreIdentifier writes the proxy identifier into a string identifier attribute the
// document left empty
func (m *Manager) restoreIdentifier(p proxy.Proxy) {
	accessor, ok := p.(attributeAccessor)
	if !ok || m.catalog == nil {
		return
	}
	desc, err := m.catalog.GetClassMetadata(p.ProxyClassName())
	if err != nil || desc.Identifier == nil {
		return
	}

	name := desc.IdentifierName()
	current, err := accessor.GetAttribute(name)
	if err != nil {
		return
	}
	if s, ok := current.(string); ok && s == "" {
		if err := accessor.SetAttribute(name, p.ProxyIdentifier()); err != nil {
			m.logger.Debug("identifier not restored",
				zap.String("class", p.ProxyClassName()),
				zap.Error(err))
		}
	}
}

// boundLoader carries the context a proxy was acquired with into its load
type boundLoader struct {
	manager *Manager
	ctx     context.Context
}

func (l *boundLoader) RefreshInstance(p proxy.Proxy) error {
	return l.manager.RefreshInstance(l.ctx, p)
}
