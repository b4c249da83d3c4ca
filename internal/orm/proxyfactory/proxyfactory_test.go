package proxyfactory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/conduit-lang/refproxy/internal/orm/codegen"
	"github.com/conduit-lang/refproxy/internal/orm/schema"
	"github.com/conduit-lang/refproxy/pkg/proxy"
)

const (
	userClass   = "example.com/app/model.User"
	userMangled = "examplecomappmodelUserReferenceProxy"
	proxyDir    = "/app/proxies"
)

func userDescriptor() *schema.ClassDescriptor {
	desc := schema.NewClassDescriptor("example.com/app/model", "model", "User")
	desc.Identifier = &schema.FieldMapping{Name: "ID", Type: schema.Builtin("string")}
	desc.Fields = append(desc.Fields, &schema.FieldMapping{Name: "Username", Type: schema.Builtin("string")})
	return desc
}

func newGenerator(t *testing.T, fs afero.Fs, autoGenerate bool) *Generator {
	t.Helper()

	gen, err := NewGenerator(Config{
		Dir:          proxyDir,
		Namespace:    "proxies",
		AutoGenerate: autoGenerate,
		Fs:           fs,
		Logger:       zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return gen
}

// stubProxy stands in for a compiled definition
type stubProxy struct {
	state proxy.State
}

func (p *stubProxy) IsProxyInitialized() bool { return p.state.Initialized() }
func (p *stubProxy) ProxyLoad() error         { return p.state.Load(p) }
func (p *stubProxy) ProxyIdentifier() string  { return p.state.Identifier() }
func (p *stubProxy) ProxyClassName() string   { return userClass }
func (p *stubProxy) ProxiedEntity() any       { return p }

type requestKey struct{}

type loaderProvider struct {
	loader proxy.Loader
	ctxs   []context.Context
}

func (l *loaderProvider) LoaderFor(ctx context.Context) proxy.Loader {
	l.ctxs = append(l.ctxs, ctx)
	return l.loader
}

func stubRegistry(t *testing.T) *proxy.Registry {
	t.Helper()

	registry := proxy.NewRegistry()
	_, err := registry.Register(proxy.Definition{
		Name:        userMangled,
		SourceClass: userClass,
		New: func(loader proxy.Loader, identifier string) proxy.Proxy {
			return &stubProxy{state: proxy.NewState(loader, identifier)}
		},
	})
	require.NoError(t, err)
	return registry
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"missing dir", Config{Namespace: "proxies"}, ErrMissingDir},
		{"missing namespace", Config{Dir: "/x"}, ErrMissingNamespace},
		{"invalid namespace", Config{Dir: "/x", Namespace: "my-proxies"}, ErrInvalidNamespace},
		{"main namespace", Config{Dir: "/x", Namespace: "main"}, ErrInvalidNamespace},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGenerator(tt.cfg)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}

	assert.NoError(t, Config{Dir: "/x", Namespace: "proxies"}.Validate())
}

func TestGenerator_GetOrCreateDefinition(t *testing.T) {
	t.Run("without auto generation nothing is written", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		gen := newGenerator(t, fs, false)

		def, err := gen.GetOrCreateDefinition(codegen.Inspect(userDescriptor()), false)
		require.NoError(t, err)

		assert.Equal(t, userMangled, def.MangledName)
		assert.Equal(t, filepath.Join(proxyDir, "examplecomappmodel_user_reference_proxy.go"), def.Path)
		assert.False(t, def.Generated)
		assert.Empty(t, def.Code)

		exists, err := afero.DirExists(fs, proxyDir)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("missing definition is created once", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		gen := newGenerator(t, fs, true)
		shape := codegen.Inspect(userDescriptor())

		first, err := gen.GetOrCreateDefinition(shape, true)
		require.NoError(t, err)
		assert.True(t, first.Generated)
		assert.NotEmpty(t, first.Checksum)

		stored, err := afero.ReadFile(fs, first.Path)
		require.NoError(t, err)
		assert.Equal(t, first.Code, string(stored))

		second, err := gen.GetOrCreateDefinition(shape, true)
		require.NoError(t, err)
		assert.Same(t, first, second)
	})

	t.Run("existing definition is not regenerated", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		gen := newGenerator(t, fs, true)
		path := gen.Storage().Path(userMangled)
		require.NoError(t, afero.WriteFile(fs, path, []byte("package proxies\n"), 0o644))

		def, err := gen.GetOrCreateDefinition(codegen.Inspect(userDescriptor()), true)
		require.NoError(t, err)

		assert.False(t, def.Generated)
		assert.Equal(t, "package proxies\n", def.Code)
	})

	t.Run("write failure surfaces as WriteError", func(t *testing.T) {
		gen := newGenerator(t, afero.NewReadOnlyFs(afero.NewMemMapFs()), true)

		_, err := gen.GetOrCreateDefinition(codegen.Inspect(userDescriptor()), true)

		var writeErr *WriteError
		require.ErrorAs(t, err, &writeErr)
		assert.Equal(t, gen.Storage().Path(userMangled), writeErr.Path)
	})
}

func TestGenerator_RegenerateAll(t *testing.T) {
	fs := afero.NewMemMapFs()
	gen := newGenerator(t, fs, false)

	base := schema.NewClassDescriptor("example.com/app/model", "model", "Base")
	base.MappedSuperclass = true
	shapes := []*codegen.ClassShape{codegen.Inspect(userDescriptor()), codegen.Inspect(base)}

	require.NoError(t, afero.WriteFile(fs, gen.Storage().Path(userMangled), []byte("stale"), 0o644))

	defs, err := gen.Regenerate(shapes, "")
	require.NoError(t, err)
	require.Len(t, defs, 1)

	first, err := afero.ReadFile(fs, defs[0].Path)
	require.NoError(t, err)
	assert.NotEqual(t, "stale", string(first))

	require.NoError(t, gen.RegenerateAll(shapes, ""))
	second, err := afero.ReadFile(fs, defs[0].Path)
	require.NoError(t, err)
	assert.Equal(t, first, second, "regeneration is byte-identical")

	exists, err := gen.Storage().Exists(codegen.MangledName(base.Name))
	require.NoError(t, err)
	assert.False(t, exists, "mapped superclasses are abstract")

	entries, err := afero.ReadDir(fs, proxyDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestGenerator_RegenerateAllTargetDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	gen := newGenerator(t, fs, false)

	require.NoError(t, gen.RegenerateAll([]*codegen.ClassShape{codegen.Inspect(userDescriptor())}, "/elsewhere"))

	exists, err := afero.Exists(fs, filepath.Join("/elsewhere", "examplecomappmodel_user_reference_proxy.go"))
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = gen.Storage().Exists(userMangled)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGenerator_Check(t *testing.T) {
	fs := afero.NewMemMapFs()
	gen := newGenerator(t, fs, false)

	group := schema.NewClassDescriptor("example.com/app/model", "model", "Group")
	shapes := []*codegen.ClassShape{codegen.Inspect(userDescriptor()), codegen.Inspect(group)}

	drifts, err := gen.Check(shapes)
	require.NoError(t, err)
	require.Len(t, drifts, 2)
	assert.Equal(t, DriftMissing, drifts[0].Status)

	require.NoError(t, gen.RegenerateAll(shapes, ""))
	drifts, err = gen.Check(shapes)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	require.NoError(t, afero.WriteFile(fs, gen.Storage().Path(userMangled), []byte("package proxies\n"), 0o644))
	drifts, err = gen.Check(shapes)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, DriftStale, drifts[0].Status)
	assert.Equal(t, userMangled, drifts[0].MangledName)
}

func TestStorage_Create(t *testing.T) {
	storage := NewStorage(afero.NewMemMapFs(), proxyDir)

	require.NoError(t, storage.Create("FooBarReferenceProxy", []byte("a")))
	assert.Equal(t, filepath.Join(proxyDir, "foo_bar_reference_proxy.go"), storage.Path("FooBarReferenceProxy"))

	err := storage.Create("FooBarReferenceProxy", []byte("b"))
	assert.True(t, errors.Is(err, os.ErrExist), "create is exclusive: %v", err)

	data, err := storage.Read("FooBarReferenceProxy")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	require.NoError(t, storage.Overwrite("FooBarReferenceProxy", []byte("c")))
	data, err = storage.Read("FooBarReferenceProxy")
	require.NoError(t, err)
	assert.Equal(t, "c", string(data))

	require.NoError(t, storage.Remove("FooBarReferenceProxy"))
	require.NoError(t, storage.Remove("FooBarReferenceProxy"))
}

func TestFactory_AcquireProxy(t *testing.T) {
	fs := afero.NewMemMapFs()
	gen := newGenerator(t, fs, true)

	catalog := schema.NewRegistry()
	require.NoError(t, catalog.Register(userDescriptor()))

	calls := 0
	loaders := &loaderProvider{loader: proxy.LoaderFunc(func(p proxy.Proxy) error {
		calls++
		return nil
	})}

	factory, err := NewFactory(gen, catalog, loaders, WithRegistry(stubRegistry(t)))
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), requestKey{}, "request")
	p, err := factory.AcquireProxy(ctx, userClass, "/users/alice")
	require.NoError(t, err)

	assert.Equal(t, "/users/alice", p.ProxyIdentifier())
	assert.False(t, p.IsProxyInitialized())
	assert.Equal(t, 0, calls)
	require.Len(t, loaders.ctxs, 1)
	assert.Equal(t, ctx, loaders.ctxs[0])

	proxyMeta, err := catalog.GetClassMetadata(userMangled)
	require.NoError(t, err)
	assert.Equal(t, userMangled, proxyMeta.Name)
	assert.Equal(t, "User", proxyMeta.TypeName)

	exists, err := gen.Storage().Exists(userMangled)
	require.NoError(t, err)
	assert.False(t, exists, "a registered definition is not written")

	require.NoError(t, p.ProxyLoad())
	require.NoError(t, p.ProxyLoad())
	assert.Equal(t, 1, calls)

	other, err := factory.AcquireProxy(ctx, userClass, "/users/bob")
	require.NoError(t, err)
	assert.NotSame(t, p, other)
}

func TestFactory_AcquireProxyRegisteredOnReadOnlyStorage(t *testing.T) {
	gen := newGenerator(t, afero.NewReadOnlyFs(afero.NewMemMapFs()), true)

	catalog := schema.NewRegistry()
	require.NoError(t, catalog.Register(userDescriptor()))

	factory, err := NewFactory(gen, catalog, &loaderProvider{}, WithRegistry(stubRegistry(t)))
	require.NoError(t, err)

	p, err := factory.AcquireProxy(context.Background(), userClass, "/users/alice")
	require.NoError(t, err)
	assert.Equal(t, "/users/alice", p.ProxyIdentifier())
}

func TestFactory_AcquireProxyGeneratesUnregistered(t *testing.T) {
	fs := afero.NewMemMapFs()
	gen := newGenerator(t, fs, true)

	catalog := schema.NewRegistry()
	require.NoError(t, catalog.Register(userDescriptor()))

	factory, err := NewFactory(gen, catalog, &loaderProvider{}, WithRegistry(proxy.NewRegistry()))
	require.NoError(t, err)

	_, err = factory.AcquireProxy(context.Background(), userClass, "/x")
	assert.ErrorIs(t, err, ErrDefinitionNotLoaded)

	exists, err := gen.Storage().Exists(userMangled)
	require.NoError(t, err)
	assert.True(t, exists, "the missing definition is written for the next build")
}

func TestGenerator_GetOrCreateDefinitionRegistered(t *testing.T) {
	fs := afero.NewMemMapFs()
	gen, err := NewGenerator(Config{
		Dir:          proxyDir,
		Namespace:    "proxies",
		AutoGenerate: true,
		Registry:     stubRegistry(t),
		Fs:           afero.NewReadOnlyFs(fs),
		Logger:       zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	def, err := gen.GetOrCreateDefinition(codegen.Inspect(userDescriptor()), true)
	require.NoError(t, err)

	assert.True(t, def.Registered)
	assert.False(t, def.Generated)
	assert.Empty(t, def.Code)
}

func TestFactory_Errors(t *testing.T) {
	gen := newGenerator(t, afero.NewMemMapFs(), false)
	catalog := schema.NewRegistry()
	require.NoError(t, catalog.Register(userDescriptor()))

	_, err := NewFactory(gen, catalog, nil)
	assert.ErrorIs(t, err, ErrMissingLoader)

	_, err = NewFactory(nil, catalog, &loaderProvider{})
	assert.ErrorIs(t, err, ErrConfiguration)

	factory, err := NewFactory(gen, catalog, &loaderProvider{}, WithRegistry(proxy.NewRegistry()))
	require.NoError(t, err)

	_, err = factory.AcquireProxy(context.Background(), "example.com/app/model.Missing", "/x")
	assert.ErrorIs(t, err, schema.ErrClassNotFound)

	_, err = factory.AcquireProxy(context.Background(), userClass, "/x")
	assert.ErrorIs(t, err, ErrDefinitionNotLoaded)
}
