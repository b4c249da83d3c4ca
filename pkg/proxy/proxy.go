// Package proxy provides the runtime used by generated reference proxies.
// Generated code embeds a State, registers its constructor in a Registry from init()
// and delegates serialization to the JSON helpers in this package.
package proxy

// Proxy is implemented by every generated reference proxy.
type Proxy interface {
	// IsProxyInitialized reports whether the backing document has been loaded
	IsProxyInitialized() bool

	// ProxyLoad loads the backing document on first call; later calls are no-ops
	ProxyLoad() error

	// ProxyIdentifier returns the identifier the proxy was created with
	ProxyIdentifier() string

	// ProxyClassName returns the qualified name of the proxied class
	ProxyClassName() string

	// ProxiedEntity returns a pointer to the backing entity without triggering a load.
	// Loaders decode fetched data into it.
	ProxiedEntity() any
}

// Loader fetches the real data of a proxy and writes it into ProxiedEntity in place
type Loader interface {
	RefreshInstance(p Proxy) error
}

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc func(p Proxy) error

// RefreshInstance calls f(p)
func (f LoaderFunc) RefreshInstance(p Proxy) error {
	return f(p)
}

// MustLoad loads p and panics with the *LoadError on failure.
// Generated methods without a trailing error result use it.
func MustLoad(p Proxy) {
	if err := p.ProxyLoad(); err != nil {
		panic(err)
	}
}

// IsInitialized reports whether v is loaded. Values that are not proxies are always loaded.
func IsInitialized(v any) bool {
	p, ok := v.(Proxy)
	if !ok {
		return true
	}
	return p.IsProxyInitialized()
}
