package proxy

// State is the load state machine shared by all generated proxies: unloaded, loading, loaded.
// It is not safe for concurrent use; callers synchronize access to a single instance.
type State struct {
	loader      Loader
	identifier  string
	initialized bool
}

// NewState creates the state of an unloaded proxy bound to loader and identifier
func NewState(loader Loader, identifier string) State {
	return State{
		loader:     loader,
		identifier: identifier,
	}
}

// Initialized reports whether a load has been started
func (s *State) Initialized() bool {
	return s.initialized
}

// Identifier returns the identifier the proxy was bound to
func (s *State) Identifier() string {
	return s.identifier
}

// Bound reports whether the loader is still held
func (s *State) Bound() bool {
	return s.loader != nil
}

// Load triggers the loader for p at most once.
//
// The initialized flag is set before the loader runs so that attribute access made by the
// loader itself does not re-enter. The loader reference is dropped once it returns. A failed
// load leaves the proxy initialized and is not retried.
func (s *State) Load(p Proxy) error {
	if s.initialized || s.loader == nil {
		return nil
	}
	s.initialized = true

	loader := s.loader
	defer func() { s.loader = nil }()

	if err := loader.RefreshInstance(p); err != nil {
		return &LoadError{
			Class:      p.ProxyClassName(),
			Identifier: s.identifier,
			Err:        err,
		}
	}
	return nil
}
