package proxy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterIsIdempotent(t *testing.T) {
	r := NewRegistry()

	stored, err := r.Register(Definition{Name: "modelUserReferenceProxy", SourceClass: "model.User", New: newUserProxy})
	require.NoError(t, err)
	assert.True(t, stored)

	// same name, different content: still a no-op
	stored, err = r.Register(Definition{Name: "modelUserReferenceProxy", SourceClass: "other.User", New: newUserProxy})
	require.NoError(t, err)
	assert.False(t, stored)

	def, ok := r.Lookup("modelUserReferenceProxy")
	require.True(t, ok)
	assert.Equal(t, "model.User", def.SourceClass)
}

func TestRegistry_RegisterInvalid(t *testing.T) {
	r := NewRegistry()

	_, err := r.Register(Definition{New: newUserProxy})
	assert.Error(t, err)

	_, err = r.Register(Definition{Name: "x"})
	assert.Error(t, err)
	assert.False(t, r.Exists("x"))
}

func TestRegistry_New(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(Definition{Name: "p", New: newUserProxy})
	require.NoError(t, err)

	p, err := r.New("p", &countingLoader{}, "/a")
	require.NoError(t, err)
	assert.Equal(t, "/a", p.ProxyIdentifier())
	assert.False(t, p.IsProxyInitialized())

	_, err = r.New("missing", nil, "/a")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		_, err := r.Register(Definition{Name: name, New: newUserProxy})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a", "b", "c"}, r.Names())
}

func TestRegistry_ConcurrentRegister(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	var mu sync.Mutex
	storedCount := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stored, err := r.Register(Definition{Name: "same", New: newUserProxy})
			assert.NoError(t, err)
			if stored {
				mu.Lock()
				storedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, storedCount)
}

func TestRegister_DefaultRegistry(t *testing.T) {
	Register("proxyTestUserReferenceProxy", "model.User", newUserProxy)
	assert.True(t, DefaultRegistry.Exists("proxyTestUserReferenceProxy"))

	assert.Panics(t, func() {
		Register("", "model.User", newUserProxy)
	})
}
