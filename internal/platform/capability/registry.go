// Package capability holds the registry of optional collaborators. Every
// optional feature (PDF rendering, text sinks, QR encoding) is registered
// at startup; a missing capability is a normal, typed state that disables
// the dependent feature rather than a runtime existence check.
package capability

import "sync"

type Name string

const (
	PDFRenderer Name = "pdf-renderer"
	TextSink    Name = "text-sink"
	QREncoder   Name = "qr-encoder"
)

type Registry struct {
	mu   sync.RWMutex
	caps map[Name]interface{}
}

func NewRegistry() *Registry {
	return &Registry{caps: make(map[Name]interface{})}
}

// Register installs an implementation for a capability. Registering nil
// removes the capability.
func (r *Registry) Register(n Name, impl interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if impl == nil {
		delete(r.caps, n)
		return
	}
	r.caps[n] = impl
}

// Lookup returns the registered implementation, if any.
func (r *Registry) Lookup(n Name) (interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	impl, ok := r.caps[n]
	return impl, ok
}

// Has reports whether a capability is available.
func (r *Registry) Has(n Name) bool {
	_, ok := r.Lookup(n)
	return ok
}
