package source

import (
	"net/http"
	"sync"
	"time"

	"github.com/hive-corporation/darkguard/internal/core/ports"
)

// Registry maps connector types to their source adapters. Adding a
// connector type means registering an implementation here; the engine
// core never branches on the type tag.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]ports.SourceAdapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]ports.SourceAdapter)}
}

func (r *Registry) Register(adapter ports.SourceAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Name()] = adapter
}

func (r *Registry) Get(connectorType string) (ports.SourceAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[connectorType]
	return adapter, ok
}

// DefaultRegistry wires every built-in connector type with breaker
// protected HTTP clients.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewDemoAdapter())
	r.Register(NewHIBPAdapter(NewResilientClient("hibp", 10*time.Second)))
	r.Register(NewDehashedAdapter(NewResilientClient("dehashed", 10*time.Second)))
	r.Register(NewRSSAdapter(&http.Client{Timeout: 15 * time.Second}))
	r.Register(NewGenericRESTAdapter(NewResilientClient("generic_rest", 10*time.Second)))
	r.Register(NewPublicPasteAdapter(NewResilientClient("public_paste", 10*time.Second)))
	return r
}
