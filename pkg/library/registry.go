package library

import (
	"context"
	"sort"
	"sync"

	"github.com/nodewee/doc-structurer/pkg/schema"
)

// Library is an in-process document-conversion collaborator. The embedded
// backend strategy resolves a descriptor endpoint to a Library through a
// Registry and calls it directly, without a process boundary.
type Library interface {
	// Name returns the handle the library is registered under
	Name() string

	// Convert performs a full extraction of the given file
	Convert(ctx context.Context, sourcePath string, options map[string]string) (*schema.ExtractedDocument, error)

	// Inspect answers a cheap capability/estimate query without full parsing
	Inspect(ctx context.Context, sourcePath string) (*schema.InfoResult, error)
}

// Registry maps endpoint handles to embedded libraries
type Registry struct {
	mu   sync.RWMutex
	libs map[string]Library
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{libs: make(map[string]Library)}
}

// NewDefaultRegistry creates a registry with the built-in native library
// registered under its own name
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	native := NewNativeLibrary()
	r.Register(native.Name(), native)
	return r
}

// Register registers a library under the given handle
func (r *Registry) Register(name string, lib Library) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.libs[name] = lib
}

// Lookup resolves a handle to a library
func (r *Registry) Lookup(name string) (Library, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lib, ok := r.libs[name]
	return lib, ok
}

// Names returns all registered handles in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.libs))
	for name := range r.libs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
