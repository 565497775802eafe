package gen

import (
	"fmt"
	"sort"
	"sync"

	"github.com/BaSui01/filmforge/types"
)

type registryKey struct {
	kind types.Kind
	name string
}

type registryEntry struct {
	factory Factory
	meta    Metadata
}

// Registry maps (kind, provider name) to a constructor and its static
// metadata. Registration happens once at process start; after that the
// registry is only read, so concurrent lookups are safe.
type Registry struct {
	mu      sync.RWMutex
	entries map[registryKey]registryEntry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[registryKey]registryEntry)}
}

// Register adds a provider constructor under (kind, name). Re-registering
// the same key replaces the previous entry; registration runs once at
// startup so last-write-wins is acceptable.
func (r *Registry) Register(kind types.Kind, name string, factory Factory, meta Metadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[registryKey{kind: kind, name: name}] = registryEntry{factory: factory, meta: meta}
}

// New constructs a provider instance for one call. Lookup on an
// unregistered pair fails with a PROVIDER_NOT_FOUND error naming the
// requested identity.
func (r *Registry) New(cfg ProviderConfig) (Provider, error) {
	r.mu.RLock()
	e, ok := r.entries[registryKey{kind: cfg.Kind, name: cfg.Provider}]
	r.mu.RUnlock()
	if !ok {
		return nil, types.NewError(types.ErrProviderNotFound,
			fmt.Sprintf("provider %q not registered for kind %q", cfg.Provider, cfg.Kind)).
			WithProvider(cfg.Provider)
	}
	return e.factory(cfg), nil
}

// Metadata returns the static metadata registered under (kind, name).
func (r *Registry) Metadata(kind types.Kind, name string) (Metadata, error) {
	r.mu.RLock()
	e, ok := r.entries[registryKey{kind: kind, name: name}]
	r.mu.RUnlock()
	if !ok {
		return Metadata{}, types.NewError(types.ErrProviderNotFound,
			fmt.Sprintf("provider %q not registered for kind %q", name, kind)).
			WithProvider(name)
	}
	return e.meta, nil
}

// Entry pairs a registered identity with its metadata for discovery.
type Entry struct {
	Kind     types.Kind `json:"kind"`
	Provider string     `json:"provider"`
	Meta     Metadata   `json:"meta"`
}

// List returns all registered entries sorted by kind then name. With kinds
// given, only entries for those kinds are returned.
func (r *Registry) List(kinds ...types.Kind) []Entry {
	want := make(map[types.Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}

	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for key, e := range r.entries {
		if len(want) > 0 && !want[key.kind] {
			continue
		}
		out = append(out, Entry{Kind: key.kind, Provider: key.name, Meta: e.meta})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Provider < out[j].Provider
	})
	return out
}

// Names returns the sorted provider names registered for one kind.
func (r *Registry) Names(kind types.Kind) []string {
	entries := r.List(kind)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Provider)
	}
	return names
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
