package camera

import (
	"fmt"
	"sort"
	"sync"
)

var (
	backendsMu sync.RWMutex
	backends   = map[string]Factory{
		"sim": func(opts Options) Camera { return NewSimulator(opts) },
	}
)

// Register adds a named backend factory. Returns an error if the name is
// empty, the factory is nil, or the name is already taken.
func Register(name string, f Factory) error {
	backendsMu.Lock()
	defer backendsMu.Unlock()

	if name == "" {
		return fmt.Errorf("backend name must not be empty")
	}
	if f == nil {
		return fmt.Errorf("backend %q: factory must not be nil", name)
	}
	if _, exists := backends[name]; exists {
		return fmt.Errorf("backend %q already registered", name)
	}
	backends[name] = f
	return nil
}

// NewBackend resolves a backend name to its factory.
func NewBackend(name string) (Factory, error) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	f, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return f, nil
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
