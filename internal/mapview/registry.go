package mapview

import (
	"log/slog"
	"sync"
)

// Registry tracks the active map per page container. Opening a container
// that already holds a map returns the existing instance instead of
// constructing a second one.
type Registry struct {
	mu     sync.Mutex
	maps   map[string]*Map
	logger *slog.Logger
}

// NewRegistry constructs an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		maps:   make(map[string]*Map),
		logger: logger,
	}
}

// Open returns the map bound to containerID, constructing it with opts when
// the container is free. The second result is false when an existing
// instance was returned and opts were ignored.
func (r *Registry) Open(containerID string, opts Options) (*Map, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.maps[containerID]; ok {
		r.logger.Warn("map already initialized in container", "container", containerID)
		return existing, false
	}

	m := newMap(containerID, opts, r, r.logger)
	r.maps[containerID] = m
	return m, true
}

// Get returns the map bound to containerID, if any.
func (r *Registry) Get(containerID string) (*Map, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.maps[containerID]
	return m, ok
}

// Containers returns the ids of all registered containers.
func (r *Registry) Containers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.maps))
	for id := range r.maps {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) remove(containerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.maps, containerID)
}
