// Package registry tracks which source paths currently have a pipeline in
// flight (settling, transcoding or disposing).
package registry

import (
	"sort"
	"sync"
	"time"
)

// Registry is a set of active paths with an atomic check-and-set.
// The zero value is not usable; call New.
type Registry struct {
	mu     sync.Mutex
	active map[string]time.Time
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{active: make(map[string]time.Time)}
}

// TryAcquire marks path active and returns true, or returns false if the
// path is already active.
func (r *Registry) TryAcquire(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[path]; ok {
		return false
	}
	r.active[path] = time.Now()
	return true
}

// Release removes path from the active set. Releasing an inactive path is a no-op.
func (r *Registry) Release(path string) {
	r.mu.Lock()
	delete(r.active, path)
	r.mu.Unlock()
}

// IsActive reports whether path is currently acquired.
func (r *Registry) IsActive(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[path]
	return ok
}

// Len returns the number of active paths.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Paths returns the active paths in lexical order.
func (r *Registry) Paths() []string {
	r.mu.Lock()
	paths := make([]string, 0, len(r.active))
	for p := range r.active {
		paths = append(paths, p)
	}
	r.mu.Unlock()

	sort.Strings(paths)
	return paths
}

// Since returns when path was acquired.
func (r *Registry) Since(path string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.active[path]
	return t, ok
}
