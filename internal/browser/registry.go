package browser

import "sync"

// Registry is the authoritative set of live mounts for one environment.
// Invariant, maintained by every mutation site: a container is in the
// registry exactly while it is attached under the document (modulo
// caller-provided base elements, which the registry tracks but never
// detaches).
type Registry struct {
	mu     sync.Mutex
	mounts map[string]*Mount
	order  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{mounts: make(map[string]*Mount)}
}

func (r *Registry) add(m *Mount) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.mounts[m.id]; exists {
		return
	}
	r.mounts[m.id] = m
	r.order = append(r.order, m.id)
}

func (r *Registry) remove(m *Mount) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.mounts[m.id]; !exists {
		return
	}
	delete(r.mounts, m.id)
	for i, id := range r.order {
		if id == m.id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Contains reports whether the mount is currently registered.
func (r *Registry) Contains(m *Mount) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.mounts[m.id]
	return ok
}

// Len returns the number of live mounts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mounts)
}

// snapshot returns the live mounts in registration order.
func (r *Registry) snapshot() []*Mount {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Mount, 0, len(r.order))
	for _, id := range r.order {
		if m, ok := r.mounts[id]; ok {
			out = append(out, m)
		}
	}
	return out
}
