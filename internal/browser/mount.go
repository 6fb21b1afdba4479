package browser

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Mount is one live, registry-tracked DOM attachment produced by a single
// render. The container is exclusively owned by the mount; the base element
// is a shared reference whose lifetime is independent.
type Mount struct {
	env *Environment
	id  string

	container *Element
	base      *Element

	mu        sync.Mutex
	unmounted bool
}

// Container returns the element holding the injected markup.
func (m *Mount) Container() *Element { return m.container }

// BaseElement returns the query scope root.
func (m *Mount) BaseElement() *Element { return m.base }

// HydrationScope makes a mount usable as a hydration wait scope, covering
// its own container.
func (m *Mount) HydrationScope() *Element { return m.container }

// Unmount clears the container's contents, removes the mount from the
// registry, and detaches the container from the document only when it is
// parented directly under the default body. Caller-provided containers
// elsewhere in the page stay where the caller put them. Idempotent.
func (m *Mount) Unmount() error {
	m.mu.Lock()
	if m.unmounted {
		m.mu.Unlock()
		return nil
	}
	m.unmounted = true
	m.mu.Unlock()

	m.container.RemoveChildren()
	m.env.registry.remove(m)
	if parent := m.container.Parent(); parent != nil && parent.Same(m.env.doc.Body()) {
		m.container.Detach()
	}
	return nil
}

// Unmounted reports whether Unmount has run.
func (m *Mount) Unmounted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unmounted
}

// Debug writes a size-bounded serialization of the given scope (default:
// the mount's container) to stdout and returns it. Output is truncated to
// the configured maximum length.
func (m *Mount) Debug(scopes ...Scope) string {
	return m.DebugTo(os.Stdout, scopes...)
}

// DebugTo is Debug with an explicit destination.
func (m *Mount) DebugTo(w io.Writer, scopes ...Scope) string {
	el := m.container
	if len(scopes) > 0 && scopes[0] != nil {
		el = scopes[0].HydrationScope()
	}
	out, err := el.OuterHTML()
	if err != nil {
		out = fmt.Sprintf("<!-- debug failed: %v -->", err)
	}
	max := m.env.settings.DebugMaxLength
	if max > 0 && len(out) > max {
		out = out[:max] + "..."
	}
	fmt.Fprintln(w, out)
	return out
}
