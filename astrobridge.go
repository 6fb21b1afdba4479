package astrobridge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/astrobridge/astrobridge/internal/browser"
	"github.com/astrobridge/astrobridge/internal/codec"
	"github.com/astrobridge/astrobridge/internal/command"
	"github.com/astrobridge/astrobridge/internal/renderer"
)

// Re-exported types so callers only import this package.
type (
	// Element is a handle to one DOM node.
	Element = browser.Element
	// Mount is one live, registry-tracked DOM attachment.
	Mount = browser.Mount
	// Queries is the locator-finder set bound to a scope element.
	Queries = browser.Queries
	// Scope is anything a hydration wait can be narrowed to.
	Scope = browser.Scope
	// Clock abstracts timers for hydration waits.
	Clock = browser.Clock
	// WaitOption tunes one hydration wait.
	WaitOption = browser.WaitOption
	// HydrationTimeoutError reports markers still pending at timeout.
	HydrationTimeoutError = browser.HydrationTimeoutError
	// SerializationError reports a prop value that cannot cross runtimes.
	SerializationError = codec.SerializationError
	// ComponentNotFoundError reports a module lacking the named export.
	ComponentNotFoundError = renderer.ComponentNotFoundError
	// RenderFailure wraps an exception thrown by the renderer.
	RenderFailure = command.RenderFailure
	// Adapter names a framework integration for the renderer host.
	Adapter = renderer.Adapter
	// ScriptLoader resolves external script srcs in injected markup.
	ScriptLoader = browser.ScriptLoader
	// FileLoader serves script srcs from a directory root.
	FileLoader = browser.FileLoader
	// Map is the ordered, arbitrary-key mapping prop type.
	Map = codec.Map
	// Entry is one Map entry.
	Entry = codec.Entry
	// Set is the ordered collection prop type.
	Set = codec.Set
)

// Hydration wait options, re-exported.
var (
	WithTimeout      = browser.WithTimeout
	WithPollInterval = browser.WithPollInterval
	WithClock        = browser.WithClock
)

// ComponentReference is the lightweight record that stands in for a
// component in restricted-runtime code. The import interceptor produces
// these at build time; Go tests construct them with ComponentRef.
type ComponentReference struct {
	IsComponentRef bool   `json:"isComponentRef"`
	SourcePath     string `json:"sourcePath"`
	ExportName     string `json:"exportName"`
}

// ComponentRef builds a reference to the default export of the component
// module at sourcePath.
func ComponentRef(sourcePath string) *ComponentReference {
	return &ComponentReference{
		IsComponentRef: true,
		SourcePath:     sourcePath,
		ExportName:     "default",
	}
}

// NotAComponentError reports a Render argument that is not a component
// reference.
type NotAComponentError struct {
	Received any
}

func (e *NotAComponentError) Error() string {
	return fmt.Sprintf("Not an Astro component: expected a component reference produced by the import interceptor, got %s", describeShape(e.Received))
}

// describeShape names the received value well enough to recognize it in a
// failure message without dumping the whole value.
func describeShape(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("an object with keys {%s}", strings.Join(keys, ", "))
	default:
		return fmt.Sprintf("a value of type %T", v)
	}
}

// asComponentReference accepts the shapes a reference arrives in: the Go
// struct (by value or pointer) or the plain record emitted by the
// interceptor after crossing the JS boundary.
func asComponentReference(component any) (*ComponentReference, error) {
	switch x := component.(type) {
	case *ComponentReference:
		if x != nil && x.IsComponentRef {
			return normalizeRef(*x), nil
		}
	case ComponentReference:
		if x.IsComponentRef {
			return normalizeRef(x), nil
		}
	case map[string]any:
		if ok, _ := x["isComponentRef"].(bool); ok {
			path, _ := x["sourcePath"].(string)
			name, _ := x["exportName"].(string)
			return normalizeRef(ComponentReference{
				IsComponentRef: true,
				SourcePath:     path,
				ExportName:     name,
			}), nil
		}
	}
	return nil, &NotAComponentError{Received: component}
}

func normalizeRef(ref ComponentReference) *ComponentReference {
	if ref.ExportName == "" {
		ref.ExportName = "default"
	}
	return &ref
}

// RenderOptions are the caller-supplied arguments of one render.
type RenderOptions struct {
	// Props values must be serializable; see the codec value domain.
	Props map[string]any
	// Slots maps slot name to raw HTML; "default" is the unnamed slot.
	Slots map[string]string
	// Container is an optional pre-existing element to render into.
	Container *Element
	// BaseElement is an optional scope root for queries; defaults to the
	// container.
	BaseElement *Element
}

// RenderResult is the façade over one mount: lifecycle controls plus the
// locator-finder set bound to the base element. It is a view, not an
// owner; the registry holds the authoritative mount.
type RenderResult struct {
	mount *browser.Mount
	base  *Element
	browser.Queries
}

// Container returns the element holding the injected markup.
func (r *RenderResult) Container() *Element { return r.mount.Container() }

// BaseElement returns the query scope root.
func (r *RenderResult) BaseElement() *Element { return r.base }

// Unmount tears down the underlying mount.
func (r *RenderResult) Unmount() error { return r.mount.Unmount() }

// Debug prints a size-bounded serialization of the given scope (default:
// the container) and returns it.
func (r *RenderResult) Debug(scopes ...Scope) string { return r.mount.Debug(scopes...) }

// HydrationScope scopes hydration waits to this result's container.
func (r *RenderResult) HydrationScope() *Element { return r.mount.HydrationScope() }

// Render renders the referenced component on the privileged host and
// mounts the result into the default bridge's document.
func Render(ctx context.Context, component any, opts *RenderOptions) (*RenderResult, error) {
	b, err := Default()
	if err != nil {
		return nil, err
	}
	return b.Render(ctx, component, opts)
}

// Cleanup tears down every live mount of the default bridge. Idempotent;
// meant to run between tests.
func Cleanup() error {
	b, err := Default()
	if err != nil {
		return err
	}
	return b.Cleanup()
}

// WaitForHydration blocks until all hydration markers within scope clear,
// or the timeout elapses.
func WaitForHydration(ctx context.Context, scope Scope, opts ...WaitOption) error {
	b, err := Default()
	if err != nil {
		return err
	}
	return b.WaitForHydration(ctx, scope, opts...)
}

// RegisterRenderer records a framework adapter for the shared renderer
// host. Must be called before the first render.
func RegisterRenderer(a Adapter) error {
	return command.RegisterAdapter(a)
}

// AutoCleanup arranges for Cleanup to run when the test finishes, so no
// mounts leak across tests.
func AutoCleanup(t interface{ Cleanup(func()) }) {
	t.Cleanup(func() {
		_ = Cleanup()
	})
}
