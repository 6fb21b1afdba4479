// Package renderer implements the privileged-side renderer host: it loads
// component modules through its own CommonJS-style loader and renders them
// to HTML strings. The bridge treats the rendering itself as a black box;
// this host is the reference implementation backing the cross-runtime
// command, with framework adapters registered for hydration-capable
// sub-components.
package renderer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/astrobridge/astrobridge/internal/interceptor"
)

// Adapter names a framework integration (e.g. a UI framework whose
// components appear as islands inside rendered output).
type Adapter struct {
	Name string
	// Entrypoint is the module the framework loads for this side.
	Entrypoint string
}

// ComponentNotFoundError reports a module that resolved but lacks the
// requested (or a default) export.
type ComponentNotFoundError struct {
	Path      string
	Export    string
	Available []string
}

func (e *ComponentNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("component module %q has no export %q and no default export (module exports nothing)", e.Path, e.Export)
	}
	return fmt.Sprintf("component module %q has no export %q and no default export (available exports: %s)",
		e.Path, e.Export, strings.Join(e.Available, ", "))
}

// Component is a loaded, callable component export.
type Component struct {
	SourcePath string
	ExportName string

	fn goja.Callable
	// injectHead is set when the module carries the interceptor's
	// head-inject marker; head content pushed during render is then
	// prepended to the output instead of being dropped.
	injectHead bool
}

// RenderInput carries one render's arguments.
type RenderInput struct {
	Props map[string]any
	Slots map[string]string
	// Request is the synthetic base request URL.
	Request string
}

// Host owns a JavaScript VM and the module loader. One host serves many
// renders; module sources are re-read per load for live-reload semantics,
// while the VM and adapter registrations persist.
type Host struct {
	mu     sync.Mutex
	vm     *goja.Runtime
	server []Adapter
	client []Adapter
	logger *zap.Logger
}

// NewHost creates a renderer host with the given adapters pre-registered.
func NewHost(logger *zap.Logger, adapters ...Adapter) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Host{
		vm:     goja.New(),
		logger: logger.Named("renderer"),
	}
	for _, a := range adapters {
		h.AddServerRenderer(a)
		h.AddClientRenderer(a)
	}
	return h
}

// AddServerRenderer registers a server-side framework adapter.
func (h *Host) AddServerRenderer(a Adapter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.server = append(h.server, a)
}

// AddClientRenderer registers a client-side framework adapter.
func (h *Host) AddClientRenderer(a Adapter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.client = append(h.client, a)
}

// LoadComponent loads the module at path fresh and resolves the named
// export, falling back to the default export.
func (h *Host) LoadComponent(path, exportName string) (*Component, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	source, exports, err := h.loadModule(path, make(map[string]*goja.Object))
	if err != nil {
		return nil, err
	}

	if exportName == "" {
		exportName = "default"
	}
	val := exports.Get(exportName)
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		val = exports.Get("default")
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, &ComponentNotFoundError{
			Path:      path,
			Export:    exportName,
			Available: sortedKeys(exports),
		}
	}
	fn, ok := goja.AssertFunction(val)
	if !ok {
		return nil, fmt.Errorf("export %q of %q is not a renderable component (got %s)", exportName, path, val.ExportType())
	}

	return &Component{
		SourcePath: path,
		ExportName: exportName,
		fn:         fn,
		injectHead: strings.HasPrefix(source, interceptor.HeadInjectMarker),
	}, nil
}

// RenderToString invokes the component with props, slots and a render
// context, returning the HTML string. Script exceptions surface as errors;
// the caller decides how to wrap them.
func (h *Host) RenderToString(ctx context.Context, c *Component, in RenderInput) (html string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	stop := context.AfterFunc(ctx, func() {
		h.vm.Interrupt(ctx.Err())
	})
	defer func() {
		stop()
		h.vm.ClearInterrupt()
	}()

	props := in.Props
	if props == nil {
		props = map[string]any{}
	}
	slots := in.Slots
	if slots == nil {
		slots = map[string]string{}
	}

	head := h.vm.NewArray()
	renderCtx := h.vm.NewObject()
	_ = renderCtx.Set("request", map[string]any{"url": in.Request})
	_ = renderCtx.Set("adapters", map[string]any{
		"server": adapterNames(h.server),
		"client": adapterNames(h.client),
	})
	_ = renderCtx.Set("injectHead", c.injectHead)
	_ = renderCtx.Set("head", head)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("component render panicked: %v", r)
		}
	}()

	result, err := c.fn(goja.Undefined(), h.vm.ToValue(props), h.vm.ToValue(slots), renderCtx)
	if err != nil {
		return "", err
	}
	out, ok := result.Export().(string)
	if !ok {
		return "", fmt.Errorf("component %q rendered a %s, expected an HTML string", c.SourcePath, result.ExportType())
	}

	if c.injectHead {
		var headParts []string
		_ = h.vm.ExportTo(head, &headParts)
		if len(headParts) > 0 {
			out = strings.Join(headParts, "") + out
		}
	}
	return out, nil
}

// loadModule evaluates the module at path as a CommonJS module with a
// per-load cache, so relative requires resolve while nothing persists
// across top-level loads.
func (h *Host) loadModule(path string, cache map[string]*goja.Object) (string, *goja.Object, error) {
	clean := stripQuery(path)
	if exports, ok := cache[clean]; ok {
		return "", exports, nil
	}

	src, err := os.ReadFile(clean)
	if err != nil {
		return "", nil, fmt.Errorf("loading component module %q: %w", path, err)
	}
	source := string(src)

	prg, err := goja.Compile(clean, "(function(module, exports, require) {\n"+source+"\n})", false)
	if err != nil {
		return "", nil, fmt.Errorf("compiling component module %q: %w", path, err)
	}
	fnVal, err := h.vm.RunProgram(prg)
	if err != nil {
		return "", nil, fmt.Errorf("evaluating component module %q: %w", path, err)
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return "", nil, fmt.Errorf("evaluating component module %q: wrapper is not a function", path)
	}

	exports := h.vm.NewObject()
	module := h.vm.NewObject()
	_ = module.Set("exports", exports)
	cache[clean] = exports

	requireFn := h.vm.ToValue(func(spec string) goja.Value {
		if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
			panic(h.vm.NewTypeError("require(%q): only relative module paths are supported in component modules", spec))
		}
		dep := filepath.Join(filepath.Dir(clean), filepath.FromSlash(spec))
		_, depExports, err := h.loadModule(dep, cache)
		if err != nil {
			panic(h.vm.NewGoError(err))
		}
		return depExports
	})

	if _, err := fn(goja.Undefined(), module, exports, requireFn); err != nil {
		delete(cache, clean)
		return "", nil, fmt.Errorf("evaluating component module %q: %w", path, err)
	}

	// Respect module.exports reassignment.
	final := module.Get("exports")
	finalObj, ok := final.(*goja.Object)
	if !ok {
		return "", nil, fmt.Errorf("component module %q: module.exports is not an object", path)
	}
	cache[clean] = finalObj
	return source, finalObj, nil
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

func sortedKeys(obj *goja.Object) []string {
	keys := obj.Keys()
	sort.Strings(keys)
	return keys
}

func adapterNames(adapters []Adapter) []string {
	names := make([]string, 0, len(adapters))
	for _, a := range adapters {
		names = append(names, a.Name)
	}
	return names
}
