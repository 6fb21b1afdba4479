// Package interceptor implements the build-time module transform that makes
// server-only component files loadable from both runtimes. Host-side loads
// get the compiled module back decorated with a head-inject marker; the
// restricted browser side gets a lightweight component reference literal
// instead of code it could never execute.
package interceptor

import (
	"strconv"
	"strings"
)

// ComponentExtension selects the files the interceptor touches.
const ComponentExtension = ".astro"

// HeadInjectMarker is prepended to server-side component modules. The
// renderer host detects it and keeps inline script blocks in the rendered
// head instead of dropping them.
const HeadInjectMarker = "/* astrobridge:head-inject */"

// Phase orders a plugin relative to the component compiler's own transform.
type Phase string

const (
	// PhasePre runs before the compiler sees the module.
	PhasePre Phase = "pre"
	// PhasePost runs on the compiler's output.
	PhasePost Phase = "post"
)

// TransformOptions describes which runtime is loading the module.
type TransformOptions struct {
	// SSR is true when the privileged host runtime performs the load.
	SSR bool
}

// TransformFunc is the plugin hook contract: given (code, id, options),
// return replacement code and whether a replacement happened.
type TransformFunc func(code, id string, opts TransformOptions) (string, bool)

// Plugin is one registered transform-phase hook.
type Plugin struct {
	Name      string
	Enforce   Phase
	Transform TransformFunc
}

// Transform dispatches a component-file load to the strategy for the
// loading runtime. Non-component files pass through untouched, as do
// malformed ids.
func Transform(code, id string, opts TransformOptions) (string, bool) {
	if !IsComponentFile(id) {
		return code, false
	}
	if opts.SSR {
		return decorateServerModule(code), true
	}
	return replaceWithReference(id), true
}

// IsComponentFile reports whether id names a component module, ignoring any
// bundler query suffix (e.g. "/src/Card.astro?raw").
func IsComponentFile(id string) bool {
	return strings.HasSuffix(stripQuery(id), ComponentExtension)
}

func stripQuery(id string) string {
	if i := strings.IndexByte(id, '?'); i >= 0 {
		return id[:i]
	}
	return id
}

// decorateServerModule passes the compiled module through with the
// head-inject marker prepended exactly once.
func decorateServerModule(code string) string {
	if strings.HasPrefix(code, HeadInjectMarker) {
		return code
	}
	return HeadInjectMarker + "\n" + code
}

// replaceWithReference discards the module body entirely and emits a module
// whose default export is a fixed-shape component reference record.
func replaceWithReference(id string) string {
	path := strconv.Quote(stripQuery(id))
	var b strings.Builder
	b.WriteString("// Replaced by astrobridge: this component only renders in the host runtime.\n")
	b.WriteString("module.exports = {\n")
	b.WriteString("  default: {\n")
	b.WriteString("    isComponentRef: true,\n")
	b.WriteString("    sourcePath: " + path + ",\n")
	b.WriteString("    exportName: \"default\"\n")
	b.WriteString("  }\n")
	b.WriteString("};\n")
	return b.String()
}

// Plugins returns the two hooks the bridge registers with the host
// bundler: the pre-compiler restricted-side replacement and the
// post-compiler server-side decoration.
func Plugins() []Plugin {
	return []Plugin{
		{
			Name:    "astrobridge:component-reference",
			Enforce: PhasePre,
			Transform: func(code, id string, opts TransformOptions) (string, bool) {
				if opts.SSR || !IsComponentFile(id) {
					return code, false
				}
				return replaceWithReference(id), true
			},
		},
		{
			Name:    "astrobridge:head-inject",
			Enforce: PhasePost,
			Transform: func(code, id string, opts TransformOptions) (string, bool) {
				if !opts.SSR || !IsComponentFile(id) {
					return code, false
				}
				return decorateServerModule(code), true
			},
		},
	}
}
