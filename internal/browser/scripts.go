package browser

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ScriptLoader resolves an external script src to its source text. The
// src still carries the cache-defeating query parameter; loaders should
// resolve by path only.
type ScriptLoader interface {
	Load(src string) (string, error)
}

// FileLoader resolves script src paths against a directory root, the way a
// dev server would serve them.
type FileLoader struct {
	Root string
}

// Load reads the file addressed by the src path, ignoring query and
// fragment.
func (l FileLoader) Load(src string) (string, error) {
	u, err := url.Parse(src)
	if err != nil {
		return "", fmt.Errorf("loading script %q: %w", src, err)
	}
	rel := strings.TrimPrefix(u.Path, "/")
	if rel == "" {
		return "", fmt.Errorf("loading script %q: empty path", src)
	}
	b, err := os.ReadFile(filepath.Join(l.Root, filepath.FromSlash(rel)))
	if err != nil {
		return "", fmt.Errorf("loading script %q: %w", src, err)
	}
	return string(b), nil
}

// scriptSpec preserves one extracted script element: its resolved src
// (already cache-busted for external scripts), type and inline text.
type scriptSpec struct {
	src    string
	typ    string
	inline string
}

func (s scriptSpec) isModule() bool { return s.typ == "module" }

// ScriptRunner executes extracted scripts on the browser runtime. Module
// scripts with an external src execute at most once per full URL, the way
// a browser caches module instances; the cache-bust parameter added at
// injection time is what forces re-execution across mounts.
type ScriptRunner struct {
	rt     *Runtime
	loader ScriptLoader
	logger *zap.Logger

	mu       sync.Mutex
	executed map[string]struct{}
}

// NewScriptRunner creates a runner bound to the given runtime. loader may
// be nil, in which case external-src scripts fail to load (and are logged,
// not fatal, matching browser behavior for missing assets).
func NewScriptRunner(rt *Runtime, loader ScriptLoader, logger *zap.Logger) *ScriptRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScriptRunner{
		rt:       rt,
		loader:   loader,
		logger:   logger.Named("scripts"),
		executed: make(map[string]struct{}),
	}
}

// Run executes one script. Errors are returned so the caller can decide to
// log rather than abort; a failing script does not fail the mount.
func (r *ScriptRunner) Run(s scriptSpec) error {
	if s.src != "" {
		return r.runExternal(s)
	}
	if strings.TrimSpace(s.inline) == "" {
		return nil
	}
	return r.rt.RunScript("<inline script>", s.inline)
}

func (r *ScriptRunner) runExternal(s scriptSpec) error {
	if s.isModule() {
		r.mu.Lock()
		if _, done := r.executed[s.src]; done {
			r.mu.Unlock()
			r.logger.Debug("module already instantiated, skipping", zap.String("src", s.src))
			return nil
		}
		r.executed[s.src] = struct{}{}
		r.mu.Unlock()
	}
	if r.loader == nil {
		return fmt.Errorf("no script loader configured for external script %q", s.src)
	}
	source, err := r.loader.Load(s.src)
	if err != nil {
		return err
	}
	return r.rt.RunScript(s.src, source)
}
