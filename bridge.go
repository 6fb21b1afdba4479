package astrobridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/astrobridge/astrobridge/internal/browser"
	"github.com/astrobridge/astrobridge/internal/codec"
	"github.com/astrobridge/astrobridge/internal/command"
	"github.com/astrobridge/astrobridge/internal/config"
	"github.com/astrobridge/astrobridge/internal/renderer"
)

// Bridge joins one browser-side environment to the host-side render
// command. Most tests use the process-wide default bridge through the
// package-level functions; New builds isolated bridges when tests need
// separate documents.
type Bridge struct {
	env    *browser.Environment
	cmd    *command.Host
	logger *zap.Logger
}

type bridgeConfig struct {
	logger   *zap.Logger
	loader   browser.ScriptLoader
	settings *config.Settings
	renderer *renderer.Host
}

// Option configures a Bridge.
type Option func(*bridgeConfig)

// WithLogger sets the bridge logger (default: nop).
func WithLogger(l *zap.Logger) Option {
	return func(c *bridgeConfig) { c.logger = l }
}

// WithScriptLoader sets the resolver for external script srcs in injected
// markup.
func WithScriptLoader(l browser.ScriptLoader) Option {
	return func(c *bridgeConfig) { c.loader = l }
}

// WithSettings replaces the environment-derived settings.
func WithSettings(s config.Settings) Option {
	return func(c *bridgeConfig) { c.settings = &s }
}

// WithRenderer uses a specific renderer host instead of the shared
// process-wide one.
func WithRenderer(r *renderer.Host) Option {
	return func(c *bridgeConfig) { c.renderer = r }
}

// New creates an isolated bridge: its own document, script runtime and
// mount registry. The renderer host is shared process-wide unless
// WithRenderer overrides it.
func New(ctx context.Context, opts ...Option) (*Bridge, error) {
	var cfg bridgeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	envOpts := []browser.EnvOption{browser.WithLogger(logger)}
	if cfg.loader != nil {
		envOpts = append(envOpts, browser.WithScriptLoader(cfg.loader))
	}
	if cfg.settings != nil {
		envOpts = append(envOpts, browser.WithSettings(*cfg.settings))
	}
	env, err := browser.NewEnvironment(ctx, envOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating browser environment: %w", err)
	}

	r := cfg.renderer
	if r == nil {
		r = command.SharedRenderer(logger)
	}
	cmd := command.NewHost(ctx, r, env.Settings().BaseURL, logger)

	b := &Bridge{env: env, cmd: cmd, logger: logger.Named("bridge")}
	if err := b.registerHarnessCommand(); err != nil {
		cmd.Close()
		env.Close()
		return nil, fmt.Errorf("registering render command: %w", err)
	}
	return b, nil
}

// Environment exposes the browser-side environment, for tests that need
// to inspect the document or seed script globals.
func (b *Bridge) Environment() *browser.Environment { return b.env }

// Render validates the component reference, encodes props, executes the
// host-side render command, injects the returned HTML, and wraps the mount
// in the query façade.
func (b *Bridge) Render(ctx context.Context, component any, opts *RenderOptions) (*RenderResult, error) {
	ref, err := asComponentReference(component)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &RenderOptions{}
	}

	encoded, err := codec.EncodeProps(opts.Props)
	if err != nil {
		return nil, err
	}

	html, err := b.cmd.RenderRemote(ctx, ref.SourcePath, ref.ExportName, encoded, opts.Slots)
	if err != nil {
		return nil, err
	}

	mount, err := b.env.Inject(html, browser.InjectOptions{
		Container:   opts.Container,
		BaseElement: opts.BaseElement,
	})
	if err != nil {
		return nil, err
	}

	// Query scope: the caller's baseElement when given, otherwise the
	// container itself.
	queryBase := opts.BaseElement
	if queryBase == nil {
		queryBase = mount.Container()
	}
	return &RenderResult{
		mount:   mount,
		base:    queryBase,
		Queries: browser.NewQueries(queryBase),
	}, nil
}

// Cleanup tears down every live mount of this bridge's environment.
func (b *Bridge) Cleanup() error {
	return b.env.Cleanup()
}

// WaitForHydration blocks until all hydration markers within scope clear.
func (b *Bridge) WaitForHydration(ctx context.Context, scope Scope, opts ...WaitOption) error {
	return b.env.WaitForHydration(ctx, scope, opts...)
}

// Close shuts down the bridge's command host and browser environment.
func (b *Bridge) Close() error {
	b.cmd.Close()
	return b.env.Close()
}

// registerHarnessCommand exposes the render command to restricted-side
// scripts under the harness namespace, callback style:
//
//	__astrobridge.render(path, exportName, encodedProps, slots, cb)
//
// cb receives (error, html); the command itself runs off-loop and the
// callback is scheduled back onto the event loop.
func (b *Bridge) registerHarnessCommand() error {
	rt := b.env.Runtime()
	return rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		ns := vm.NewObject()
		if err := ns.Set("render", func(call goja.FunctionCall) goja.Value {
			path := call.Argument(0).String()
			exportName := call.Argument(1).String()
			encodedProps := call.Argument(2).String()
			slots := map[string]string{}
			if arg := call.Argument(3); !goja.IsUndefined(arg) && !goja.IsNull(arg) {
				if err := vm.ExportTo(arg, &slots); err != nil {
					panic(vm.NewTypeError("render: slots must be an object of HTML strings"))
				}
			}
			cb, ok := goja.AssertFunction(call.Argument(4))
			if !ok {
				panic(vm.NewTypeError("render: callback required"))
			}
			go func() {
				html, err := b.cmd.RenderRemote(context.Background(), path, exportName, encodedProps, slots)
				rt.RunOnLoop(func(vm *goja.Runtime) {
					if err != nil {
						_, _ = cb(goja.Undefined(), vm.ToValue(err.Error()), goja.Null())
						return
					}
					_, _ = cb(goja.Undefined(), goja.Null(), vm.ToValue(html))
				})
			}()
			return goja.Undefined()
		}); err != nil {
			return err
		}
		return vm.Set("__astrobridge", ns)
	})
}

// Default bridge, constructed lazily and exactly once even under
// concurrent first use.
var (
	defaultOnce   sync.Once
	defaultBridge *Bridge
	defaultErr    error
)

// Default returns the process-wide bridge, constructing it on first use.
func Default() (*Bridge, error) {
	defaultOnce.Do(func() {
		defaultBridge, defaultErr = New(context.Background())
	})
	return defaultBridge, defaultErr
}
