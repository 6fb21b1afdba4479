// Package browser hosts the restricted-side half of the render bridge: an
// in-memory document, a JavaScript runtime that executes injected scripts,
// the mount registry, and the hydration-wait machinery.
package browser

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/astrobridge/astrobridge/internal/config"
)

// Environment is one browser-side world: a document, its script runtime,
// and the registry of live mounts. Tests usually share the process-wide
// default environment; isolated environments can be created freely.
type Environment struct {
	rt       *Runtime
	doc      *Document
	registry *Registry
	runner   *ScriptRunner
	settings config.Settings
	logger   *zap.Logger
}

type envConfig struct {
	settings *config.Settings
	loader   ScriptLoader
	logger   *zap.Logger
}

// EnvOption configures a new Environment.
type EnvOption func(*envConfig)

// WithSettings replaces the environment-derived settings.
func WithSettings(s config.Settings) EnvOption {
	return func(c *envConfig) { c.settings = &s }
}

// WithScriptLoader sets the resolver for external script srcs.
func WithScriptLoader(l ScriptLoader) EnvOption {
	return func(c *envConfig) { c.loader = l }
}

// WithLogger sets the logger. Default is a nop logger.
func WithLogger(l *zap.Logger) EnvOption {
	return func(c *envConfig) { c.logger = l }
}

// NewEnvironment builds a browser environment: empty document, started
// event loop, DOM bindings installed. Close it to stop the loop.
func NewEnvironment(ctx context.Context, opts ...EnvOption) (*Environment, error) {
	var cfg envConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	settings := config.FromEnv()
	if cfg.settings != nil {
		settings = *cfg.settings
	}
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("browser")

	loader := cfg.loader
	if loader == nil && settings.AssetRoot != "" {
		loader = FileLoader{Root: settings.AssetRoot}
	}

	rt, err := NewRuntime(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting browser runtime: %w", err)
	}
	doc, err := NewDocument(logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("creating document: %w", err)
	}
	if err := installDOM(rt, doc, logger); err != nil {
		rt.Close()
		return nil, fmt.Errorf("installing DOM bindings: %w", err)
	}

	return &Environment{
		rt:       rt,
		doc:      doc,
		registry: NewRegistry(),
		runner:   NewScriptRunner(rt, loader, logger),
		settings: settings,
		logger:   logger,
	}, nil
}

// Document returns the environment's document.
func (env *Environment) Document() *Document { return env.doc }

// Registry returns the environment's mount registry.
func (env *Environment) Registry() *Registry { return env.registry }

// Runtime returns the script runtime, for callers that need to seed
// globals or inspect script side effects.
func (env *Environment) Runtime() *Runtime { return env.rt }

// Settings returns the environment's effective settings.
func (env *Environment) Settings() config.Settings { return env.settings }

// SetScriptLoader replaces the external script resolver.
func (env *Environment) SetScriptLoader(l ScriptLoader) {
	env.runner.loader = l
}

// Cleanup tears down every registered mount: contents cleared, containers
// parented under the default body detached, registry emptied. Idempotent;
// an empty registry is a no-op. Intended to run automatically between
// tests so no DOM leaks across them.
func (env *Environment) Cleanup() error {
	for _, m := range env.registry.snapshot() {
		if err := m.Unmount(); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the environment's script runtime.
func (env *Environment) Close() error {
	return env.rt.Close()
}
