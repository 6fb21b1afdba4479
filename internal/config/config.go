// Package config holds the process-wide tunables for the render bridge.
//
// Every setting has a compiled-in default and may be overridden through an
// ASTROBRIDGE_* environment variable, so CI environments can stretch the
// hydration timeout or shrink debug output without touching test code.
package config

import (
	"os"
	"time"

	"github.com/spf13/cast"
)

// Defaults for all bridge settings.
const (
	DefaultHydrationTimeout = 5 * time.Second
	DefaultPollInterval     = 50 * time.Millisecond
	DefaultDebugMaxLength   = 7000
	DefaultBaseURL          = "http://localhost/"
)

// Settings carries the runtime configuration shared by the browser
// environment and the host-side command handler.
type Settings struct {
	// HydrationTimeout is the default budget for WaitForHydration.
	HydrationTimeout time.Duration

	// PollInterval is the hydration marker polling interval.
	PollInterval time.Duration

	// DebugMaxLength bounds the serialized output of Debug calls.
	DebugMaxLength int

	// BaseURL is the synthetic request URL handed to the renderer host.
	BaseURL string

	// AssetRoot is the directory external script src paths resolve against.
	// Empty leaves src resolution to the configured ScriptLoader.
	AssetRoot string
}

// Default returns the compiled-in settings.
func Default() Settings {
	return Settings{
		HydrationTimeout: DefaultHydrationTimeout,
		PollInterval:     DefaultPollInterval,
		DebugMaxLength:   DefaultDebugMaxLength,
		BaseURL:          DefaultBaseURL,
	}
}

// FromEnv returns Default overlaid with any ASTROBRIDGE_* environment
// overrides. Unparseable values fall back to the default rather than
// failing; test tooling should not abort a run over a bad knob.
func FromEnv() Settings {
	s := Default()
	if v := os.Getenv("ASTROBRIDGE_HYDRATION_TIMEOUT"); v != "" {
		if d, err := cast.ToDurationE(v); err == nil && d > 0 {
			s.HydrationTimeout = d
		}
	}
	if v := os.Getenv("ASTROBRIDGE_POLL_INTERVAL"); v != "" {
		if d, err := cast.ToDurationE(v); err == nil && d > 0 {
			s.PollInterval = d
		}
	}
	if v := os.Getenv("ASTROBRIDGE_DEBUG_MAX_LENGTH"); v != "" {
		if n, err := cast.ToIntE(v); err == nil && n > 0 {
			s.DebugMaxLength = n
		}
	}
	if v := os.Getenv("ASTROBRIDGE_BASE_URL"); v != "" {
		s.BaseURL = v
	}
	if v := os.Getenv("ASTROBRIDGE_ASSET_ROOT"); v != "" {
		s.AssetRoot = v
	}
	return s
}
