package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/antchfx/htmlquery"
)

// HydrationMarkerAttr is the boolean-style attribute islands carry while
// awaiting client-side takeover. Its absence means the subtree has
// hydrated.
const HydrationMarkerAttr = "ssr"

// HydrationTimeoutError reports a wait that elapsed with markers still
// present.
type HydrationTimeoutError struct {
	// Remaining is the marker count observed at timeout.
	Remaining int
	// Timeout is the budget that elapsed.
	Timeout time.Duration
}

func (e *HydrationTimeoutError) Error() string {
	return fmt.Sprintf("hydration did not complete within %s: %d island(s) still pending", e.Timeout, e.Remaining)
}

// Scope is anything a hydration wait can be narrowed to: a mount, a render
// result, or a single element handle.
type Scope interface {
	HydrationScope() *Element
}

// Clock abstracts timer creation so the wait state machine is testable
// with injected time. After returns the firing channel and a stop function
// that releases the timer early.
type Clock interface {
	After(d time.Duration) (<-chan time.Time, func())
}

type systemClock struct{}

func (systemClock) After(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTimer(d)
	return t.C, func() { t.Stop() }
}

type waitConfig struct {
	timeout  time.Duration
	interval time.Duration
	clock    Clock
}

// WaitOption tunes a single hydration wait.
type WaitOption func(*waitConfig)

// WithTimeout overrides the configured hydration timeout.
func WithTimeout(d time.Duration) WaitOption {
	return func(c *waitConfig) { c.timeout = d }
}

// WithPollInterval overrides the marker polling interval.
func WithPollInterval(d time.Duration) WaitOption {
	return func(c *waitConfig) { c.interval = d }
}

// WithClock injects a clock, for tests that drive time themselves.
func WithClock(clk Clock) WaitOption {
	return func(c *waitConfig) { c.clock = clk }
}

// WaitForHydration blocks until no hydration markers remain within scope,
// polling at the configured interval. The first check is immediate, so a
// scope with no pending islands resolves without any delay. On timeout the
// poller stops, its timers are released, and a *HydrationTimeoutError
// carrying the remaining count is returned.
func (env *Environment) WaitForHydration(ctx context.Context, scope Scope, opts ...WaitOption) error {
	cfg := waitConfig{
		timeout:  env.settings.HydrationTimeout,
		interval: env.settings.PollInterval,
		clock:    systemClock{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	el := scope.HydrationScope()
	if el == nil {
		return fmt.Errorf("hydration wait: scope has no element")
	}

	if countMarkers(el) == 0 {
		return nil
	}

	deadline, stopDeadline := cfg.clock.After(cfg.timeout)
	defer stopDeadline()

	for {
		tick, stopTick := cfg.clock.After(cfg.interval)
		select {
		case <-ctx.Done():
			stopTick()
			return ctx.Err()
		case <-deadline:
			stopTick()
			return &HydrationTimeoutError{Remaining: countMarkers(el), Timeout: cfg.timeout}
		case <-tick:
			if countMarkers(el) == 0 {
				return nil
			}
		}
	}
}

// countMarkers counts marker-bearing elements within (and including) the
// scope element.
func countMarkers(el *Element) int {
	el.doc.mu.RLock()
	defer el.doc.mu.RUnlock()
	nodes := htmlquery.Find(el.node, "descendant-or-self::*[@"+HydrationMarkerAttr+"]")
	return len(nodes)
}
