package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"

	"github.com/astrobridge/astrobridge/internal/goroutineid"
)

// Runtime is the restricted-side JavaScript runtime. All script execution
// for injected markup happens here, serialized by a goja_nodejs event loop.
//
// goja.Runtime is not goroutine-safe; every VM access must go through
// RunOnLoop or RunOnLoopSync. Timers scheduled by injected scripts
// (setTimeout and friends) run on the same loop, so island scripts can
// clear their hydration markers asynchronously while Go-side pollers watch
// the document.
type Runtime struct {
	loop     *eventloop.EventLoop
	registry *require.Registry

	// timeout bounds RunOnLoopSync; injected scripts are expected to yield
	// quickly and hand long-running work to timers.
	timeout time.Duration

	// loopID holds the event loop goroutine's ID once observed. Native
	// callbacks invoked by scripts run on that goroutine; a synchronous
	// round-trip from there would deadlock until the timeout, so
	// RunOnLoopSync refuses it outright.
	loopID atomic.Int64

	mu      sync.RWMutex
	started bool
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
}

// DefaultSyncTimeout bounds synchronous event-loop round-trips.
const DefaultSyncTimeout = 5 * time.Second

// NewRuntime creates and starts a Runtime. The provided context controls
// its lifecycle; cancellation stops the loop. Call Close when done.
func NewRuntime(ctx context.Context) (*Runtime, error) {
	registry := require.NewRegistry()
	loop := eventloop.NewEventLoop(
		eventloop.WithRegistry(registry),
		eventloop.EnableConsole(true),
	)

	childCtx, cancel := context.WithCancel(context.Background())
	rt := &Runtime{
		loop:     loop,
		registry: registry,
		timeout:  DefaultSyncTimeout,
		ctx:      childCtx,
		cancel:   cancel,
	}

	loop.Start()
	loop.RunOnLoop(func(*goja.Runtime) {
		rt.loopID.Store(goroutineid.Get())
	})
	rt.mu.Lock()
	rt.started = true
	rt.mu.Unlock()

	if ctx.Done() != nil {
		context.AfterFunc(ctx, func() {
			_ = rt.Close()
		})
	}

	return rt, nil
}

// Registry returns the CommonJS require registry for native module
// registration.
func (rt *Runtime) Registry() *require.Registry {
	return rt.registry
}

// Close stops the event loop. Safe to call multiple times.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	if rt.stopped {
		rt.mu.Unlock()
		return nil
	}
	rt.stopped = true
	rt.mu.Unlock()

	rt.cancel()
	rt.loop.Stop()
	return nil
}

// Done is closed once the runtime has stopped.
func (rt *Runtime) Done() <-chan struct{} {
	return rt.ctx.Done()
}

// IsRunning reports whether the loop is started and not stopped.
func (rt *Runtime) IsRunning() bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.started && !rt.stopped
}

// RunOnLoop schedules fn on the event loop goroutine. Returns false if the
// loop is not running.
func (rt *Runtime) RunOnLoop(fn func(*goja.Runtime)) bool {
	if !rt.IsRunning() {
		return false
	}
	return rt.loop.RunOnLoop(fn)
}

// RunOnLoopSync schedules fn on the event loop and waits for it to finish.
// Calling it from the loop goroutine itself is an error, not a hang.
func (rt *Runtime) RunOnLoopSync(fn func(*goja.Runtime) error) error {
	rt.mu.RLock()
	if !rt.started || rt.stopped {
		rt.mu.RUnlock()
		return errors.New("event loop not running")
	}
	timeout := rt.timeout
	rt.mu.RUnlock()

	if id := rt.loopID.Load(); id > 0 && goroutineid.Get() == id {
		return errors.New("synchronous call from the event loop goroutine would deadlock")
	}

	errCh := make(chan error, 1)
	if ok := rt.loop.RunOnLoop(func(vm *goja.Runtime) {
		errCh <- fn(vm)
	}); !ok {
		return errors.New("event loop not running")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-errCh:
		return err
	case <-rt.Done():
		return errors.New("runtime stopped before completion")
	case <-timer.C:
		return fmt.Errorf("script operation timed out after %v", timeout)
	}
}

// RunScript compiles and executes JavaScript source on the event loop.
func (rt *Runtime) RunScript(name, code string) error {
	return rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		prg, err := goja.Compile(name, code, true)
		if err != nil {
			return fmt.Errorf("failed to compile %s: %w", name, err)
		}
		if _, err := vm.RunProgram(prg); err != nil {
			return fmt.Errorf("failed to run %s: %w", name, err)
		}
		return nil
	})
}

// SetGlobal sets a global variable in the JavaScript runtime.
func (rt *Runtime) SetGlobal(name string, value any) error {
	return rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		return vm.Set(name, value)
	})
}

// GetGlobal retrieves and exports a global from the JavaScript runtime.
// Missing, null and undefined values all yield nil.
func (rt *Runtime) GetGlobal(name string) (any, error) {
	var result any
	err := rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		val := vm.Get(name)
		if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
			return nil
		}
		result = val.Export()
		return nil
	})
	return result, err
}
