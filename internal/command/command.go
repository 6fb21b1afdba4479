// Package command implements the cross-runtime render command: an explicit
// message-passing bridge between the restricted caller and the privileged
// host goroutine that owns the renderer. Requests are serialized strings,
// responses carry the rendered HTML or a typed error; nothing partial ever
// crosses back.
package command

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/astrobridge/astrobridge/internal/codec"
	"github.com/astrobridge/astrobridge/internal/renderer"
)

// Request describes one render to execute on the host side. Props arrive
// already encoded by the codec; slots are raw HTML and pass through.
type Request struct {
	ID            string
	ComponentPath string
	ExportName    string
	EncodedProps  string
	Slots         map[string]string
}

// Response is the host's answer to one Request.
type Response struct {
	HTML string
	Err  error
}

// RenderFailure wraps an exception thrown by the renderer while rendering
// a component.
type RenderFailure struct {
	Path  string
	Cause error
}

func (e *RenderFailure) Error() string {
	return fmt.Sprintf("rendering component %q failed: %v", e.Path, e.Cause)
}

func (e *RenderFailure) Unwrap() error { return e.Cause }

type envelope struct {
	ctx  context.Context
	req  Request
	resp chan Response
}

// Host executes render commands on a dedicated goroutine. Sequential
// dispatches are fully ordered; two renders of the same component path in
// a row cannot race because a single goroutine serves them.
type Host struct {
	renderer *renderer.Host
	baseURL  string
	logger   *zap.Logger
	requests chan envelope
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewHost starts a command host backed by the given renderer. baseURL is
// the synthetic request URL handed to every render.
func NewHost(ctx context.Context, r *renderer.Host, baseURL string, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	hostCtx, cancel := context.WithCancel(context.Background())
	h := &Host{
		renderer: r,
		baseURL:  baseURL,
		logger:   logger.Named("command"),
		requests: make(chan envelope),
		ctx:      hostCtx,
		cancel:   cancel,
	}
	if ctx.Done() != nil {
		context.AfterFunc(ctx, func() { h.Close() })
	}
	go h.serve()
	return h
}

// Close stops the host goroutine. In-flight requests complete; later
// dispatches fail.
func (h *Host) Close() {
	h.cancel()
}

// RenderRemote executes one render command and returns the complete HTML
// string, or the first error encountered. Every error is terminal for the
// call; no partial HTML is returned.
func (h *Host) RenderRemote(ctx context.Context, componentPath, exportName, encodedProps string, slots map[string]string) (string, error) {
	env := envelope{
		ctx: ctx,
		req: Request{
			ID:            uuid.NewString(),
			ComponentPath: componentPath,
			ExportName:    exportName,
			EncodedProps:  encodedProps,
			Slots:         slots,
		},
		resp: make(chan Response, 1),
	}

	select {
	case h.requests <- env:
	case <-h.ctx.Done():
		return "", errors.New("render command host is closed")
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case resp := <-env.resp:
		return resp.HTML, resp.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (h *Host) serve() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case env := <-h.requests:
			html, err := h.handle(env.ctx, env.req)
			if err != nil {
				h.logger.Debug("render command failed",
					zap.String("id", env.req.ID),
					zap.String("path", env.req.ComponentPath),
					zap.Error(err))
			}
			env.resp <- Response{HTML: html, Err: err}
		}
	}
}

// handle runs entirely on the host goroutine: load fresh, resolve export,
// decode props, render with the synthetic base request.
func (h *Host) handle(ctx context.Context, req Request) (string, error) {
	comp, err := h.renderer.LoadComponent(req.ComponentPath, req.ExportName)
	if err != nil {
		var notFound *renderer.ComponentNotFoundError
		if errors.As(err, &notFound) {
			return "", err
		}
		return "", &RenderFailure{Path: req.ComponentPath, Cause: err}
	}

	props, err := codec.DecodeProps(req.EncodedProps)
	if err != nil {
		return "", err
	}

	html, err := h.renderer.RenderToString(ctx, comp, renderer.RenderInput{
		Props:   props,
		Slots:   req.Slots,
		Request: h.baseURL,
	})
	if err != nil {
		return "", &RenderFailure{Path: req.ComponentPath, Cause: err}
	}
	return html, nil
}

// Process-wide renderer host. Construction is lazy and single-flight: the
// first caller builds it with whatever adapters were registered by then,
// concurrent first callers wait for and reuse that construction.
var (
	sharedMu       sync.Mutex
	sharedAdapters []renderer.Adapter
	sharedBuilt    bool
	sharedOnce     sync.Once
	sharedHost     *renderer.Host
)

// RegisterAdapter records a framework adapter for the shared renderer
// host. It must run before the first render; afterwards it fails.
func RegisterAdapter(a renderer.Adapter) error {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedBuilt {
		return fmt.Errorf("adapter %q registered after the renderer host was constructed", a.Name)
	}
	sharedAdapters = append(sharedAdapters, a)
	return nil
}

// SharedRenderer returns the process-wide renderer host, constructing it
// exactly once.
func SharedRenderer(logger *zap.Logger) *renderer.Host {
	sharedOnce.Do(func() {
		sharedMu.Lock()
		adapters := make([]renderer.Adapter, len(sharedAdapters))
		copy(adapters, sharedAdapters)
		sharedBuilt = true
		sharedMu.Unlock()
		sharedHost = renderer.NewHost(logger, adapters...)
	})
	return sharedHost
}
