// Package web wraps httptreemux with the application's signature
// Handler type, a cooperative-shutdown signal, and small per-request
// context values — the same thin layer every handler group in this
// verifier is built on.
package web

import (
	"context"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/dimfeld/httptreemux/v5"
	"github.com/google/uuid"
)

// A Handler is the signature all application handlers and middleware
// must implement.
type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// A Middleware wraps a Handler with cross-cutting behavior and returns
// a new Handler to register in its place.
type Middleware func(Handler) Handler

// App is the entrypoint into the application's HTTP surface. It wraps
// an httptreemux mux, holds the ordered list of middleware applied to
// every route, and owns the channel used to request a graceful
// shutdown from deep inside a handler.
type App struct {
	mux      *httptreemux.ContextMux
	shutdown chan os.Signal
	mw       []Middleware
}

// NewApp constructs an App, wiring mw as the middleware chain applied,
// innermost-last, to every handler registered with Handle.
func NewApp(shutdown chan os.Signal, mw ...Middleware) *App {
	return &App{
		mux:      httptreemux.NewContextMux(),
		shutdown: shutdown,
		mw:       mw,
	}
}

// SignalShutdown is used when an integrity issue is identified, making
// it necessary to shut the service down.
func (a *App) SignalShutdown() {
	a.shutdown <- syscall.SIGTERM
}

// ServeHTTP implements http.Handler, delegating to the wrapped mux.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// Handle associates a method and URL pattern, under the given version
// group, with a specific Handler. The app's own middleware wraps
// first, then any route-specific middleware given here wraps
// innermost, closest to the handler.
func (a *App) Handle(method, group, path string, handler Handler, mw ...Middleware) {
	handler = wrapMiddleware(mw, handler)
	handler = wrapMiddleware(a.mw, handler)

	h := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		v := Values{
			TraceID: uuid.NewString(),
			Now:     time.Now(),
		}
		ctx = context.WithValue(ctx, valuesKey, &v)

		if err := handler(ctx, w, r); err != nil {
			if IsShutdown(err) {
				a.SignalShutdown()
			}
		}
	}

	finalPath := path
	if group != "" {
		finalPath = "/" + group + path
	}

	a.mux.Handle(method, finalPath, h)
}

func wrapMiddleware(mw []Middleware, handler Handler) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		if mw[i] != nil {
			handler = mw[i](handler)
		}
	}
	return handler
}
