package mid

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rainblock/verifier/foundation/web"
)

// Panics recovers from panics in the call chain below it and converts
// the panic into a plain error so the rest of the middleware chain can
// handle it uniformly.
func Panics() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("panic: %v: %s", rec, debug.Stack())
				}
			}()

			return handler(ctx, w, r)
		}

		return h
	}

	return m
}
