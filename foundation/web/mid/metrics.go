package mid

import (
	"context"
	"expvar"
	"net/http"
	"runtime"

	"github.com/rainblock/verifier/foundation/web"
)

var m = struct {
	goroutines *expvar.Int
	requests   *expvar.Int
	errors     *expvar.Int
}{
	goroutines: expvar.NewInt("goroutines"),
	requests:   expvar.NewInt("requests"),
	errors:     expvar.NewInt("errors"),
}

// Metrics updates program counters exposed under /debug/vars.
func Metrics() web.Middleware {
	mw := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)

			m.requests.Add(1)

			if m.requests.Value()%100 == 0 {
				m.goroutines.Set(int64(runtime.NumGoroutine()))
			}

			if err != nil {
				m.errors.Add(1)
			}

			return err
		}

		return h
	}

	return mw
}
