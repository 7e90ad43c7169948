// Package handlers assembles the verifier's public (client-facing) and
// private (peer-facing) HTTP surfaces out of the route groups in its
// public and private subpackages, mirroring the teacher's two-mux
// layout in app/services/node/handlers.
package handlers

import (
	"context"
	"expvar"
	"net/http"
	"net/http/pprof"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/rainblock/verifier/app/services/verifier/handlers/private"
	"github.com/rainblock/verifier/app/services/verifier/handlers/public"
	"github.com/rainblock/verifier/foundation/blockchain/learner"
	"github.com/rainblock/verifier/foundation/blockchain/peer"
	"github.com/rainblock/verifier/foundation/blockchain/txqueue"
	"github.com/rainblock/verifier/foundation/events"
	"github.com/rainblock/verifier/foundation/web"
	"github.com/rainblock/verifier/foundation/web/mid"
	"go.uber.org/zap"
)

// MuxConfig contains every dependency the public and private muxes
// need to wire their handler groups.
type MuxConfig struct {
	Shutdown    chan os.Signal
	Log         *zap.SugaredLogger
	Queue       *txqueue.Queue
	Beneficiary common.Address
	Evts        *events.Events
	Learner     *learner.Learner
	Peers       *peer.Set
	Self        string
}

// PublicMux constructs the client-facing HTTP surface: handshake,
// submit transaction, and the live event feed.
func PublicMux(cfg MuxConfig) http.Handler {
	app := web.NewApp(
		cfg.Shutdown,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Metrics(),
		mid.Cors("*"),
		mid.Panics(),
	)

	preflight := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error { return nil }
	app.Handle(http.MethodOptions, "", "/*", preflight, mid.Cors("*"))

	public.Routes(app, public.Handlers{
		Log:         cfg.Log,
		Queue:       cfg.Queue,
		Beneficiary: cfg.Beneficiary,
		WS:          websocket.Upgrader{},
		Evts:        cfg.Evts,
	})

	return app
}

// PrivateMux constructs the peer-facing HTTP surface: the three
// advertise streams.
func PrivateMux(cfg MuxConfig) http.Handler {
	app := web.NewApp(
		cfg.Shutdown,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Metrics(),
		mid.Panics(),
	)

	preflight := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error { return nil }
	app.Handle(http.MethodOptions, "", "/*", preflight, mid.Cors("*"))

	private.Routes(app, private.Handlers{
		Log:     cfg.Log,
		Learner: cfg.Learner,
		Peers:   cfg.Peers,
		Self:    cfg.Self,
	})

	return app
}

// DebugStandardLibraryMux registers the standard library's debug
// endpoints into a dedicated mux, bypassing http.DefaultServeMux so a
// dependency can't silently inject a handler into it.
func DebugStandardLibraryMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	return mux
}

// DebugMux registers the standard library debug routes plus a basic
// liveness check for this build.
func DebugMux(build string, log *zap.SugaredLogger) http.Handler {
	mux := DebugStandardLibraryMux()

	mux.HandleFunc("/debug/liveness", func(w http.ResponseWriter, r *http.Request) {
		status := struct {
			Status string `json:"status"`
			Build  string `json:"build"`
			Host   string `json:"host"`
		}{Status: "up", Build: build}
		status.Host, _ = os.Hostname()

		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"status":"` + status.Status + `","build":"` + status.Build + `","host":"` + status.Host + `"}`)); err != nil {
			log.Errorw("liveness", "ERROR", err)
		}
	})

	return mux
}
