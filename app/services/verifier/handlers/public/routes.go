package public

import (
	"net/http"

	"github.com/rainblock/verifier/foundation/web"
)

// Routes binds every public endpoint to app under the v1 group.
func Routes(app *web.App, h Handlers) {
	const version = "v1"

	app.Handle(http.MethodGet, version, "/handshake", h.Handshake)
	app.Handle(http.MethodPost, version, "/tx/submit", h.SubmitTransaction)
	app.Handle(http.MethodGet, version, "/events", h.Events)
}
