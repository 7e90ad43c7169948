package private

import (
	"net/http"

	"github.com/rainblock/verifier/foundation/web"
)

// Routes binds every peer-facing endpoint to app under the v1 group.
func Routes(app *web.App, h Handlers) {
	const version = "v1"

	app.Handle(http.MethodPost, version, "/advertise/node", h.AdvertiseNode)
	app.Handle(http.MethodPost, version, "/advertise/block", h.AdvertiseBlock)
	app.Handle(http.MethodPost, version, "/advertise/neighbor", h.AdvertiseNeighbor)
}
