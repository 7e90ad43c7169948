package mid

import (
	"context"
	"net/http"

	"github.com/rainblock/verifier/foundation/web"
	"go.uber.org/zap"
)

// Errors handles errors coming out of the call chain, logging the
// trusted/untrusted distinction and writing the appropriate response.
func Errors(log *zap.SugaredLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if err := handler(ctx, w, r); err != nil {
				v, verr := web.GetValues(ctx)
				traceID := ""
				if verr == nil {
					traceID = v.TraceID
				}
				log.Errorw("ERROR", "traceid", traceID, "error", err)

				var verrs *web.ValidationError
				if ok := web.AsValidationError(err, &verrs); ok {
					if respErr := web.Respond(ctx, w, verrs.Fields, http.StatusBadRequest); respErr != nil {
						return respErr
					}
					return nil
				}

				trusted := web.GetTrusted(err)
				if trusted != nil {
					if respErr := web.RespondError(ctx, w, trusted.Error(), trusted.Status); respErr != nil {
						return respErr
					}
					return nil
				}

				if respErr := web.RespondError(ctx, w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError); respErr != nil {
					return respErr
				}

				if web.IsShutdown(err) {
					return err
				}
			}

			return nil
		}

		return h
	}

	return m
}
