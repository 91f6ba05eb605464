package mid

import (
	"context"
	"net/http"
	"slices"

	"github.com/ardanlabs/statecore/foundation/web"
)

// Cors lets browser wallets and block explorers served from the specified
// origins query the node and submit transactions. A "*" origin allows
// everyone. The node only exposes reads and transaction submission so only
// GET and POST are advertised.
func Cors(origins ...string) web.Middleware {
	anyOrigin := len(origins) == 0 || slices.Contains(origins, "*")

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			origin := r.Header.Get("Origin")

			switch {
			case anyOrigin:
				w.Header().Set("Access-Control-Allow-Origin", "*")

			case origin != "" && slices.Contains(origins, origin):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")

			default:
				return handler(ctx, w, r)
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Origin, Accept, Content-Type, Content-Length, Accept-Encoding")
			w.Header().Set("Access-Control-Max-Age", "86400")

			// Call the next handler.
			return handler(ctx, w, r)
		}

		return h
	}

	return m
}
