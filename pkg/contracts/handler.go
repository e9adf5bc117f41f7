// Package contracts holds the small interfaces the application shell and
// the booking handlers agree on.
package contracts

import "github.com/julienschmidt/httprouter"

// Handler is anything that can attach its routes to a router. The
// application shell mounts one Handler for the booking API and one for the
// health endpoints.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}
