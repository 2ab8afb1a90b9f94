// Package api provides read-only HTTP handlers for inspecting the
// gatekeeper engine: explaining decisions, browsing permissions and
// querying the check log.
package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/gatekeeper"
)

// API wires all gatekeeper HTTP handlers together.
type API struct {
	eng    *gatekeeper.Engine
	router forge.Router
}

// New creates an API from an Engine and a Forge router.
func New(eng *gatekeeper.Engine, router forge.Router) *API {
	return &API{eng: eng, router: router}
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	if a.router == nil {
		a.router = forge.NewRouter()
	}
	if err := a.RegisterRoutes(a.router); err != nil {
		panic("gatekeeper: register routes: " + err.Error())
	}
	return a.router.Handler()
}

// RegisterRoutes registers all API routes into the given Forge router.
func (a *API) RegisterRoutes(router forge.Router) error {
	registerers := []func(forge.Router) error{
		a.registerCheckRoutes,
		a.registerPermissionRoutes,
		a.registerCheckLogRoutes,
	}
	for _, fn := range registerers {
		if err := fn(router); err != nil {
			return err
		}
	}
	return nil
}
