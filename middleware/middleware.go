package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/xraph/forge"

	"github.com/xraph/gatekeeper"
	"github.com/xraph/gatekeeper/resource"
)

// Require gates a forge route serving resources of kind. The HTTP verb the
// route is registered for is passed as method; the resource id is taken
// from the route's "id" parameter when it is a UUID.
func Require(eng Checker, method string, kind resource.Kind, opts ...Option) forge.Middleware {
	cfg := newConfig(opts)
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			subject := cfg.forgeSubject(ctx)
			path := routePath(method, kind, ctx.Param("id"))

			result, err := eng.Check(ctx.Context(), subject, path)
			if err != nil {
				cfg.logger.Error("gate: no decision",
					slog.String("method", method),
					slog.String("kind", string(kind)),
					slog.String("error", err.Error()),
				)
				return refuse(ctx, http.StatusInternalServerError, ErrorMessage)
			}
			if result == nil || !result.Allowed {
				return refuse(ctx, http.StatusForbidden, DenyMessage)
			}
			return next(ctx)
		}
	}
}

// routePath builds the path of a forge route the way ParsePath would for
// the equivalent request.
func routePath(method string, kind resource.Kind, rawID string) gatekeeper.ParsedPath {
	path := gatekeeper.ParsedPath{
		Raw:    "/" + string(kind),
		Kind:   kind,
		Method: strings.ToUpper(strings.TrimSpace(method)),
	}
	if rawID != "" {
		path.Raw += "/" + rawID
		if rid, err := uuid.Parse(rawID); err == nil {
			path.ResourceID = rid
		}
	}
	return path
}

func refuse(ctx forge.Context, status int, body string) error {
	ctx.SetHeader("Content-Type", "text/plain; charset=utf-8")
	ctx.SetHeader("Access-Control-Allow-Origin", "*")
	ctx.Response().WriteHeader(status)
	_, err := ctx.Response().Write([]byte(body))
	return err
}
