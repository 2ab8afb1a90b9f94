// Package middleware gates HTTP handlers behind gatekeeper decisions, for
// plain net/http stacks (Gate) and for forge routes (Require).
package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/xraph/gatekeeper"
)

// DenyMessage is the body of every 403 response.
const DenyMessage = "You don't have access to this resource!"

// ErrorMessage is the body of the 500 response sent when no decision
// could be made.
const ErrorMessage = "internal server error"

// Checker decides a single request. *gatekeeper.Engine implements it.
type Checker interface {
	Check(ctx context.Context, subject *gatekeeper.Subject, path gatekeeper.ParsedPath) (*gatekeeper.CheckResult, error)
}

var _ Checker = (*gatekeeper.Engine)(nil)

// Gate returns middleware that runs every request through eng. Allowed
// requests reach next untouched. Denied requests get a 403 and failed
// decisions a 500; next never runs for either.
func Gate(eng Checker, opts ...Option) func(http.Handler) http.Handler {
	cfg := newConfig(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := cfg.subject(r)
			path := gatekeeper.ParsePath(r.Method, r.URL.Path)

			result, err := eng.Check(r.Context(), subject, path)
			switch {
			case err != nil:
				cfg.logger.Error("gate: no decision",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				writeRefusal(w, http.StatusInternalServerError, ErrorMessage)
			case result == nil || !result.Allowed:
				cfg.logger.Debug("gate: denied",
					slog.String("subject", subject.String()),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				writeRefusal(w, http.StatusForbidden, DenyMessage)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func writeRefusal(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
