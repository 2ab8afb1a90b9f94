package middleware

import (
	"log/slog"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/gatekeeper"
)

// SubjectFunc extracts the authenticated subject from a request. It returns
// nil for anonymous callers.
type SubjectFunc func(r *http.Request) *gatekeeper.Subject

// ForgeSubjectFunc is SubjectFunc for forge handlers.
type ForgeSubjectFunc func(ctx forge.Context) *gatekeeper.Subject

type config struct {
	subject      SubjectFunc
	forgeSubject ForgeSubjectFunc
	logger       *slog.Logger
}

// Option configures Gate and Require.
type Option func(*config)

// WithSubjectFunc sets how Gate obtains the subject. The default reads
// gatekeeper.SubjectFromContext on the request context.
func WithSubjectFunc(fn SubjectFunc) Option { return func(c *config) { c.subject = fn } }

// WithForgeSubjectFunc sets how Require obtains the subject. The default
// reads gatekeeper.SubjectFromContext, then the forge user ID.
func WithForgeSubjectFunc(fn ForgeSubjectFunc) Option {
	return func(c *config) { c.forgeSubject = fn }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

func newConfig(opts []Option) *config {
	c := &config{
		subject:      subjectFromRequest,
		forgeSubject: subjectFromForge,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func subjectFromRequest(r *http.Request) *gatekeeper.Subject {
	return gatekeeper.SubjectFromContext(r.Context())
}

func subjectFromForge(ctx forge.Context) *gatekeeper.Subject {
	if s := gatekeeper.SubjectFromContext(ctx.Context()); s != nil {
		return s
	}
	if userID := forge.UserIDFromContext(ctx.Context()); userID != "" {
		return &gatekeeper.Subject{ID: userID}
	}
	return nil
}
