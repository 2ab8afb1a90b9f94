package gatekeeper

import "context"

type contextKey int

const ctxKeySubject contextKey = iota

// WithSubject returns a context carrying the authenticated subject. The
// authentication step in front of the gate calls this; a context without a
// subject is anonymous.
func WithSubject(ctx context.Context, s *Subject) context.Context {
	return context.WithValue(ctx, ctxKeySubject, s)
}

// SubjectFromContext returns the subject stored by WithSubject, or nil.
func SubjectFromContext(ctx context.Context) *Subject {
	s, ok := ctx.Value(ctxKeySubject).(*Subject)
	if !ok {
		return nil
	}
	return s
}
