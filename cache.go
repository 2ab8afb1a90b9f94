package gatekeeper

import "context"

// Cache stores check results keyed by subject and request path.
//
// A cached allow may outlive a change to the resource attributes it was
// decided on; keep the TTL short when conditions reference mutable
// attributes.
type Cache interface {
	// Get returns a cached check result, if available.
	Get(ctx context.Context, subject *Subject, path ParsedPath) (*CheckResult, bool)

	// Set stores a check result in the cache.
	Set(ctx context.Context, subject *Subject, path ParsedPath, result *CheckResult)

	// InvalidateAll drops every cached result. The engine calls it after any
	// permission is created, updated or deleted.
	InvalidateAll(ctx context.Context)

	// InvalidateSubject removes all cached results for one subject ID.
	InvalidateSubject(ctx context.Context, subjectID string)
}
