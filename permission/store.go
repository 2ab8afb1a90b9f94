package permission

import (
	"context"

	"github.com/xraph/gatekeeper/id"
)

// Store defines persistence operations for permissions and their conditions.
type Store interface {
	// ListCandidates returns the permissions matching q, each with its
	// conditions loaded, ordered by creation time.
	ListCandidates(ctx context.Context, q *CandidateQuery) ([]*Permission, error)

	// CreatePermission persists p and its conditions, assigning row IDs.
	CreatePermission(ctx context.Context, p *Permission) error

	// GetPermission retrieves a permission with its conditions.
	GetPermission(ctx context.Context, permID id.PermissionID) (*Permission, error)

	// UpdatePermission replaces subject/object/action and the full
	// condition set of an existing permission.
	UpdatePermission(ctx context.Context, p *Permission) error

	// DeletePermission removes a permission and its conditions.
	DeletePermission(ctx context.Context, permID id.PermissionID) error

	// ListPermissions returns permissions matching the filter, with conditions.
	ListPermissions(ctx context.Context, filter *ListFilter) ([]*Permission, error)

	// CountPermissions returns the number of permissions matching the filter.
	CountPermissions(ctx context.Context, filter *ListFilter) (int64, error)
}
