package resource

import (
	"context"

	"github.com/google/uuid"
)

// Store is the read side the resolver uses plus the write side owning
// services use to keep projections current.
type Store interface {
	// GetResource returns the record for kind/id, or an error wrapping
	// ErrNotFound.
	GetResource(ctx context.Context, kind Kind, resourceID uuid.UUID) (*Record, error)

	// PutResource creates or replaces a record.
	PutResource(ctx context.Context, r *Record) error

	// DeleteResource removes a record. Deleting a missing record is not an error.
	DeleteResource(ctx context.Context, kind Kind, resourceID uuid.UUID) error
}
