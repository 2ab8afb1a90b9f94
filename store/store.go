// Package store defines the aggregate persistence interface. Each subsystem
// (permission, resource, checklog) defines its own store interface and the
// composite Store composes them. Backends: Postgres, SQLite, and Memory.
package store

import (
	"context"

	"github.com/xraph/gatekeeper/checklog"
	"github.com/xraph/gatekeeper/permission"
	"github.com/xraph/gatekeeper/resource"
)

// Store is the aggregate persistence interface. A single backend
// (postgres, sqlite, memory) implements all of the subsystem stores.
type Store interface {
	permission.Store
	resource.Store
	checklog.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
