package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"

	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the sqlite executor
)

// Migrations is the grove migration group for the gatekeeper store (SQLite).
var Migrations = migrate.NewGroup("gatekeeper")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_permissions",
			Version: "20250301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS gatekeeper_permissions (
    id              INTEGER PRIMARY KEY,
    external_id     TEXT NOT NULL UNIQUE,
    creator_id      TEXT NOT NULL,
    subject         TEXT NOT NULL,
    object          TEXT NOT NULL,
    action          TEXT NOT NULL,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_gatekeeper_permissions_lookup ON gatekeeper_permissions (object, action, subject);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS gatekeeper_permissions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_permission_conditions",
			Version: "20250301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS gatekeeper_permission_conditions (
    id              INTEGER PRIMARY KEY,
    external_id     TEXT NOT NULL UNIQUE,
    permission_id   INTEGER NOT NULL REFERENCES gatekeeper_permissions(id) ON DELETE CASCADE,
    creator_id      TEXT NOT NULL,
    name            TEXT NOT NULL,
    value           TEXT NOT NULL,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_gatekeeper_conditions_permission ON gatekeeper_permission_conditions (permission_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS gatekeeper_permission_conditions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_resources",
			Version: "20250301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS gatekeeper_resources (
    kind            TEXT NOT NULL,
    id              TEXT NOT NULL,
    creator_id      TEXT NOT NULL,
    owner_id        TEXT,
    translator_id   TEXT,
    visible         INTEGER,
    language        TEXT,
    number          INTEGER,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,

    PRIMARY KEY (kind, id)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS gatekeeper_resources`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_check_logs",
			Version: "20250301000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS gatekeeper_check_logs (
    id              TEXT PRIMARY KEY,
    subject_id      TEXT NOT NULL DEFAULT '',
    method          TEXT NOT NULL,
    path            TEXT NOT NULL,
    resource_kind   TEXT NOT NULL,
    resource_id     TEXT NOT NULL DEFAULT '',
    decision        TEXT NOT NULL,
    reason          TEXT NOT NULL DEFAULT '',
    permission_id   TEXT NOT NULL DEFAULT '',
    eval_time_ns    INTEGER NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_gatekeeper_clogs_subject ON gatekeeper_check_logs (subject_id);
CREATE INDEX IF NOT EXISTS idx_gatekeeper_clogs_resource ON gatekeeper_check_logs (resource_kind, resource_id);
CREATE INDEX IF NOT EXISTS idx_gatekeeper_clogs_decision ON gatekeeper_check_logs (decision);
CREATE INDEX IF NOT EXISTS idx_gatekeeper_clogs_created ON gatekeeper_check_logs (created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS gatekeeper_check_logs`)
				return err
			},
		},
	)
}
