// Package postgres provides a PostgreSQL implementation of the gatekeeper
// composite store using grove ORM with Go-based migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/gatekeeper/checklog"
	"github.com/xraph/gatekeeper/id"
	"github.com/xraph/gatekeeper/permission"
	"github.com/xraph/gatekeeper/resource"
	"github.com/xraph/gatekeeper/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a PostgreSQL implementation of the composite gatekeeper store.
type Store struct {
	db   *grove.DB
	pgdb *pgdriver.PgDB
}

// New creates a new PostgreSQL store.
func New(db *grove.DB) *Store {
	return &Store{
		db:   db,
		pgdb: pgdriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pgdb)
	if err != nil {
		return fmt.Errorf("gatekeeper/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("gatekeeper/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

var snapshot = &driver.TxOptions{IsolationLevel: driver.LevelRepeatableRead, ReadOnly: true}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// ──────────────────────────────────────────────────
// Permission operations
// ──────────────────────────────────────────────────

// ListCandidates loads the matching permissions and their conditions from
// one snapshot, so a concurrent update or delete is seen either wholly or
// not at all.
func (s *Store) ListCandidates(ctx context.Context, q *permission.CandidateQuery) ([]*permission.Permission, error) {
	if len(q.Actions) == 0 || len(q.Subjects) == 0 {
		return []*permission.Permission{}, nil
	}
	tx, err := s.pgdb.BeginTxQuery(ctx, snapshot)
	if err != nil {
		return nil, fmt.Errorf("gatekeeper: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only

	var models []permissionModel
	err = tx.NewSelect(&models).
		Where("object = ?", q.Object).
		Where("action = ANY(?)", q.Actions).
		Where("subject = ANY(?)", q.Subjects).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("gatekeeper: list candidates: %w", err)
	}
	perms, err := withConditions(ctx, tx.NewSelect, models)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("gatekeeper: commit tx: %w", err)
	}
	return perms, nil
}

func (s *Store) CreatePermission(ctx context.Context, p *permission.Permission) error {
	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("gatekeeper: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	var lastPerm []permissionModel
	if err := tx.NewSelect(&lastPerm).OrderExpr("id DESC").Limit(1).Scan(ctx); err != nil {
		return fmt.Errorf("gatekeeper: create permission: %w", err)
	}
	p.ID = 1
	if len(lastPerm) > 0 {
		p.ID = lastPerm[0].ID + 1
	}
	if _, err := tx.NewInsert(permissionToModel(p)).Exec(ctx); err != nil {
		return fmt.Errorf("gatekeeper: create permission: %w", err)
	}

	if len(p.Conditions) > 0 {
		var lastCond []conditionModel
		if err := tx.NewSelect(&lastCond).OrderExpr("id DESC").Limit(1).Scan(ctx); err != nil {
			return fmt.Errorf("gatekeeper: create permission conditions: %w", err)
		}
		next := int64(1)
		if len(lastCond) > 0 {
			next = lastCond[0].ID + 1
		}
		models := make([]conditionModel, len(p.Conditions))
		for i := range p.Conditions {
			p.Conditions[i].ID = next + int64(i)
			p.Conditions[i].PermissionID = p.ID
			models[i] = conditionToModel(&p.Conditions[i])
		}
		if _, err := tx.NewInsert(&models).Exec(ctx); err != nil {
			return fmt.Errorf("gatekeeper: create permission conditions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("gatekeeper: commit tx: %w", err)
	}
	return nil
}

func (s *Store) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	tx, err := s.pgdb.BeginTxQuery(ctx, snapshot)
	if err != nil {
		return nil, fmt.Errorf("gatekeeper: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only

	m := new(permissionModel)
	err = tx.NewSelect(m).Where("external_id = ?", permID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("permission %s: %w", permID, permission.ErrNotFound)
		}
		return nil, fmt.Errorf("gatekeeper: get permission: %w", err)
	}
	perms, err := withConditions(ctx, tx.NewSelect, []permissionModel{*m})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("gatekeeper: commit tx: %w", err)
	}
	return perms[0], nil
}

func (s *Store) UpdatePermission(ctx context.Context, p *permission.Permission) error {
	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("gatekeeper: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	existing := new(permissionModel)
	err = tx.NewSelect(existing).Where("external_id = ?", p.ExternalID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return fmt.Errorf("permission %s: %w", p.ExternalID, permission.ErrNotFound)
		}
		return fmt.Errorf("gatekeeper: update permission: %w", err)
	}
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt

	if _, err := tx.NewUpdate(permissionToModel(p)).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("gatekeeper: update permission: %w", err)
	}
	_, err = tx.NewDelete((*conditionModel)(nil)).
		Where("permission_id = ?", p.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("gatekeeper: clear permission conditions: %w", err)
	}

	if len(p.Conditions) > 0 {
		var lastCond []conditionModel
		if err := tx.NewSelect(&lastCond).OrderExpr("id DESC").Limit(1).Scan(ctx); err != nil {
			return fmt.Errorf("gatekeeper: update permission conditions: %w", err)
		}
		next := int64(1)
		if len(lastCond) > 0 {
			next = lastCond[0].ID + 1
		}
		models := make([]conditionModel, len(p.Conditions))
		for i := range p.Conditions {
			p.Conditions[i].ID = next + int64(i)
			p.Conditions[i].PermissionID = p.ID
			models[i] = conditionToModel(&p.Conditions[i])
		}
		if _, err := tx.NewInsert(&models).Exec(ctx); err != nil {
			return fmt.Errorf("gatekeeper: update permission conditions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("gatekeeper: commit tx: %w", err)
	}
	return nil
}

// DeletePermission relies on ON DELETE CASCADE to remove the conditions.
func (s *Store) DeletePermission(ctx context.Context, permID id.PermissionID) error {
	res, err := s.pgdb.NewDelete((*permissionModel)(nil)).
		Where("external_id = ?", permID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("gatekeeper: delete permission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("gatekeeper: delete permission rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("permission %s: %w", permID, permission.ErrNotFound)
	}
	return nil
}

func (s *Store) ListPermissions(ctx context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	tx, err := s.pgdb.BeginTxQuery(ctx, snapshot)
	if err != nil {
		return nil, fmt.Errorf("gatekeeper: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only

	var models []permissionModel
	q := tx.NewSelect(&models).OrderExpr("created_at ASC, id ASC")
	if filter != nil {
		if filter.Subject != "" {
			q = q.Where("subject = ?", filter.Subject)
		}
		if filter.Object != "" {
			q = q.Where("object = ?", filter.Object)
		}
		if filter.Action != "" {
			q = q.Where("action = ?", filter.Action)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("gatekeeper: list permissions: %w", err)
	}
	perms, err := withConditions(ctx, tx.NewSelect, models)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("gatekeeper: commit tx: %w", err)
	}
	return perms, nil
}

func (s *Store) CountPermissions(ctx context.Context, filter *permission.ListFilter) (int64, error) {
	q := s.pgdb.NewSelect((*permissionModel)(nil))
	if filter != nil {
		if filter.Subject != "" {
			q = q.Where("subject = ?", filter.Subject)
		}
		if filter.Object != "" {
			q = q.Where("object = ?", filter.Object)
		}
		if filter.Action != "" {
			q = q.Where("action = ?", filter.Action)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("gatekeeper: count permissions: %w", err)
	}
	return count, nil
}

// withConditions converts models and attaches each permission's conditions
// in insertion order. sel must belong to the transaction that loaded models.
func withConditions(ctx context.Context, sel func(model ...any) *pgdriver.SelectQuery, models []permissionModel) ([]*permission.Permission, error) {
	result := make([]*permission.Permission, len(models))
	if len(models) == 0 {
		return result, nil
	}
	byID := make(map[int64]*permission.Permission, len(models))
	ids := make([]int64, len(models))
	for i := range models {
		p := permissionFromModel(&models[i])
		result[i] = p
		byID[p.ID] = p
		ids[i] = p.ID
	}

	var conds []conditionModel
	err := sel(&conds).
		Where("permission_id = ANY(?)", ids).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("gatekeeper: load permission conditions: %w", err)
	}
	for i := range conds {
		if p, ok := byID[conds[i].PermissionID]; ok {
			p.Conditions = append(p.Conditions, conditionFromModel(&conds[i]))
		}
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Resource operations
// ──────────────────────────────────────────────────

func (s *Store) GetResource(ctx context.Context, kind resource.Kind, resourceID uuid.UUID) (*resource.Record, error) {
	m := new(resourceModel)
	err := s.pgdb.NewSelect(m).
		Where("kind = ?", string(kind)).
		Where("id = ?", resourceID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%s %s: %w", kind, resourceID, resource.ErrNotFound)
		}
		return nil, fmt.Errorf("gatekeeper: get resource: %w", err)
	}
	r, err := resourceFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("gatekeeper: get resource: %w", err)
	}
	return r, nil
}

func (s *Store) PutResource(ctx context.Context, r *resource.Record) error {
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
	_, err := s.pgdb.NewInsert(resourceToModel(r)).
		OnConflict(`(kind, id) DO UPDATE SET
    creator_id = excluded.creator_id,
    owner_id = excluded.owner_id,
    translator_id = excluded.translator_id,
    visible = excluded.visible,
    language = excluded.language,
    number = excluded.number,
    updated_at = excluded.updated_at`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("gatekeeper: put resource: %w", err)
	}
	return nil
}

func (s *Store) DeleteResource(ctx context.Context, kind resource.Kind, resourceID uuid.UUID) error {
	_, err := s.pgdb.NewDelete((*resourceModel)(nil)).
		Where("kind = ?", string(kind)).
		Where("id = ?", resourceID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("gatekeeper: delete resource: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Check log operations
// ──────────────────────────────────────────────────

func (s *Store) CreateCheckLog(ctx context.Context, e *checklog.Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if _, err := s.pgdb.NewInsert(checkLogToModel(e)).Exec(ctx); err != nil {
		return fmt.Errorf("gatekeeper: create check log: %w", err)
	}
	return nil
}

func (s *Store) GetCheckLog(ctx context.Context, logID id.CheckLogID) (*checklog.Entry, error) {
	m := new(checkLogModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", logID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("check log %s: %w", logID, checklog.ErrNotFound)
		}
		return nil, fmt.Errorf("gatekeeper: get check log: %w", err)
	}
	return checkLogFromModel(m), nil
}

func (s *Store) ListCheckLogs(ctx context.Context, filter *checklog.QueryFilter) ([]*checklog.Entry, error) {
	var models []checkLogModel
	q := s.pgdb.NewSelect(&models).OrderExpr("created_at DESC, id DESC")
	if filter != nil {
		if filter.SubjectID != "" {
			q = q.Where("subject_id = ?", filter.SubjectID)
		}
		if filter.ResourceKind != "" {
			q = q.Where("resource_kind = ?", filter.ResourceKind)
		}
		if filter.ResourceID != "" {
			q = q.Where("resource_id = ?", filter.ResourceID)
		}
		if filter.Decision != "" {
			q = q.Where("decision = ?", filter.Decision)
		}
		if filter.After != nil {
			q = q.Where("created_at >= ?", filter.After.UTC())
		}
		if filter.Before != nil {
			q = q.Where("created_at <= ?", filter.Before.UTC())
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("gatekeeper: list check logs: %w", err)
	}
	result := make([]*checklog.Entry, len(models))
	for i := range models {
		result[i] = checkLogFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) PurgeCheckLogs(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.pgdb.NewDelete((*checkLogModel)(nil)).
		Where("created_at < ?", before.UTC()).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("gatekeeper: purge check logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("gatekeeper: purge check logs rows: %w", err)
	}
	return n, nil
}
