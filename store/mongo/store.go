// Package mongo provides a MongoDB implementation of the gatekeeper
// composite store using grove ORM. Conditions are embedded in their
// permission document, so permission writes are single-document atomic.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/gatekeeper/checklog"
	"github.com/xraph/gatekeeper/id"
	"github.com/xraph/gatekeeper/permission"
	"github.com/xraph/gatekeeper/resource"
	"github.com/xraph/gatekeeper/store"
)

// Collection name constants.
const (
	colPermissions = "gatekeeper_permissions"
	colResources   = "gatekeeper_resources"
	colCheckLogs   = "gatekeeper_check_logs"
)

// seqRetries bounds how often CreatePermission retries after losing a race
// for the next sequence number.
const seqRetries = 5

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of the composite gatekeeper store.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Migrate creates indexes for all gatekeeper collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("gatekeeper/mongo: migrate %s indexes: %w", col, err)
		}
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

func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colPermissions: {
			{
				Keys:    bson.D{{Key: "seq", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "object", Value: 1}, {Key: "action", Value: 1}, {Key: "subject", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
		colResources: {
			{
				Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "resource_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colCheckLogs: {
			{Keys: bson.D{{Key: "subject_id", Value: 1}}},
			{Keys: bson.D{{Key: "resource_kind", Value: 1}, {Key: "resource_id", Value: 1}}},
			{Keys: bson.D{{Key: "decision", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
	}
}

// ──────────────────────────────────────────────────
// Permission operations
// ──────────────────────────────────────────────────

func (s *Store) ListCandidates(ctx context.Context, q *permission.CandidateQuery) ([]*permission.Permission, error) {
	if len(q.Actions) == 0 || len(q.Subjects) == 0 {
		return []*permission.Permission{}, nil
	}
	var models []permissionModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"object":  q.Object,
			"action":  bson.M{"$in": q.Actions},
			"subject": bson.M{"$in": q.Subjects},
		}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "seq", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("gatekeeper: list candidates: %w", err)
	}
	return fromModels(models), nil
}

func (s *Store) CreatePermission(ctx context.Context, p *permission.Permission) error {
	var err error
	for range seqRetries {
		var last []permissionModel
		err = s.mdb.NewFind(&last).
			Sort(bson.D{{Key: "seq", Value: -1}}).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("gatekeeper: create permission: %w", err)
		}
		p.ID = 1
		if len(last) > 0 {
			p.ID = last[0].Seq + 1
		}
		numberConditions(p)

		_, err = s.mdb.NewInsert(permissionToModel(p)).Exec(ctx)
		if err == nil {
			return nil
		}
		if !mongod.IsDuplicateKeyError(err) {
			break
		}
	}
	return fmt.Errorf("gatekeeper: create permission: %w", err)
}

func (s *Store) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	var m permissionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": permID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("permission %s: %w", permID, permission.ErrNotFound)
		}
		return nil, fmt.Errorf("gatekeeper: get permission: %w", err)
	}
	return permissionFromModel(&m), nil
}

func (s *Store) UpdatePermission(ctx context.Context, p *permission.Permission) error {
	existing, err := s.GetPermission(ctx, p.ExternalID)
	if err != nil {
		return err
	}
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now()
	}
	numberConditions(p)

	res, err := s.mdb.NewUpdate(permissionToModel(p)).
		Filter(bson.M{"_id": p.ExternalID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("gatekeeper: update permission: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("permission %s: %w", p.ExternalID, permission.ErrNotFound)
	}
	return nil
}

func (s *Store) DeletePermission(ctx context.Context, permID id.PermissionID) error {
	res, err := s.mdb.NewDelete((*permissionModel)(nil)).
		Filter(bson.M{"_id": permID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("gatekeeper: delete permission: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("permission %s: %w", permID, permission.ErrNotFound)
	}
	return nil
}

func (s *Store) ListPermissions(ctx context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	var models []permissionModel
	q := s.mdb.NewFind(&models).
		Filter(permissionFilter(filter)).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "seq", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("gatekeeper: list permissions: %w", err)
	}
	return fromModels(models), nil
}

func (s *Store) CountPermissions(ctx context.Context, filter *permission.ListFilter) (int64, error) {
	count, err := s.mdb.NewFind((*permissionModel)(nil)).
		Filter(permissionFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("gatekeeper: count permissions: %w", err)
	}
	return count, nil
}

func permissionFilter(filter *permission.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.Subject != "" {
		f["subject"] = filter.Subject
	}
	if filter.Object != "" {
		f["object"] = filter.Object
	}
	if filter.Action != "" {
		f["action"] = filter.Action
	}
	return f
}

// numberConditions gives each condition its 1-based position as row ID.
func numberConditions(p *permission.Permission) {
	for i := range p.Conditions {
		p.Conditions[i].ID = int64(i + 1)
		p.Conditions[i].PermissionID = p.ID
	}
}

func fromModels(models []permissionModel) []*permission.Permission {
	result := make([]*permission.Permission, len(models))
	for i := range models {
		result[i] = permissionFromModel(&models[i])
	}
	return result
}

// ──────────────────────────────────────────────────
// Resource operations
// ──────────────────────────────────────────────────

func (s *Store) GetResource(ctx context.Context, kind resource.Kind, resourceID uuid.UUID) (*resource.Record, error) {
	var m resourceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": resourceKey(kind, resourceID)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("%s %s: %w", kind, resourceID, resource.ErrNotFound)
		}
		return nil, fmt.Errorf("gatekeeper: get resource: %w", err)
	}
	return resourceFromModel(&m), nil
}

// PutResource replaces the record, inserting it when absent. A concurrent
// insert of the same key turns into a second replace.
func (s *Store) PutResource(ctx context.Context, r *resource.Record) error {
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now()
	}
	m := resourceToModel(r)
	for attempt := 0; attempt < 2; attempt++ {
		res, err := s.mdb.NewUpdate(m).
			Filter(bson.M{"_id": m.Key}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("gatekeeper: put resource: %w", err)
		}
		if res.MatchedCount() > 0 {
			return nil
		}
		_, err = s.mdb.NewInsert(m).Exec(ctx)
		if err == nil {
			return nil
		}
		if !mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("gatekeeper: put resource: %w", err)
		}
	}
	return fmt.Errorf("gatekeeper: put resource %s: conflicting writers", m.Key)
}

func (s *Store) DeleteResource(ctx context.Context, kind resource.Kind, resourceID uuid.UUID) error {
	_, err := s.mdb.NewDelete((*resourceModel)(nil)).
		Filter(bson.M{"_id": resourceKey(kind, resourceID)}).
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
		e.CreatedAt = now()
	}
	if _, err := s.mdb.NewInsert(checkLogToModel(e)).Exec(ctx); err != nil {
		return fmt.Errorf("gatekeeper: create check log: %w", err)
	}
	return nil
}

func (s *Store) GetCheckLog(ctx context.Context, logID id.CheckLogID) (*checklog.Entry, error) {
	var m checkLogModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": logID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("check log %s: %w", logID, checklog.ErrNotFound)
		}
		return nil, fmt.Errorf("gatekeeper: get check log: %w", err)
	}
	return checkLogFromModel(&m), nil
}

func (s *Store) ListCheckLogs(ctx context.Context, filter *checklog.QueryFilter) ([]*checklog.Entry, error) {
	f := bson.M{}
	var models []checkLogModel
	q := s.mdb.NewFind(&models).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if filter != nil {
		if filter.SubjectID != "" {
			f["subject_id"] = filter.SubjectID
		}
		if filter.ResourceKind != "" {
			f["resource_kind"] = filter.ResourceKind
		}
		if filter.ResourceID != "" {
			f["resource_id"] = filter.ResourceID
		}
		if filter.Decision != "" {
			f["decision"] = filter.Decision
		}
		if filter.After != nil || filter.Before != nil {
			dateFilter := bson.M{}
			if filter.After != nil {
				dateFilter["$gte"] = *filter.After
			}
			if filter.Before != nil {
				dateFilter["$lte"] = *filter.Before
			}
			f["created_at"] = dateFilter
		}
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Filter(f).Scan(ctx); err != nil {
		return nil, fmt.Errorf("gatekeeper: list check logs: %w", err)
	}
	result := make([]*checklog.Entry, len(models))
	for i := range models {
		result[i] = checkLogFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) PurgeCheckLogs(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*checkLogModel)(nil)).
		Many().
		Filter(bson.M{"created_at": bson.M{"$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("gatekeeper: purge check logs: %w", err)
	}
	return res.DeletedCount(), nil
}
