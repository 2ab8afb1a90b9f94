// Package memory provides an in-memory implementation of the gatekeeper
// composite store. It is intended for testing, development and small
// deployments seeded from a fixture file.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/gatekeeper/checklog"
	"github.com/xraph/gatekeeper/id"
	"github.com/xraph/gatekeeper/permission"
	"github.com/xraph/gatekeeper/resource"
	"github.com/xraph/gatekeeper/store"
)

// Compile-time interface checks.
var (
	_ store.Store      = (*Store)(nil)
	_ permission.Store = (*Store)(nil)
	_ resource.Store   = (*Store)(nil)
	_ checklog.Store   = (*Store)(nil)
)

// Store is a thread-safe in-memory store for all gatekeeper entities.
type Store struct {
	mu sync.RWMutex

	permissions map[string]*permission.Permission // keyed by external ID
	resources   map[resourceKey]*resource.Record
	checkLogs   map[string]*checklog.Entry

	nextPermID int64
	nextCondID int64
}

type resourceKey struct {
	kind resource.Kind
	id   uuid.UUID
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		permissions: make(map[string]*permission.Permission),
		resources:   make(map[resourceKey]*resource.Record),
		checkLogs:   make(map[string]*checklog.Entry),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Permission Store
// ──────────────────────────────────────────────────

func (s *Store) ListCandidates(ctx context.Context, q *permission.CandidateQuery) ([]*permission.Permission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*permission.Permission, 0, 4)
	for _, p := range s.permissions {
		if p.Object != q.Object {
			continue
		}
		if !slices.Contains(q.Actions, p.Action) || !slices.Contains(q.Subjects, p.Subject) {
			continue
		}
		result = append(result, copyPermission(p))
	}
	sortPermissions(result)
	return result, nil
}

func (s *Store) CreatePermission(_ context.Context, p *permission.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := p.ExternalID.String()
	if _, ok := s.permissions[key]; ok {
		return fmt.Errorf("permission %s: already exists", p.ExternalID)
	}
	s.nextPermID++
	p.ID = s.nextPermID
	s.assignConditionIDs(p)
	s.permissions[key] = copyPermission(p)
	return nil
}

func (s *Store) GetPermission(_ context.Context, permID id.PermissionID) (*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.permissions[permID.String()]
	if !ok {
		return nil, fmt.Errorf("permission %s: %w", permID, permission.ErrNotFound)
	}
	return copyPermission(p), nil
}

func (s *Store) UpdatePermission(_ context.Context, p *permission.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.permissions[p.ExternalID.String()]
	if !ok {
		return fmt.Errorf("permission %s: %w", p.ExternalID, permission.ErrNotFound)
	}
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	s.assignConditionIDs(p)
	s.permissions[p.ExternalID.String()] = copyPermission(p)
	return nil
}

func (s *Store) DeletePermission(_ context.Context, permID id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[permID.String()]; !ok {
		return fmt.Errorf("permission %s: %w", permID, permission.ErrNotFound)
	}
	delete(s.permissions, permID.String())
	return nil
}

func (s *Store) ListPermissions(_ context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := s.filterPermissions(filter)
	return applyPagination(result, paginationOptsPerm(filter)), nil
}

func (s *Store) CountPermissions(_ context.Context, filter *permission.ListFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.filterPermissions(filter))), nil
}

// filterPermissions must be called with the read lock held.
func (s *Store) filterPermissions(filter *permission.ListFilter) []*permission.Permission {
	result := make([]*permission.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		if filter != nil {
			if filter.Subject != "" && p.Subject != filter.Subject {
				continue
			}
			if filter.Object != "" && p.Object != filter.Object {
				continue
			}
			if filter.Action != "" && p.Action != filter.Action {
				continue
			}
		}
		result = append(result, copyPermission(p))
	}
	sortPermissions(result)
	return result
}

// assignConditionIDs must be called with the write lock held.
func (s *Store) assignConditionIDs(p *permission.Permission) {
	for i := range p.Conditions {
		s.nextCondID++
		p.Conditions[i].ID = s.nextCondID
		p.Conditions[i].PermissionID = p.ID
	}
}

// ──────────────────────────────────────────────────
// Resource Store
// ──────────────────────────────────────────────────

func (s *Store) GetResource(ctx context.Context, kind resource.Kind, resourceID uuid.UUID) (*resource.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[resourceKey{kind, resourceID}]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", kind, resourceID, resource.ErrNotFound)
	}
	return copyRecord(r), nil
}

func (s *Store) PutResource(_ context.Context, r *resource.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := copyRecord(r)
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	s.resources[resourceKey{r.Kind, r.ID}] = c
	return nil
}

func (s *Store) DeleteResource(_ context.Context, kind resource.Kind, resourceID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.resources, resourceKey{kind, resourceID})
	return nil
}

// ──────────────────────────────────────────────────
// Check Log Store
// ──────────────────────────────────────────────────

func (s *Store) CreateCheckLog(_ context.Context, e *checklog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkLogs[e.ID.String()] = copyCheckLog(e)
	return nil
}

func (s *Store) GetCheckLog(_ context.Context, logID id.CheckLogID) (*checklog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.checkLogs[logID.String()]
	if !ok {
		return nil, fmt.Errorf("check log %s: %w", logID, checklog.ErrNotFound)
	}
	return copyCheckLog(e), nil
}

func (s *Store) ListCheckLogs(_ context.Context, filter *checklog.QueryFilter) ([]*checklog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*checklog.Entry, 0, len(s.checkLogs))
	for _, e := range s.checkLogs {
		if filter != nil {
			if filter.SubjectID != "" && e.SubjectID != filter.SubjectID {
				continue
			}
			if filter.ResourceKind != "" && e.ResourceKind != filter.ResourceKind {
				continue
			}
			if filter.ResourceID != "" && e.ResourceID != filter.ResourceID {
				continue
			}
			if filter.Decision != "" && e.Decision != filter.Decision {
				continue
			}
			if filter.After != nil && e.CreatedAt.Before(*filter.After) {
				continue
			}
			if filter.Before != nil && e.CreatedAt.After(*filter.Before) {
				continue
			}
		}
		result = append(result, copyCheckLog(e))
	}
	slices.SortFunc(result, func(a, b *checklog.Entry) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID.String(), a.ID.String())
	})
	return applyPagination(result, paginationOptsCL(filter)), nil
}

func (s *Store) PurgeCheckLogs(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for k, e := range s.checkLogs {
		if e.CreatedAt.Before(before) {
			delete(s.checkLogs, k)
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func copyPermission(p *permission.Permission) *permission.Permission {
	c := *p
	c.Conditions = slices.Clone(p.Conditions)
	return &c
}

func copyRecord(r *resource.Record) *resource.Record {
	c := *r
	if r.OwnerID != nil {
		v := *r.OwnerID
		c.OwnerID = &v
	}
	if r.TranslatorID != nil {
		v := *r.TranslatorID
		c.TranslatorID = &v
	}
	if r.Visible != nil {
		v := *r.Visible
		c.Visible = &v
	}
	if r.Language != nil {
		v := *r.Language
		c.Language = &v
	}
	if r.Number != nil {
		v := *r.Number
		c.Number = &v
	}
	return &c
}

func copyCheckLog(e *checklog.Entry) *checklog.Entry {
	c := *e
	return &c
}

// sortPermissions orders by creation time, then row ID.
func sortPermissions(ps []*permission.Permission) {
	slices.SortFunc(ps, func(a, b *permission.Permission) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

type pagOpts struct{ limit, offset int }

func applyPagination[T any](items []*T, p pagOpts) []*T {
	if p.offset > 0 && p.offset < len(items) {
		items = items[p.offset:]
	} else if p.offset >= len(items) {
		return nil
	}
	if p.limit > 0 && p.limit < len(items) {
		items = items[:p.limit]
	}
	return items
}

func paginationOptsPerm(f *permission.ListFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func paginationOptsCL(f *checklog.QueryFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}
