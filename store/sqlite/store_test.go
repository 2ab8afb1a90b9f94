package sqlite

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/gatekeeper"
	"github.com/xraph/gatekeeper/checklog"
	"github.com/xraph/gatekeeper/id"
	"github.com/xraph/gatekeeper/permission"
	"github.com/xraph/gatekeeper/resource"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	drv := sqlitedriver.New()
	dsn := filepath.Join(t.TempDir(), "gatekeeper.db") + "?_time_format=sqlite"
	if err := drv.Open(ctx, dsn); err != nil {
		t.Fatal(err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		t.Fatal(err)
	}
	s := New(db)
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	return s
}

func newPermission(subject, object, action string, conds ...permission.Condition) *permission.Permission {
	now := time.Now().UTC()
	creator := uuid.New()
	for i := range conds {
		conds[i].ExternalID = id.NewConditionID()
		conds[i].CreatorID = creator
		conds[i].CreatedAt = now
		conds[i].UpdatedAt = now
	}
	return &permission.Permission{
		ExternalID: id.NewPermissionID(),
		CreatorID:  creator,
		Subject:    subject,
		Object:     object,
		Action:     action,
		Conditions: conds,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestMigrateTwice(t *testing.T) {
	s := newTestStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestPermissionCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := newPermission("role:editor", "translation", "PUT",
		permission.Condition{Name: "resource-translator-id", Value: uuid.NewString()},
		permission.Condition{Name: "resource-language", Value: "en"},
	)
	if err := s.CreatePermission(ctx, p); err != nil {
		t.Fatal(err)
	}
	if p.ID == 0 || p.Conditions[0].ID == 0 || p.Conditions[1].PermissionID != p.ID {
		t.Fatalf("row ids not assigned: %+v", p)
	}

	got, err := s.GetPermission(ctx, p.ExternalID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Subject != "role:editor" || got.CreatorID != p.CreatorID || !got.CreatedAt.Equal(p.CreatedAt) {
		t.Fatalf("unexpected permission: %+v", got)
	}
	if len(got.Conditions) != 2 || got.Conditions[0].Name != "resource-translator-id" || got.Conditions[1].Value != "en" {
		t.Fatalf("conditions not restored in order: %+v", got.Conditions)
	}

	p.Action = "write"
	p.Conditions = []permission.Condition{{
		ExternalID: id.NewConditionID(),
		CreatorID:  p.CreatorID,
		Name:       "resource-language",
		Value:      "ar",
	}}
	if err := s.UpdatePermission(ctx, p); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetPermission(ctx, p.ExternalID)
	if got.Action != "write" || len(got.Conditions) != 1 || got.Conditions[0].Value != "ar" {
		t.Fatalf("update did not replace conditions: %+v", got)
	}

	if err := s.DeletePermission(ctx, p.ExternalID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetPermission(ctx, p.ExternalID); !errors.Is(err, permission.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeletePermission(ctx, p.ExternalID); !errors.Is(err, permission.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := s.UpdatePermission(ctx, p); !errors.Is(err, permission.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestListCandidates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := newPermission("user:1", "mushaf", "GET",
		permission.Condition{Name: "resource-visibility-flag", Value: "true"})
	second := newPermission("role:editor", "mushaf", "write")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	otherKind := newPermission("user:1", "surah", "GET")
	otherUser := newPermission("user:2", "mushaf", "GET")
	for _, p := range []*permission.Permission{second, first, otherKind, otherUser} {
		if err := s.CreatePermission(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListCandidates(ctx, &permission.CandidateQuery{
		Object:   "mushaf",
		Actions:  []string{"GET", "*", "read"},
		Subjects: []string{"*", "authenticated", "user:1", "role:editor"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ExternalID != first.ExternalID {
		t.Fatalf("expected only the GET grant for user:1, got %d", len(got))
	}
	if len(got[0].Conditions) != 1 || got[0].Conditions[0].Value != "true" {
		t.Fatalf("candidate conditions not loaded: %+v", got[0].Conditions)
	}

	got, err = s.ListCandidates(ctx, &permission.CandidateQuery{
		Object:   "mushaf",
		Actions:  []string{"GET", "*", "read", "write"},
		Subjects: []string{"*", "authenticated", "user:1", "role:editor"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ExternalID != first.ExternalID || got[1].ExternalID != second.ExternalID {
		t.Fatal("candidates should be ordered by creation time")
	}
	if len(got[1].Conditions) != 0 {
		t.Fatal("unconditional permission picked up conditions")
	}

	got, err = s.ListCandidates(ctx, &permission.CandidateQuery{Object: "mushaf", Subjects: []string{"*"}})
	if err != nil || len(got) != 0 {
		t.Fatalf("no actions must yield no candidates, got %d (%v)", len(got), err)
	}
}

func TestListAndCountPermissions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Now().UTC()
	for i, subject := range []string{"role:editor", "role:editor", "role:admin"} {
		p := newPermission(subject, "surah", "PUT")
		p.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := s.CreatePermission(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	filter := &permission.ListFilter{Subject: "role:editor"}
	total, err := s.CountPermissions(ctx, filter)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Fatalf("expected 2 editor permissions, got %d", total)
	}

	page, err := s.ListPermissions(ctx, &permission.ListFilter{Object: "surah", Limit: 2, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[1].Subject != "role:admin" {
		t.Fatalf("unexpected page: %d", len(page))
	}
}

func TestResourceCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	owner := uuid.New()
	visible := true
	r := &resource.Record{
		Kind:      resource.KindOrganization,
		ID:        uuid.New(),
		CreatorID: uuid.New(),
		OwnerID:   &owner,
		Visible:   &visible,
	}
	if err := s.PutResource(ctx, r); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetResource(ctx, resource.KindOrganization, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.OwnerID == nil || *got.OwnerID != owner || got.Visible == nil || !*got.Visible {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Language != nil || got.Number != nil || got.TranslatorID != nil {
		t.Fatal("absent attributes must stay nil")
	}

	hidden := false
	r.Visible = &hidden
	if err := s.PutResource(ctx, r); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetResource(ctx, resource.KindOrganization, r.ID)
	if got.Visible == nil || *got.Visible {
		t.Fatal("second put should replace the record")
	}

	if _, err := s.GetResource(ctx, resource.KindMushaf, r.ID); !errors.Is(err, resource.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another kind, got %v", err)
	}
	if err := s.DeleteResource(ctx, resource.KindOrganization, r.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetResource(ctx, resource.KindOrganization, r.ID); !errors.Is(err, resource.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCheckLogCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	older := &checklog.Entry{
		ID:           id.NewCheckLogID(),
		SubjectID:    "u1",
		Method:       "GET",
		Path:         "/mushaf",
		ResourceKind: "mushaf",
		Decision:     "allow",
		CreatedAt:    time.Now().Add(-time.Minute),
	}
	newer := &checklog.Entry{
		ID:           id.NewCheckLogID(),
		SubjectID:    "u1",
		Method:       "DELETE",
		Path:         "/mushaf",
		ResourceKind: "mushaf",
		Decision:     "deny_default",
		CreatedAt:    time.Now(),
	}
	for _, e := range []*checklog.Entry{older, newer} {
		if err := s.CreateCheckLog(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.GetCheckLog(ctx, older.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Decision != "allow" || !got.CreatedAt.Equal(older.CreatedAt) {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if _, err := s.GetCheckLog(ctx, id.NewCheckLogID()); !errors.Is(err, checklog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	logs, err := s.ListCheckLogs(ctx, &checklog.QueryFilter{SubjectID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 || logs[0].ID != newer.ID {
		t.Fatal("expected both logs, newest first")
	}
	after := time.Now().Add(-30 * time.Second)
	logs, _ = s.ListCheckLogs(ctx, &checklog.QueryFilter{After: &after})
	if len(logs) != 1 || logs[0].ID != newer.ID {
		t.Fatalf("expected only the newer log after the cutoff, got %d", len(logs))
	}

	purged, err := s.PurgeCheckLogs(ctx, after)
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged, got %d", purged)
	}
}

func TestEngineDecidesOverSQLite(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	eng, err := gatekeeper.NewEngine(gatekeeper.WithStore(s))
	if err != nil {
		t.Fatal(err)
	}

	owner := uuid.New()
	org := &resource.Record{Kind: resource.KindOrganization, ID: uuid.New(), CreatorID: owner, OwnerID: &owner}
	foreign := uuid.New()
	other := &resource.Record{Kind: resource.KindOrganization, ID: uuid.New(), CreatorID: foreign, OwnerID: &foreign}
	for _, r := range []*resource.Record{org, other} {
		if err := s.PutResource(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	p, err := eng.CreatePermission(ctx, &gatekeeper.NewPermission{
		CreatorID: owner,
		Subject:   "role:editor",
		Object:    "organization",
		Action:    http.MethodPut,
		Conditions: []gatekeeper.NewCondition{
			{Name: "resource-owner-id", Value: owner.String()},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	editor := &gatekeeper.Subject{ID: "7", Roles: []string{"editor"}}
	res, err := eng.Check(ctx, editor, gatekeeper.ParsePath(http.MethodPut, "/organization/"+org.ID.String()))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed {
		t.Fatalf("expected allow, got %s: %s", res.Decision, res.Reason)
	}

	res, err = eng.Check(ctx, editor, gatekeeper.ParsePath(http.MethodPut, "/organization/"+other.ID.String()))
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed || res.Decision != gatekeeper.DecisionDenyCondition {
		t.Fatalf("expected deny_condition, got %s", res.Decision)
	}

	if err := eng.DeletePermission(ctx, p.ExternalID); err != nil {
		t.Fatal(err)
	}
	res, err = eng.Check(ctx, editor, gatekeeper.ParsePath(http.MethodPut, "/organization/"+org.ID.String()))
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed || res.Decision != gatekeeper.DecisionDenyDefault {
		t.Fatalf("expected deny_default after delete, got %s", res.Decision)
	}
}
