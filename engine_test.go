package gatekeeper

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/gatekeeper/checklog"
	"github.com/xraph/gatekeeper/id"
	"github.com/xraph/gatekeeper/permission"
	"github.com/xraph/gatekeeper/resource"
	"github.com/xraph/gatekeeper/store/memory"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	eng, err := NewEngine(append([]Option{WithStore(s)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return eng, s
}

func mustCreate(t *testing.T, eng *Engine, np *NewPermission) *permission.Permission {
	t.Helper()
	p, err := eng.CreatePermission(context.Background(), np)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func ptr[T any](v T) *T { return &v }

func TestNewEngine_RequiresStore(t *testing.T) {
	_, err := NewEngine()
	if err == nil {
		t.Fatal("expected error when store is nil")
	}
}

func TestCheckUnconditionalRoleGrant(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	mustCreate(t, eng, &NewPermission{Subject: "role:editor", Object: "quran_ayah", Action: "PUT"})

	editor := &Subject{ID: "12", Roles: []string{"editor"}}
	result, err := eng.Check(ctx, editor, ParsePath(http.MethodPut, "/ayah/"+uuid.NewString()))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Allowed || result.Decision != DecisionAllow {
		t.Fatalf("expected allow, got %+v", result)
	}

	// Same request without the role.
	result, _ = eng.Check(ctx, &Subject{ID: "12"}, ParsePath(http.MethodPut, "/ayah/"+uuid.NewString()))
	if result.Allowed || result.Decision != DecisionDenyDefault {
		t.Fatalf("expected deny_default without role, got %+v", result)
	}
}

func TestCheckOwnerConditionMismatch(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)

	ownerA, ownerB := uuid.New(), uuid.New()
	org := uuid.New()
	_ = s.PutResource(ctx, &resource.Record{Kind: resource.KindOrganization, ID: org, CreatorID: ownerB, OwnerID: &ownerB})

	mustCreate(t, eng, &NewPermission{
		Subject:    "role:editor",
		Object:     "organization",
		Action:     "PUT",
		Conditions: []NewCondition{{Name: "resource-owner-id", Value: ownerA.String()}},
	})

	subject := &Subject{ID: ownerB.String(), Roles: []string{"editor"}}
	result, err := eng.Check(ctx, subject, ParsePath(http.MethodPut, "/organization/"+org.String()))
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed || result.Decision != DecisionDenyCondition {
		t.Fatalf("expected deny_condition, got %+v", result)
	}

	// With the owner matching the literal it grants.
	_ = s.PutResource(ctx, &resource.Record{Kind: resource.KindOrganization, ID: org, CreatorID: ownerB, OwnerID: &ownerA})
	if !eng.Allowed(ctx, subject, ParsePath(http.MethodPut, "/organization/"+org.String())) {
		t.Fatal("expected allow once the owner matches")
	}
}

func TestCheckNoMatchingPermission(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	mustCreate(t, eng, &NewPermission{Subject: "*", Object: "mushaf", Action: "read"})

	result, err := eng.Check(ctx, &Subject{ID: "1"}, ParsePath(http.MethodDelete, "/mushaf/"+uuid.NewString()))
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed || result.Decision != DecisionDenyDefault {
		t.Fatalf("expected deny_default, got %+v", result)
	}

	err = eng.Enforce(ctx, &Subject{ID: "1"}, ParsePath(http.MethodDelete, "/mushaf"))
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestCheckInapplicableAttributeDisqualifies(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)

	org := uuid.New()
	_ = s.PutResource(ctx, &resource.Record{Kind: resource.KindOrganization, ID: org, CreatorID: uuid.New()})

	// resource-language does not apply to organizations.
	p := mustCreate(t, eng, &NewPermission{
		Subject:    "authenticated",
		Object:     "organization",
		Action:     "GET",
		Conditions: []NewCondition{{Name: "resource-language", Value: "en"}},
	})

	result, err := eng.Check(ctx, &Subject{ID: "1"}, ParsePath(http.MethodGet, "/organization/"+org.String()))
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed {
		t.Fatal("the only candidate is disqualified, expected deny")
	}
	if len(result.Disqualified) != 1 || result.Disqualified[0].PermissionID != p.ExternalID.String() {
		t.Fatalf("expected one disqualification for %s, got %+v", p.ExternalID, result.Disqualified)
	}
	if !errors.Is(result.Disqualified[0].Err, ErrAttributeUnavailable) {
		t.Fatalf("expected ErrAttributeUnavailable, got %v", result.Disqualified[0].Err)
	}
}

func TestCheckMissingResourceDisqualifies(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	mustCreate(t, eng, &NewPermission{
		Subject:    "*",
		Object:     "mushaf",
		Action:     "GET",
		Conditions: []NewCondition{{Name: "resource-visibility-flag", Value: "true"}},
	})

	for _, path := range []string{"/mushaf/" + uuid.NewString(), "/mushaf"} {
		result, err := eng.Check(ctx, nil, ParsePath(http.MethodGet, path))
		if err != nil {
			t.Fatal(err)
		}
		if result.Allowed {
			t.Fatalf("%s: expected deny", path)
		}
		if len(result.Disqualified) != 1 || !errors.Is(result.Disqualified[0].Err, ErrResourceNotFound) {
			t.Fatalf("%s: expected ErrResourceNotFound disqualification, got %+v", path, result.Disqualified)
		}
	}
}

func TestCheckVisibilityForAnonymous(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)

	public, private := uuid.New(), uuid.New()
	_ = s.PutResource(ctx, &resource.Record{Kind: resource.KindMushaf, ID: public, Visible: ptr(true)})
	_ = s.PutResource(ctx, &resource.Record{Kind: resource.KindMushaf, ID: private, Visible: ptr(false)})

	mustCreate(t, eng, &NewPermission{
		Subject:    "anonymous",
		Object:     "mushaf",
		Action:     "read",
		Conditions: []NewCondition{{Name: "resource-visibility-flag", Value: "true"}},
	})

	if !eng.Allowed(ctx, nil, ParsePath(http.MethodGet, "/mushaf/"+public.String())) {
		t.Error("anonymous GET of a visible mushaf should be allowed")
	}
	if !eng.Allowed(ctx, nil, ParsePath(http.MethodHead, "/mushaf/"+public.String())) {
		t.Error("HEAD is in the read class")
	}
	if eng.Allowed(ctx, nil, ParsePath(http.MethodGet, "/mushaf/"+private.String())) {
		t.Error("a hidden mushaf should be denied")
	}
	if eng.Allowed(ctx, &Subject{ID: "1"}, ParsePath(http.MethodGet, "/mushaf/"+public.String())) {
		t.Error("the anonymous selector must not match an authenticated subject")
	}
}

func TestCheckCreatorCondition(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)

	creator := uuid.New()
	tr := uuid.New()
	_ = s.PutResource(ctx, &resource.Record{
		Kind: resource.KindTranslation, ID: tr, CreatorID: creator,
		TranslatorID: ptr(uuid.New()), Language: ptr("en"),
	})

	mustCreate(t, eng, &NewPermission{
		Subject: "user:" + creator.String(),
		Object:  "translation",
		Action:  "write",
		Conditions: []NewCondition{
			{Name: "resource-creator-id", Value: creator.String()},
			{Name: "resource-language", Value: "en"},
		},
	})

	subject := &Subject{ID: creator.String()}
	if !eng.Allowed(ctx, subject, ParsePath(http.MethodPatch, "/translation/"+tr.String())) {
		t.Error("creator should be able to edit an English translation")
	}
	if eng.Allowed(ctx, subject, ParsePath(http.MethodGet, "/translation/"+tr.String())) {
		t.Error("write does not cover GET")
	}
}

// failingStore fails every candidate query.
type failingStore struct {
	*memory.Store
	err error
}

func (f *failingStore) ListCandidates(context.Context, *permission.CandidateQuery) ([]*permission.Permission, error) {
	return nil, f.err
}

func TestCheckPersistenceFailureIsDeny(t *testing.T) {
	ctx := context.Background()
	fs := &failingStore{Store: memory.New(), err: errors.New("db down")}
	rec := &recordingPlugin{}
	eng, err := NewEngine(WithStore(fs), WithPlugin(rec))
	if err != nil {
		t.Fatal(err)
	}

	result, err := eng.Check(ctx, &Subject{ID: "1"}, ParsePath(http.MethodGet, "/mushaf"))
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if result == nil || result.Allowed || result.Decision != DecisionDenyError {
		t.Fatalf("expected deny_error, got %+v", result)
	}
	if eng.Allowed(ctx, &Subject{ID: "1"}, ParsePath(http.MethodGet, "/mushaf")) {
		t.Fatal("Allowed must be false on store failure")
	}
	if rec.failed == 0 {
		t.Fatal("CheckFailed hook was not called")
	}
	if err := eng.Enforce(ctx, nil, ParsePath(http.MethodGet, "/mushaf")); !errors.Is(err, ErrPersistence) {
		t.Fatalf("Enforce should surface the store failure, got %v", err)
	}
}

func TestCheckCancelledContext(t *testing.T) {
	eng, _ := newTestEngine(t)
	mustCreate(t, eng, &NewPermission{Subject: "*", Object: "mushaf", Action: "*"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := eng.Check(ctx, nil, ParsePath(http.MethodGet, "/mushaf"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.Allowed {
		t.Fatal("a cancelled check must deny")
	}
}

func TestCheckEvalTime(t *testing.T) {
	eng, _ := newTestEngine(t)
	result, _ := eng.Check(context.Background(), nil, ParsePath(http.MethodGet, "/surah"))
	if result.EvalTimeNs <= 0 {
		t.Fatal("expected EvalTimeNs to be set")
	}
}

// ──────────────────────────────────────────────────
// Authoring
// ──────────────────────────────────────────────────

func TestCreatePermissionValidation(t *testing.T) {
	eng, _ := newTestEngine(t, WithConfig(Config{MaxConditions: 1}))

	tests := []struct {
		name    string
		np      *NewPermission
		wantErr error
	}{
		{"bad subject", &NewPermission{Subject: "bob", Object: "mushaf", Action: "GET"}, ErrInvalidPermission},
		{"bad object", &NewPermission{Subject: "*", Object: "ayah", Action: "GET"}, ErrInvalidPermission},
		{"bad action", &NewPermission{Subject: "*", Object: "mushaf", Action: "get"}, ErrInvalidPermission},
		{"unknown attribute", &NewPermission{
			Subject: "*", Object: "mushaf", Action: "GET",
			Conditions: []NewCondition{{Name: "resource-color", Value: "red"}},
		}, ErrUnknownAttribute},
		{"type mismatch", &NewPermission{
			Subject: "*", Object: "surah", Action: "GET",
			Conditions: []NewCondition{{Name: "resource-number", Value: "first"}},
		}, ErrConditionTypeMismatch},
		{"too many", &NewPermission{
			Subject: "*", Object: "surah", Action: "GET",
			Conditions: []NewCondition{
				{Name: "resource-number", Value: "1"},
				{Name: "resource-number", Value: "2"},
			},
		}, ErrTooManyConditions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.CreatePermission(context.Background(), tt.np)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if !IsValidation(err) {
				t.Fatal("expected a validation error")
			}
		})
	}

	list, total, err := eng.ListPermissions(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 || total != 0 {
		t.Fatal("rejected permissions must not be stored")
	}
}

func TestPermissionLifecycle(t *testing.T) {
	ctx := context.Background()
	rec := &recordingPlugin{}
	eng, _ := newTestEngine(t, WithPlugin(rec))

	creator := uuid.New()
	p := mustCreate(t, eng, &NewPermission{CreatorID: creator, Subject: "role:editor", Object: "surah", Action: "PUT"})
	if p.ExternalID.Prefix() != id.PrefixPermission || p.ID == 0 {
		t.Fatalf("unexpected identifiers: %d %s", p.ID, p.ExternalID)
	}

	editor := &Subject{ID: "3", Roles: []string{"editor"}}
	surah := uuid.New()
	if !eng.Allowed(ctx, editor, ParsePath(http.MethodPut, "/surah/"+surah.String())) {
		t.Fatal("expected allow before update")
	}

	updated, err := eng.UpdatePermission(ctx, p.ExternalID, &NewPermission{
		CreatorID:  creator,
		Subject:    "role:editor",
		Object:     "surah",
		Action:     "PUT",
		Conditions: []NewCondition{{Name: "resource-number", Value: "1"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(updated.Conditions) != 1 || updated.Conditions[0].CreatorID != creator {
		t.Fatalf("unexpected conditions: %+v", updated.Conditions)
	}
	if eng.Allowed(ctx, editor, ParsePath(http.MethodPut, "/surah/"+surah.String())) {
		t.Fatal("surah has no record, the new condition should deny")
	}

	got, err := eng.GetPermission(ctx, p.ExternalID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Conditions[0].Value != "1" {
		t.Fatalf("stored condition = %q", got.Conditions[0].Value)
	}

	if err := eng.DeletePermission(ctx, p.ExternalID); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.GetPermission(ctx, p.ExternalID); !errors.Is(err, ErrPermissionNotFound) {
		t.Fatalf("expected ErrPermissionNotFound, got %v", err)
	}
	if err := eng.DeletePermission(ctx, p.ExternalID); !errors.Is(err, ErrPermissionNotFound) {
		t.Fatalf("expected ErrPermissionNotFound, got %v", err)
	}
	if _, err := eng.UpdatePermission(ctx, p.ExternalID, &NewPermission{Subject: "*", Object: "surah", Action: "GET"}); !errors.Is(err, ErrPermissionNotFound) {
		t.Fatalf("expected ErrPermissionNotFound, got %v", err)
	}

	if rec.created != 1 || rec.updated != 1 || rec.deleted != 1 {
		t.Fatalf("hook counts: created=%d updated=%d deleted=%d", rec.created, rec.updated, rec.deleted)
	}
}

func TestListPermissions(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	for _, obj := range []string{"mushaf", "mushaf", "surah"} {
		mustCreate(t, eng, &NewPermission{Subject: "*", Object: obj, Action: "GET"})
	}

	list, total, err := eng.ListPermissions(ctx, &permission.ListFilter{Object: "mushaf", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || total != 2 {
		t.Fatalf("expected 1 of 2, got %d of %d", len(list), total)
	}
}

// ──────────────────────────────────────────────────
// Cache, plugins, audit
// ──────────────────────────────────────────────────

type mapCache struct {
	mu          sync.Mutex
	m           map[string]*CheckResult
	hits        int
	invalidated int
}

func newMapCache() *mapCache { return &mapCache{m: make(map[string]*CheckResult)} }

func (c *mapCache) key(s *Subject, p ParsedPath) string {
	return s.String() + "|" + p.Method + "|" + string(p.Kind) + "|" + p.ResourceID.String()
}

func (c *mapCache) Get(_ context.Context, s *Subject, p ParsedPath) (*CheckResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.m[c.key(s, p)]
	if ok {
		c.hits++
	}
	return r, ok
}

func (c *mapCache) Set(_ context.Context, s *Subject, p ParsedPath, r *CheckResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[c.key(s, p)] = r
}

func (c *mapCache) InvalidateAll(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.m)
	c.invalidated++
}

func (c *mapCache) InvalidateSubject(context.Context, string) {}

func TestCacheRequiresTTL(t *testing.T) {
	ctx := context.Background()
	c := newMapCache()
	eng, _ := newTestEngine(t, WithCache(c))

	path := ParsePath(http.MethodGet, "/surah")
	_, _ = eng.Check(ctx, nil, path)
	_, _ = eng.Check(ctx, nil, path)
	if c.hits != 0 || len(c.m) != 0 {
		t.Fatal("cache must stay unused while CacheTTL is zero")
	}
}

func TestCacheInvalidatedOnAuthoring(t *testing.T) {
	ctx := context.Background()
	c := newMapCache()
	cfg := DefaultConfig()
	cfg.CacheTTL = time.Minute
	eng, _ := newTestEngine(t, WithCache(c), WithConfig(cfg))

	path := ParsePath(http.MethodGet, "/surah")
	if eng.Allowed(ctx, nil, path) {
		t.Fatal("expected deny with no permissions")
	}
	_, _ = eng.Check(ctx, nil, path)
	if c.hits != 1 {
		t.Fatalf("expected a cache hit, got %d", c.hits)
	}

	mustCreate(t, eng, &NewPermission{Subject: "*", Object: "surah", Action: "GET"})
	if c.invalidated != 1 {
		t.Fatal("creating a permission should invalidate the cache")
	}
	if !eng.Allowed(ctx, nil, path) {
		t.Fatal("expected allow after the new permission")
	}
}

type recordingPlugin struct {
	mu                        sync.Mutex
	before, after, failed     int
	created, updated, deleted int
	shutdown                  bool
}

func (r *recordingPlugin) Name() string { return "recorder" }

func (r *recordingPlugin) OnBeforeCheck(context.Context, any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.before++
	return nil
}

func (r *recordingPlugin) OnAfterCheck(_ context.Context, req, result any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := req.(*CheckRequest); !ok {
		return errors.New("unexpected request type")
	}
	if _, ok := result.(*CheckResult); !ok {
		return errors.New("unexpected result type")
	}
	r.after++
	return nil
}

func (r *recordingPlugin) OnCheckFailed(context.Context, any, error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
	return nil
}

func (r *recordingPlugin) OnPermissionCreated(context.Context, *permission.Permission) error {
	r.created++
	return nil
}

func (r *recordingPlugin) OnPermissionUpdated(context.Context, *permission.Permission) error {
	r.updated++
	return nil
}

func (r *recordingPlugin) OnPermissionDeleted(context.Context, id.PermissionID) error {
	r.deleted++
	return nil
}

func (r *recordingPlugin) OnShutdown(context.Context) error {
	r.shutdown = true
	return nil
}

func TestPluginHooks(t *testing.T) {
	ctx := context.Background()
	rec := &recordingPlugin{}
	eng, _ := newTestEngine(t, WithPlugin(rec))

	_, _ = eng.Check(ctx, nil, ParsePath(http.MethodGet, "/mushaf"))
	if rec.before != 1 || rec.after != 1 || rec.failed != 0 {
		t.Fatalf("hook counts: before=%d after=%d failed=%d", rec.before, rec.after, rec.failed)
	}

	if err := eng.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if !rec.shutdown {
		t.Fatal("Shutdown hook was not called")
	}
}

type brokenPlugin struct{}

func (brokenPlugin) Name() string { return "broken" }

func (brokenPlugin) OnBeforeCheck(context.Context, any) error { return errors.New("boom") }

func TestPluginRegistryUsesEngineLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	// The plugin option comes first; the registry must still log through
	// the logger configured after it.
	eng, _ := newTestEngine(t, WithPlugin(brokenPlugin{}), WithLogger(logger))
	_, _ = eng.Check(context.Background(), nil, ParsePath(http.MethodGet, "/mushaf"))

	if !strings.Contains(buf.String(), "plugin hook error") || !strings.Contains(buf.String(), "broken") {
		t.Fatalf("hook error not logged through the engine logger: %q", buf.String())
	}
}

func TestAuditPluginRecordsDecisions(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	eng, err := NewEngine(WithStore(s), WithPlugin(NewAuditPlugin(s)))
	if err != nil {
		t.Fatal(err)
	}

	p := mustCreate(t, eng, &NewPermission{Subject: "user:5", Object: "mushaf", Action: "GET"})
	mushaf := uuid.New()
	_, _ = eng.Check(ctx, &Subject{ID: "5"}, ParsePath(http.MethodGet, "/mushaf/"+mushaf.String()))
	_, _ = eng.Check(ctx, nil, ParsePath(http.MethodDelete, "/mushaf"))

	logs, err := s.ListCheckLogs(ctx, &checklog.QueryFilter{SubjectID: "5"})
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log for subject 5, got %d", len(logs))
	}
	if logs[0].Decision != string(DecisionAllow) || logs[0].PermissionID != p.ExternalID.String() || logs[0].ResourceID != mushaf.String() {
		t.Fatalf("unexpected entry: %+v", logs[0])
	}

	denied, _ := s.ListCheckLogs(ctx, &checklog.QueryFilter{Decision: string(DecisionDenyDefault)})
	if len(denied) != 1 || denied[0].SubjectID != "" || denied[0].Reason == "" {
		t.Fatalf("expected one anonymous deny with a reason, got %+v", denied)
	}
}

func TestAuditPluginDeniesOnly(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	eng, _ := NewEngine(WithStore(s), WithPlugin(NewAuditPlugin(s, AuditDeniesOnly())))

	mustCreate(t, eng, &NewPermission{Subject: "*", Object: "surah", Action: "GET"})
	_, _ = eng.Check(ctx, nil, ParsePath(http.MethodGet, "/surah"))
	_, _ = eng.Check(ctx, nil, ParsePath(http.MethodPost, "/surah"))

	logs, _ := s.ListCheckLogs(ctx, nil)
	if len(logs) != 1 || logs[0].Decision == string(DecisionAllow) {
		t.Fatalf("expected only the deny to be logged, got %+v", logs)
	}
}

func TestAuditPluginRecordsCachedDecisions(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	c := newMapCache()
	cfg := DefaultConfig()
	cfg.CacheTTL = time.Minute
	eng, err := NewEngine(WithStore(s), WithCache(c), WithConfig(cfg), WithPlugin(NewAuditPlugin(s)))
	if err != nil {
		t.Fatal(err)
	}

	path := ParsePath(http.MethodDelete, "/mushaf")
	for range 3 {
		if eng.Allowed(ctx, nil, path) {
			t.Fatal("expected deny with no permissions")
		}
	}
	if c.hits != 2 {
		t.Fatalf("expected 2 cache hits, got %d", c.hits)
	}

	logs, _ := s.ListCheckLogs(ctx, &checklog.QueryFilter{Decision: string(DecisionDenyDefault)})
	if len(logs) != 3 {
		t.Fatalf("expected every decision logged, got %d entries for 3 checks", len(logs))
	}
}

// ──────────────────────────────────────────────────
// Resolver
// ──────────────────────────────────────────────────

type countingLoader struct {
	*memory.Store
	calls int
}

func (c *countingLoader) GetResource(ctx context.Context, kind resource.Kind, rid uuid.UUID) (*resource.Record, error) {
	c.calls++
	return c.Store.GetResource(ctx, kind, rid)
}

func TestMemoResolverLoadsOnce(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{Store: memory.New()}
	tr := uuid.New()
	_ = loader.PutResource(ctx, &resource.Record{
		Kind: resource.KindTranslation, ID: tr, CreatorID: uuid.New(),
		Language: ptr("en"), Visible: ptr(true),
	})

	r := NewTableResolver(newMemoResolver(loader))
	for _, a := range []ModelAttrib{AttribLanguage, AttribVisibility, AttribCreatorID} {
		if _, err := r.Resolve(ctx, a, resource.KindTranslation, tr); err != nil {
			t.Fatalf("%s: %v", a, err)
		}
	}
	missing := uuid.New()
	for range 2 {
		if _, err := r.Resolve(ctx, AttribLanguage, resource.KindTranslation, missing); !errors.Is(err, ErrResourceNotFound) {
			t.Fatalf("expected ErrResourceNotFound, got %v", err)
		}
	}
	if loader.calls != 2 {
		t.Fatalf("expected 2 loads, got %d", loader.calls)
	}
}

func TestTableResolverUnavailable(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	tr := uuid.New()
	_ = s.PutResource(ctx, &resource.Record{Kind: resource.KindTranslation, ID: tr})

	r := NewTableResolver(s)
	if _, err := r.Resolve(ctx, AttribTranslatorID, resource.KindTranslation, tr); !errors.Is(err, ErrAttributeUnavailable) {
		t.Fatalf("a record without a translator should be unavailable, got %v", err)
	}
	if _, err := r.Resolve(ctx, AttribOwnerID, resource.KindTranslation, tr); !errors.Is(err, ErrAttributeUnavailable) {
		t.Fatalf("owner does not apply to translations, got %v", err)
	}
	if _, err := r.Resolve(ctx, ModelAttrib(0), resource.KindTranslation, tr); !errors.Is(err, ErrUnknownAttribute) {
		t.Fatalf("expected ErrUnknownAttribute, got %v", err)
	}
}

func TestSubjectContext(t *testing.T) {
	ctx := context.Background()
	if SubjectFromContext(ctx) != nil {
		t.Fatal("empty context should be anonymous")
	}
	s := &Subject{ID: "9", Roles: ParseRoles(" editor, ,admin ")}
	got := SubjectFromContext(WithSubject(ctx, s))
	if got == nil || got.ID != "9" || len(got.Roles) != 2 || got.Roles[1] != "admin" {
		t.Fatalf("unexpected subject: %+v", got)
	}
}
