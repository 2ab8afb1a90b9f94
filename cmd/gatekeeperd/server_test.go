package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/xraph/gatekeeper"
	"github.com/xraph/gatekeeper/checklog"
	"github.com/xraph/gatekeeper/middleware"
)

func newTestDaemon(t *testing.T, cfg *Config) (http.Handler, *gatekeeper.Engine) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, closeStore, err := openStore(context.Background(), cfg.Store)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	t.Cleanup(func() { _ = closeStore() })

	eng, err := newEngine(context.Background(), cfg, s, logger)
	if err != nil {
		t.Fatalf("newEngine: %v", err)
	}
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", "yes")
		_, _ = w.Write([]byte("upstream " + r.URL.Path))
	})
	return newRouter(cfg, eng, upstream, logger), eng
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		SubjectHeader: "X-Subject-ID",
		RolesHeader:   "X-Subject-Roles",
		Engine:        EngineConfig{MaxConditions: 16},
	}
}

func TestHealthzIsNotGated(t *testing.T) {
	h, _ := newTestDaemon(t, testConfig(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestDeniedRequestNeverReachesUpstream(t *testing.T) {
	h, _ := newTestDaemon(t, testConfig(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/surah", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if rec.Body.String() != middleware.DenyMessage {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if rec.Header().Get("X-Upstream") != "" {
		t.Fatal("upstream must not be called on deny")
	}
}

func TestTrustedHeadersGrantByRole(t *testing.T) {
	ctx := context.Background()
	h, eng := newTestDaemon(t, testConfig(t))
	if _, err := eng.CreatePermission(ctx, &gatekeeper.NewPermission{
		Subject: "role:editor", Object: "surah", Action: "write",
	}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/surah", nil)
	req.Header.Set("X-Subject-ID", "u-1")
	req.Header.Set("X-Subject-Roles", "reader, editor")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "upstream /surah" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}

	// Without the headers the same request is anonymous.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/surah", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for anonymous, got %d", rec.Code)
	}
}

func TestSeedAndAuditWiring(t *testing.T) {
	seedPath := filepath.Join(t.TempDir(), "seed.yaml")
	fixture := `
permissions:
  - subject: anonymous
    object: surah
    action: read
`
	if err := os.WriteFile(seedPath, []byte(fixture), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig(t)
	cfg.SeedFile = seedPath
	cfg.Audit.Enabled = true

	h, eng := newTestDaemon(t, cfg)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/surah", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	logs, err := eng.Store().ListCheckLogs(context.Background(), &checklog.QueryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].Decision != string(gatekeeper.DecisionAllow) {
		t.Fatalf("expected one allow entry, got %+v", logs)
	}
}

func TestSQLiteStorePersistsAcrossRestarts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store = StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "gatekeeper.db")}

	_, eng := newTestDaemon(t, cfg)
	if _, err := eng.CreatePermission(context.Background(), &gatekeeper.NewPermission{
		Subject: "*", Object: "surah", Action: "read",
	}); err != nil {
		t.Fatal(err)
	}

	h, _ := newTestDaemon(t, cfg)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/surah", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected the stored permission to grant after reopening, got %d", rec.Code)
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	if _, _, err := openStore(context.Background(), StoreConfig{Driver: "oracle"}); err == nil {
		t.Fatal("expected an unknown driver to fail")
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an explicit missing config file to fail")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatekeeperd.yaml")
	content := `
listen: ":9090"
upstream: "http://backend:8000"
engine:
  cache_ttl: 30s
audit:
  enabled: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Listen != ":9090" || cfg.Upstream != "http://backend:8000" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Engine.CacheTTL.String() != "30s" || cfg.Engine.MaxConditions != 16 {
		t.Fatalf("unexpected engine config %+v", cfg.Engine)
	}
	if !cfg.Audit.Enabled || cfg.SubjectHeader != "X-Subject-ID" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}
