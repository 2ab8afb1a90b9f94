package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/gatekeeper"
	"github.com/xraph/gatekeeper/cache"
	"github.com/xraph/gatekeeper/middleware"
	"github.com/xraph/gatekeeper/seed"
	"github.com/xraph/gatekeeper/store"
	"github.com/xraph/gatekeeper/store/memory"
	"github.com/xraph/gatekeeper/store/sqlite"
)

// openStore opens the configured store and migrates it. The returned close
// function releases the database handle.
func openStore(ctx context.Context, cfg StoreConfig) (store.Store, func() error, error) {
	switch cfg.Driver {
	case "", "memory":
		return memory.New(), func() error { return nil }, nil
	case "sqlite":
		drv := sqlitedriver.New()
		if err := drv.Open(ctx, cfg.DSN+"?_time_format=sqlite"); err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.DSN, err)
		}
		db, err := grove.Open(drv)
		if err != nil {
			return nil, nil, fmt.Errorf("open grove: %w", err)
		}
		s := sqlite.New(db)
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// newEngine builds the engine over the configured store and applies the
// seed fixture when one is configured.
func newEngine(ctx context.Context, cfg *Config, s store.Store, logger *slog.Logger) (*gatekeeper.Engine, error) {

	ecfg := gatekeeper.DefaultConfig()
	ecfg.CacheTTL = cfg.Engine.CacheTTL
	ecfg.MaxConditions = cfg.Engine.MaxConditions

	opts := []gatekeeper.Option{
		gatekeeper.WithStore(s),
		gatekeeper.WithConfig(ecfg),
		gatekeeper.WithLogger(logger),
	}
	if ecfg.CacheTTL > 0 {
		copts := []cache.MemoryOption{cache.WithTTL(ecfg.CacheTTL)}
		if cfg.Engine.CacheSize > 0 {
			copts = append(copts, cache.WithMaxSize(cfg.Engine.CacheSize))
		}
		opts = append(opts, gatekeeper.WithCache(cache.NewMemory(copts...)))
	}
	if cfg.Audit.Enabled {
		var aopts []gatekeeper.AuditOption
		if cfg.Audit.DeniesOnly {
			aopts = append(aopts, gatekeeper.AuditDeniesOnly())
		}
		opts = append(opts, gatekeeper.WithPlugin(gatekeeper.NewAuditPlugin(s, aopts...)))
	}

	eng, err := gatekeeper.NewEngine(opts...)
	if err != nil {
		return nil, err
	}

	if cfg.SeedFile != "" {
		doc, err := seed.LoadFromFile(cfg.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("load seed %s: %w", cfg.SeedFile, err)
		}
		if err := seed.Apply(ctx, eng, doc); err != nil {
			return nil, err
		}
		logger.Info("seed applied",
			slog.String("file", cfg.SeedFile),
			slog.Int("permissions", len(doc.Permissions)),
			slog.Int("resources", len(doc.Resources)),
		)
	}
	return eng, nil
}

// newRouter gates every request except the health endpoint and forwards the
// allowed ones to upstream.
func newRouter(cfg *Config, eng middleware.Checker, upstream http.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(trustedSubject(cfg.SubjectHeader, cfg.RolesHeader))
		r.Use(middleware.Gate(eng, middleware.WithLogger(logger)))
		r.Handle("/*", upstream)
	})
	return r
}

// trustedSubject stores the subject named by the authentication headers on
// the request context. A request without the ID header is anonymous.
func trustedSubject(idHeader, rolesHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := r.Header.Get(idHeader)
			if sid == "" {
				next.ServeHTTP(w, r)
				return
			}
			subject := &gatekeeper.Subject{
				ID:    sid,
				Roles: gatekeeper.ParseRoles(r.Header.Get(rolesHeader)),
			}
			next.ServeHTTP(w, r.WithContext(gatekeeper.WithSubject(r.Context(), subject)))
		})
	}
}

func newProxy(rawURL string, logger *slog.Logger) (http.Handler, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream %q: %w", rawURL, err)
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("upstream request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		w.WriteHeader(http.StatusBadGateway)
	}
	return proxy, nil
}

// purgeLoop drops check log entries older than retention every interval
// until ctx ends.
func purgeLoop(ctx context.Context, s store.Store, retention, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.PurgeCheckLogs(ctx, time.Now().UTC().Add(-retention))
			if err != nil {
				logger.Warn("check log purge failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				logger.Info("check logs purged", slog.Int64("count", n))
			}
		}
	}
}
