// Package extension provides a Forge extension entry point for gatekeeper.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/gatekeeper"
	"github.com/xraph/gatekeeper/api"
	"github.com/xraph/gatekeeper/cache"
	"github.com/xraph/gatekeeper/middleware"
	"github.com/xraph/gatekeeper/plugin"
	"github.com/xraph/gatekeeper/resource"
	"github.com/xraph/gatekeeper/store"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "gatekeeper"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Attribute-based request authorization gate"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts gatekeeper as a Forge extension.
type Extension struct {
	config     Config
	eng        *gatekeeper.Engine
	apiHandler *api.API
	store      store.Store
	logger     *slog.Logger
	engineOpts []gatekeeper.Option
	plugins    []plugin.Plugin
}

// New creates a gatekeeper Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Engine returns the underlying engine.
func (e *Extension) Engine() *gatekeeper.Engine { return e.eng }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Register implements [forge.Extension]. It builds the engine, registers it
// in the DI container, and optionally registers the inspection routes.
func (e *Extension) Register(fapp forge.App) error {
	if e.store == nil {
		if s, err := forge.Inject[store.Store](fapp.Container()); err == nil {
			e.store = s
		}
	}
	if err := e.init(); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*gatekeeper.Engine, error) {
		return e.eng, nil
	}); err != nil {
		return fmt.Errorf("gatekeeper: register engine in container: %w", err)
	}

	e.apiHandler = api.New(e.eng, fapp.Router())
	if !e.config.DisableRoutes {
		if err := e.apiHandler.RegisterRoutes(fapp.Router()); err != nil {
			return fmt.Errorf("gatekeeper: register routes: %w", err)
		}
	}
	return nil
}

// engineOptions assembles the engine options from config, store and plugins.
func (e *Extension) engineOptions() []gatekeeper.Option {
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := gatekeeper.DefaultConfig()
	cfg.CacheTTL = e.config.CacheTTL
	cfg.MaxConditions = e.config.MaxConditions

	opts := make([]gatekeeper.Option, 0, len(e.engineOpts)+len(e.plugins)+5)
	opts = append(opts, gatekeeper.WithLogger(logger), gatekeeper.WithConfig(cfg))
	if e.store != nil {
		opts = append(opts, gatekeeper.WithStore(e.store))
	}
	if cfg.CacheTTL > 0 {
		copts := []cache.MemoryOption{cache.WithTTL(cfg.CacheTTL)}
		if e.config.CacheSize > 0 {
			copts = append(copts, cache.WithMaxSize(e.config.CacheSize))
		}
		opts = append(opts, gatekeeper.WithCache(cache.NewMemory(copts...)))
	}
	if e.store != nil && (e.config.AuditChecks || e.config.AuditDeniesOnly) {
		var aopts []gatekeeper.AuditOption
		if e.config.AuditDeniesOnly {
			aopts = append(aopts, gatekeeper.AuditDeniesOnly())
		}
		opts = append(opts, gatekeeper.WithPlugin(gatekeeper.NewAuditPlugin(e.store, aopts...)))
	}

	// User-provided options may override any of the above.
	opts = append(opts, e.engineOpts...)
	for _, x := range e.plugins {
		opts = append(opts, gatekeeper.WithPlugin(x))
	}
	return opts
}

func (e *Extension) init() error {
	eng, err := gatekeeper.NewEngine(e.engineOptions()...)
	if err != nil {
		return fmt.Errorf("gatekeeper: create engine: %w", err)
	}
	e.eng = eng
	return nil
}

// Start runs migrations if enabled and starts the engine.
func (e *Extension) Start(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("gatekeeper: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.eng.Store().Migrate(ctx); err != nil {
			return fmt.Errorf("gatekeeper: migration failed: %w", err)
		}
	}

	return e.eng.Start(ctx)
}

// Stop gracefully shuts down the engine.
func (e *Extension) Stop(ctx context.Context) error {
	if e.eng == nil {
		return nil
	}
	return e.eng.Stop(ctx)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("gatekeeper: extension not initialized")
	}
	return e.eng.Store().Ping(ctx)
}

// Handler returns the inspection API as a standalone http.Handler.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		e.apiHandler = api.New(e.eng, nil)
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers the inspection routes into a Forge router.
func (e *Extension) RegisterRoutes(router forge.Router) error {
	if e.apiHandler != nil {
		return e.apiHandler.RegisterRoutes(router)
	}
	return nil
}

// Require returns forge middleware gating a route for kind and method.
func (e *Extension) Require(method string, kind resource.Kind, opts ...middleware.Option) forge.Middleware {
	return middleware.Require(e.eng, method, kind, opts...)
}

// Gate returns net/http middleware gating every request.
func (e *Extension) Gate(opts ...middleware.Option) func(http.Handler) http.Handler {
	return middleware.Gate(e.eng, opts...)
}
