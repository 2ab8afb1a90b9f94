package gatekeeper

import (
	"log/slog"

	"github.com/xraph/gatekeeper/plugin"
	"github.com/xraph/gatekeeper/store"
)

// Option is a functional option for the Engine.
type Option func(*Engine)

// WithStore sets the composite store.
func WithStore(s store.Store) Option { return func(e *Engine) { e.store = s } }

// WithResolver replaces the attribute resolver. By default attributes are
// read from the store's resource records.
func WithResolver(r AttributeResolver) Option { return func(e *Engine) { e.resolver = r } }

// WithCache sets the check result cache. It is consulted only when
// Config.CacheTTL is positive.
func WithCache(c Cache) Option { return func(e *Engine) { e.cache = c } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithConfig sets the engine configuration.
func WithConfig(c Config) Option { return func(e *Engine) { e.config = c } }

// WithPlugin registers a plugin with the engine. Plugins are registered in
// order once every option has been applied.
func WithPlugin(x plugin.Plugin) Option {
	return func(e *Engine) { e.pending = append(e.pending, x) }
}
