package extension

import "time"

// Config holds the gatekeeper extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.gatekeeper" or "gatekeeper" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// CacheTTL enables the in-memory decision cache when positive.
	CacheTTL time.Duration `json:"cache_ttl" mapstructure:"cache_ttl" yaml:"cache_ttl"`

	// CacheSize bounds the decision cache. Zero keeps the cache default.
	CacheSize int `json:"cache_size" mapstructure:"cache_size" yaml:"cache_size"`

	// MaxConditions caps the conditions of one permission. Zero means no limit.
	MaxConditions int `json:"max_conditions" mapstructure:"max_conditions" yaml:"max_conditions"`

	// AuditChecks records every decision in the check log.
	AuditChecks bool `json:"audit_checks" mapstructure:"audit_checks" yaml:"audit_checks"`

	// AuditDeniesOnly limits the check log to denials. Implies AuditChecks.
	AuditDeniesOnly bool `json:"audit_denies_only" mapstructure:"audit_denies_only" yaml:"audit_denies_only"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConditions: 16,
	}
}
