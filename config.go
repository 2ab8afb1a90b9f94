package gatekeeper

import "time"

// Config holds configuration for the gatekeeper engine.
type Config struct {
	// CacheTTL is the time-to-live for cached check results.
	// Zero means no caching.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`

	// MaxConditions caps the number of conditions on one permission.
	// Zero means no limit. Defaults to 16.
	MaxConditions int `json:"max_conditions,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConditions: 16,
	}
}

func (c Config) cacheEnabled() bool { return c.CacheTTL > 0 }
