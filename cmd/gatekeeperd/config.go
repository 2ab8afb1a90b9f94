package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the daemon configuration, read from gatekeeperd.yaml and
// GATEKEEPER_* environment variables.
type Config struct {
	Listen          string        `mapstructure:"listen"`
	Upstream        string        `mapstructure:"upstream"`
	SeedFile        string        `mapstructure:"seed_file"`
	SubjectHeader   string        `mapstructure:"subject_header"`
	RolesHeader     string        `mapstructure:"roles_header"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Store           StoreConfig   `mapstructure:"store"`
	Engine          EngineConfig  `mapstructure:"engine"`
	Audit           AuditConfig   `mapstructure:"audit"`
}

// StoreConfig selects the permission store. Driver is "memory" or
// "sqlite"; DSN is the sqlite database path.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// EngineConfig mirrors gatekeeper.Config.
type EngineConfig struct {
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	CacheSize     int           `mapstructure:"cache_size"`
	MaxConditions int           `mapstructure:"max_conditions"`
}

// AuditConfig controls the check log.
type AuditConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	DeniesOnly    bool          `mapstructure:"denies_only"`
	Retention     time.Duration `mapstructure:"retention"`
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
}

// LoadConfig reads the config file at path, or gatekeeperd.yaml from the
// working directory when path is empty. A missing default file is not an
// error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gatekeeperd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetDefault("listen", ":8080")
	v.SetDefault("upstream", "http://localhost:8081")
	v.SetDefault("seed_file", "")
	v.SetDefault("subject_header", "X-Subject-ID")
	v.SetDefault("roles_header", "X-Subject-Roles")
	v.SetDefault("log_level", "info")
	v.SetDefault("shutdown_timeout", 5*time.Second)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "gatekeeper.db")
	v.SetDefault("engine.cache_ttl", 0)
	v.SetDefault("engine.cache_size", 0)
	v.SetDefault("engine.max_conditions", 16)
	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.denies_only", false)
	v.SetDefault("audit.retention", 7*24*time.Hour)
	v.SetDefault("audit.purge_interval", time.Hour)

	v.SetEnvPrefix("GATEKEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
