package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Auth     AuthConfig     `koanf:"auth"`
	Authz    AuthzConfig    `koanf:"authz"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type DatabaseConfig struct {
	URL            string `koanf:"url"`
	MigrationsPath string `koanf:"migrations_path"`
	MaxConns       int    `koanf:"max_conns"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type AuthConfig struct {
	DevMode bool      `koanf:"devmode"`
	JWT     JWTConfig `koanf:"jwt"`
}

type JWTConfig struct {
	SigningKey         string `koanf:"signingkey"`
	Issuer             string `koanf:"issuer"`
	ExpiryHours        int    `koanf:"expiryhours"`
	RefreshExpiryHours int    `koanf:"refreshexpiryhours"`
}

type AuthzConfig struct {
	// DefaultLogical is the logical mode used by routes that do not declare
	// one: "all" or "any".
	DefaultLogical string `koanf:"default_logical"`
	// Audit enables audit logging of refusals and authorization errors.
	Audit bool `koanf:"audit"`
}

func Load(configPaths ...string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	_ = k.Load(confmap.Provider(map[string]any{
		"server.port":                 8080,
		"server.host":                 "0.0.0.0",
		"database.max_conns":          25,
		"database.migrations_path":    "migrations",
		"log.level":                   "info",
		"log.format":                  "json",
		"auth.devmode":                false,
		"auth.jwt.issuer":             "scopeward",
		"auth.jwt.expiryhours":        24,
		"auth.jwt.refreshexpiryhours": 168,
		"authz.default_logical":       "all",
		"authz.audit":                 true,
	}, "."), nil)

	// YAML file (optional)
	for _, path := range configPaths {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// Config file is optional, skip if not found
			continue
		}
	}

	// Environment variables override everything
	// SCOPEWARD_SERVER_PORT -> server.port
	_ = k.Load(env.Provider("SCOPEWARD_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "SCOPEWARD_")),
			"_", ".",
		)
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Authz.DefaultLogical != "all" && cfg.Authz.DefaultLogical != "any" {
		return nil, fmt.Errorf("authz.default_logical must be %q or %q, got %q", "all", "any", cfg.Authz.DefaultLogical)
	}

	return &cfg, nil
}
