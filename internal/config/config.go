// Package config provides Viper-based configuration loading for the Corsair server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/corsair/internal/ratelimit"
)

// EnvPrefix is the prefix of environment variable overrides, e.g. CORSAIR_SERVER_PORT.
const EnvPrefix = "CORSAIR"

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Mode is the gin mode: "debug", "release" or "test".
	Mode string `mapstructure:"mode"`
	// Host is the bind address of the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port of the HTTP listener.
	Port int `mapstructure:"port"`
	// StaticDir, when set, is served at / for the browser client.
	StaticDir string `mapstructure:"static_dir"`
	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig holds connection settings for either PostgreSQL or SQLite.
type DatabaseConfig struct {
	// Driver selects the store: "postgres" or "sqlite".
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// SQLitePath is the database file used when Driver is "sqlite".
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	// JWTSecret signs session tokens. It must be at least 32 bytes.
	JWTSecret string `mapstructure:"jwt_secret"`
	// SessionTTL is how long a login stays valid.
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	// CookieName is the name of the session cookie.
	CookieName string `mapstructure:"cookie_name"`
	// SecureCookie marks the session cookie Secure (HTTPS only).
	SecureCookie bool `mapstructure:"secure_cookie"`
	// LoginLimit throttles login attempts per client address.
	LoginLimit ratelimit.Policy `mapstructure:"login_limit"`
}

// BattleConfig describes the fixed enemy every battle starts against.
type BattleConfig struct {
	EnemyName  string `mapstructure:"enemy_name"`
	EnemyLevel int    `mapstructure:"enemy_level"`
	EnemyMaxHP int    `mapstructure:"enemy_max_hp"`
}

// ChatConfig holds chat room settings.
type ChatConfig struct {
	// HistoryLimit is how many recent messages a client receives on connect.
	HistoryLimit int `mapstructure:"history_limit"`
	// OutboxSize is the per-connection frame buffer.
	OutboxSize int `mapstructure:"outbox_size"`
	// RateLimit throttles messages per account.
	RateLimit ratelimit.Policy `mapstructure:"rate_limit"`
}

// HealthConfig holds the gRPC health endpoint settings.
type HealthConfig struct {
	GRPCHost string `mapstructure:"grpc_host"`
	GRPCPort int    `mapstructure:"grpc_port"`
	// CheckInterval is how often the database is probed.
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// Addr returns the "host:port" gRPC address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (h HealthConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.GRPCHost, h.GRPCPort)
}

// ContentConfig locates static game content.
type ContentConfig struct {
	// SkillsDir holds the skill catalog YAML files.
	SkillsDir string `mapstructure:"skills_dir"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Battle   BattleConfig   `mapstructure:"battle"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Health   HealthConfig   `mapstructure:"health"`
	Content  ContentConfig  `mapstructure:"content"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	for _, check := range []func() error{
		func() error { return validateServer(c.Server) },
		func() error { return validateDatabase(c.Database) },
		func() error { return validateLogging(c.Logging) },
		func() error { return validateAuth(c.Auth) },
		func() error { return validateBattle(c.Battle) },
		func() error { return validateChat(c.Chat) },
		func() error { return validateHealth(c.Health) },
	} {
		if err := check(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if c.Content.SkillsDir == "" {
		errs = append(errs, "content.skills_dir must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func joinViolations(errs []string) error {
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validPort(p int) bool { return p >= 1 && p <= 65535 }

func validateServer(s ServerConfig) error {
	var errs []string
	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[s.Mode] {
		errs = append(errs, fmt.Sprintf("server.mode must be one of [debug, release, test], got %q", s.Mode))
	}
	if !validPort(s.Port) {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.ShutdownTimeout < 0 {
		errs = append(errs, "server.shutdown_timeout must not be negative")
	}
	return joinViolations(errs)
}

func validateDatabase(d DatabaseConfig) error {
	switch d.Driver {
	case DriverSQLite:
		if d.SQLitePath == "" {
			return errors.New("database.sqlite_path must not be empty for the sqlite driver")
		}
		return nil
	case DriverPostgres:
	default:
		return fmt.Errorf("database.driver must be one of [postgres, sqlite], got %q", d.Driver)
	}

	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if !validPort(d.Port) {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	return joinViolations(errs)
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateAuth(a AuthConfig) error {
	var errs []string
	if len(a.JWTSecret) < 32 {
		errs = append(errs, fmt.Sprintf("auth.jwt_secret must be at least 32 bytes, got %d", len(a.JWTSecret)))
	}
	if a.SessionTTL <= 0 {
		errs = append(errs, "auth.session_ttl must be > 0")
	}
	if a.CookieName == "" {
		errs = append(errs, "auth.cookie_name must not be empty")
	}
	if err := a.LoginLimit.Validate(); err != nil {
		errs = append(errs, "auth.login_limit: "+err.Error())
	}
	return joinViolations(errs)
}

func validateBattle(b BattleConfig) error {
	var errs []string
	if b.EnemyName == "" {
		errs = append(errs, "battle.enemy_name must not be empty")
	}
	if b.EnemyLevel < 1 {
		errs = append(errs, fmt.Sprintf("battle.enemy_level must be >= 1, got %d", b.EnemyLevel))
	}
	if b.EnemyMaxHP < 1 {
		errs = append(errs, fmt.Sprintf("battle.enemy_max_hp must be >= 1, got %d", b.EnemyMaxHP))
	}
	return joinViolations(errs)
}

func validateChat(c ChatConfig) error {
	var errs []string
	if c.HistoryLimit < 0 {
		errs = append(errs, fmt.Sprintf("chat.history_limit must be >= 0, got %d", c.HistoryLimit))
	}
	if c.OutboxSize < 1 {
		errs = append(errs, fmt.Sprintf("chat.outbox_size must be >= 1, got %d", c.OutboxSize))
	}
	if err := c.RateLimit.Validate(); err != nil {
		errs = append(errs, "chat.rate_limit: "+err.Error())
	}
	return joinViolations(errs)
}

func validateHealth(h HealthConfig) error {
	var errs []string
	if h.GRPCHost == "" {
		errs = append(errs, "health.grpc_host must not be empty")
	}
	if !validPort(h.GRPCPort) {
		errs = append(errs, fmt.Sprintf("health.grpc_port must be 1-65535, got %d", h.GRPCPort))
	}
	if h.CheckInterval <= 0 {
		errs = append(errs, "health.check_interval must be > 0")
	}
	return joinViolations(errs)
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path loads defaults and environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with CORSAIR_ prefix
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "corsair")
	v.SetDefault("database.password", "corsair")
	v.SetDefault("database.name", "corsair")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.sqlite_path", "corsair.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.session_ttl", "24h")
	v.SetDefault("auth.cookie_name", "session")
	v.SetDefault("auth.secure_cookie", false)
	v.SetDefault("auth.login_limit.max_events", 8)
	v.SetDefault("auth.login_limit.window", "60s")
	v.SetDefault("auth.login_limit.block_for", "2m")

	v.SetDefault("battle.enemy_name", "Pirate Orc")
	v.SetDefault("battle.enemy_level", 1)
	v.SetDefault("battle.enemy_max_hp", 50)

	v.SetDefault("chat.history_limit", 50)
	v.SetDefault("chat.outbox_size", 64)
	v.SetDefault("chat.rate_limit.max_events", 5)
	v.SetDefault("chat.rate_limit.window", "10s")
	v.SetDefault("chat.rate_limit.block_for", "30s")

	v.SetDefault("health.grpc_host", "127.0.0.1")
	v.SetDefault("health.grpc_port", 50051)
	v.SetDefault("health.check_interval", "15s")

	v.SetDefault("content.skills_dir", "content/skills")
}
