package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Sites      SitesConfig      `mapstructure:"sites"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        LogConfig        `mapstructure:"log"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Policy     PolicyConfig     `mapstructure:"policy"`
	Publishing PublishingConfig `mapstructure:"publishing"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Mirror     MirrorConfig     `mapstructure:"mirror"`
}

// ServerConfig holds owner API server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SitesConfig holds the public site server configuration.
type SitesConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	BaseDomain   string        `mapstructure:"base_domain"`
	PathPrefix   string        `mapstructure:"path_prefix"`
	Scheme       string        `mapstructure:"scheme"`
	Routing      string        `mapstructure:"routing"` // "host" or "path", used for public URLs
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// Address returns the site server address in host:port format.
func (c SitesConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration.
// A DSN starting with postgres:// selects PostgreSQL; anything else is a
// SQLite file path.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// Mode determines how authentication is handled.
	// "header" - Extract identity from gateway headers (production)
	// "dev" - Auto-authenticate as dev_user_id (local development)
	// "none" - Skip auth extraction entirely (unauthenticated requests)
	Mode string `mapstructure:"mode"`

	// SharedSecret is an optional secret to validate X-APIGate-Secret header.
	// If empty, secret validation is skipped.
	SharedSecret string `mapstructure:"shared_secret"`

	// DevUserID is the identity used in dev mode.
	DevUserID string `mapstructure:"dev_user_id"`
}

// PolicyConfig holds the reservation policy source.
type PolicyConfig struct {
	// File is a YAML policy file. Empty uses the built-in policy.
	File string `mapstructure:"file"`

	// Watch reloads File when it changes.
	Watch bool `mapstructure:"watch"`
}

// PublishingConfig holds publishing rules.
type PublishingConfig struct {
	// ReleaseCooldown holds a released name back from other projects.
	ReleaseCooldown time.Duration `mapstructure:"release_cooldown"`
}

// CacheConfig holds the Redis snapshot cache configuration.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MirrorConfig holds the object storage mirror configuration.
type MirrorConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9090)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("sites.host", "0.0.0.0")
	v.SetDefault("sites.port", 9091)
	v.SetDefault("sites.base_domain", "sites.localhost")
	v.SetDefault("sites.path_prefix", "site")
	v.SetDefault("sites.scheme", "https")
	v.SetDefault("sites.routing", "host")
	v.SetDefault("sites.read_timeout", "30s")
	v.SetDefault("sites.write_timeout", "60s")
	v.SetDefault("sites.idle_timeout", "120s")
	v.SetDefault("database.dsn", "./data/sitehost.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("auth.mode", "dev") // Default to dev user for development
	v.SetDefault("auth.shared_secret", "")
	v.SetDefault("auth.dev_user_id", "dev-user")
	v.SetDefault("policy.file", "")
	v.SetDefault("policy.watch", true)
	v.SetDefault("publishing.release_cooldown", "0s")
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", "60s")
	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.bucket", "")
	v.SetDefault("mirror.prefix", "")
	v.SetDefault("mirror.region", "us-east-1")
	v.SetDefault("mirror.endpoint", "")
	v.SetDefault("mirror.access_key_id", "")
	v.SetDefault("mirror.secret_access_key", "")
	v.SetDefault("mirror.use_path_style", false)

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("SITEHOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// SITEHOST_DATA_DIR places the SQLite file unless a DSN was given.
	explicitDSN := os.Getenv("SITEHOST_DATABASE_DSN") != "" || v.InConfig("database.dsn")
	if dataDir := os.Getenv("SITEHOST_DATA_DIR"); dataDir != "" && !explicitDSN {
		cfg.Database.DSN = filepath.Join(dataDir, "sitehost.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Auth.Mode {
	case "header", "dev", "none":
	default:
		return fmt.Errorf("auth.mode must be header, dev, or none, got %q", c.Auth.Mode)
	}
	switch c.Sites.Routing {
	case "host", "path":
	default:
		return fmt.Errorf("sites.routing must be host or path, got %q", c.Sites.Routing)
	}
	if c.Publishing.ReleaseCooldown < 0 {
		return fmt.Errorf("publishing.release_cooldown must not be negative")
	}
	if c.Mirror.Enabled && c.Mirror.Bucket == "" {
		return fmt.Errorf("mirror.bucket is required when the mirror is enabled")
	}
	return nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
