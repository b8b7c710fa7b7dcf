package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/aevon-lab/indexer-metrics-collector/internal/auth"
	"github.com/aevon-lab/indexer-metrics-collector/internal/core/storage"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix = "COLLECTOR_"

	// DefaultLabelsEnv holds a JSON object of labels merged into every exported series.
	DefaultLabelsEnv = "PROMETHEUS_DEFAULT_LABELS"
)

var labelNameRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config represents the top-level application config plus the resolved access policy.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Log     LogConfig     `koanf:"log"`
	Storage StorageConfig `koanf:"storage"`
	Metrics MetricsConfig `koanf:"metrics"`
	Auth    AuthConfig    `koanf:"auth"`

	// Policy is populated by Load after validating the auth section.
	Policy auth.Policy `koanf:"-"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"`     // debug | release
	OpsAddr       string `koanf:"ops_addr"` // empty disables the ops listener
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug | info | warn | error
	Format string `koanf:"format"` // text | json
}

type StorageConfig struct {
	Type         string      `koanf:"type"`
	DSN          string      `koanf:"dsn"`
	MaxOpenConns int         `koanf:"max_open_conns"`
	MaxIdleConns int         `koanf:"max_idle_conns"`
	AutoMigrate  bool        `koanf:"auto_migrate"`
	Path         string      `koanf:"path"` // sqlite database file
	Redis        RedisConfig `koanf:"redis"`
}

type RedisConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

type MetricsConfig struct {
	DefaultLabels map[string]string `koanf:"default_labels"`
}

type AuthConfig struct {
	Clients    map[string]ClientConfig `koanf:"clients"`
	PolicyJSON string                  `koanf:"policy_json"`
}

type ClientConfig struct {
	Passwords    []string `koanf:"passwords" json:"passwords"`
	Capabilities []string `koanf:"capabilities" json:"capabilities"`
}

// Addr returns the main listener address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log.format %q (must be text or json)", c.Log.Format)
	}

	switch c.Storage.Type {
	case storage.BackendMemory:
	case storage.BackendPostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("storage.dsn is required for postgres")
		}
		if c.Storage.MaxOpenConns <= 0 {
			return fmt.Errorf("storage.max_open_conns must be > 0")
		}
		if c.Storage.MaxIdleConns <= 0 {
			return fmt.Errorf("storage.max_idle_conns must be > 0")
		}
	case storage.BackendSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required for sqlite")
		}
	case storage.BackendRedis:
		if strings.TrimSpace(c.Storage.Redis.Addr) == "" {
			return fmt.Errorf("storage.redis.addr is required for redis")
		}
		if c.Storage.Redis.DB < 0 {
			return fmt.Errorf("storage.redis.db must be >= 0")
		}
	default:
		return fmt.Errorf("unsupported storage.type %q", c.Storage.Type)
	}

	for name := range c.Metrics.DefaultLabels {
		if !labelNameRE.MatchString(name) || strings.HasPrefix(name, "__") || name == "le" {
			return fmt.Errorf("invalid default label name %q", name)
		}
	}

	return nil
}

// resolvePolicy merges the clients section with the JSON policy document and validates the result.
// Entries from policy_json replace clients of the same name.
func (c *Config) resolvePolicy() (auth.Policy, error) {
	raw := make(map[string]interface{}, len(c.Auth.Clients))
	for id, client := range c.Auth.Clients {
		raw[id] = client
	}
	if strings.TrimSpace(c.Auth.PolicyJSON) != "" {
		var doc map[string]interface{}
		if err := json.Unmarshal([]byte(c.Auth.PolicyJSON), &doc); err != nil {
			return nil, fmt.Errorf("invalid auth.policy_json: %w", err)
		}
		for id, client := range doc {
			raw[id] = client
		}
	}
	return auth.ParsePolicy(raw)
}

// LoadDotEnv exports the variables of a dotenv file. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load parses config from defaults, file and env, validates it, then resolves the access policy.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":              8080,
		"server.host":              "0.0.0.0",
		"server.max_body_size_mb":  1,
		"server.mode":              "release",
		"server.ops_addr":          "",
		"log.level":                "info",
		"log.format":               "text",
		"storage.type":             storage.BackendMemory,
		"storage.dsn":              "",
		"storage.max_open_conns":   10,
		"storage.max_idle_conns":   10,
		"storage.auto_migrate":     true,
		"storage.path":             "./data/collector.db",
		"storage.redis.addr":       "localhost:6379",
		"storage.redis.db":         0,
		"storage.redis.key_prefix": "collector:",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if raw, ok := os.LookupEnv(DefaultLabelsEnv); ok && strings.TrimSpace(raw) != "" {
		var labels map[string]string
		if err := json.Unmarshal([]byte(raw), &labels); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", DefaultLabelsEnv, err)
		}
		if cfg.Metrics.DefaultLabels == nil {
			cfg.Metrics.DefaultLabels = make(map[string]string, len(labels))
		}
		for name, value := range labels {
			cfg.Metrics.DefaultLabels[name] = value
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	policy, err := cfg.resolvePolicy()
	if err != nil {
		return nil, fmt.Errorf("failed to load access policy: %w", err)
	}
	cfg.Policy = policy

	return &cfg, nil
}
