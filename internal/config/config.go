// Package config loads the guidance server configuration from a YAML or
// JSON file, applies GUIDANCE_* environment overrides and validates it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/guidance/pkg/persistence/middleware"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreFile   = "file"
)

// Archive drivers.
const (
	ArchiveNone   = "none"
	ArchiveSQLite = "sqlite"
)

// MCP transports.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GUIDANCE_"

// Config is the full server configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" json:"log"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Session    SessionConfig    `yaml:"session" json:"session"`
	Archive    ArchiveConfig    `yaml:"archive" json:"archive"`
	Escalation EscalationConfig `yaml:"escalation" json:"escalation"`
	HTTP       HTTPConfig       `yaml:"http" json:"http"`
	MCP        MCPConfig        `yaml:"mcp" json:"mcp"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

type StoreConfig struct {
	Driver string      `yaml:"driver" json:"driver"`
	Redis  RedisConfig `yaml:"redis" json:"redis"`
	File   FileConfig  `yaml:"file" json:"file"`

	// EncryptionKey is a base64 AES-256 key. When set, session fields and
	// audit trails are sealed at rest.
	EncryptionKey string `yaml:"encryption_key" json:"encryption_key"`
	// FallbackKeys are retired keys still accepted for decryption.
	FallbackKeys []string `yaml:"fallback_keys" json:"fallback_keys"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password" json:"password"`
	DB       int           `yaml:"db" json:"db"`
	Prefix   string        `yaml:"prefix" json:"prefix"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

type FileConfig struct {
	Path string `yaml:"path" json:"path"`
}

type SessionConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
	LockTTL       time.Duration `yaml:"lock_ttl" json:"lock_ttl"`
}

type ArchiveConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	Path   string `yaml:"path" json:"path"`
	// MaskFields are key patterns whose values are masked in archive records.
	MaskFields []string `yaml:"mask_fields" json:"mask_fields"`
}

type EscalationConfig struct {
	SeverityThreshold int `yaml:"severity_threshold" json:"severity_threshold"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

type MCPConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	Port      int    `yaml:"port" json:"port"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Store: StoreConfig{
			Driver: StoreMemory,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "guidance:session:",
			},
			File: FileConfig{Path: ".guidance/sessions"},
		},
		Session: SessionConfig{
			IdleTimeout:   30 * time.Minute,
			SweepInterval: time.Minute,
			LockTTL:       10 * time.Second,
		},
		Archive: ArchiveConfig{
			Driver:     ArchiveNone,
			Path:       "guidance-archive.db",
			MaskFields: []string{"^patient_"},
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		MCP:  MCPConfig{Transport: TransportStdio, Port: 8081},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path or a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := decode(path, data, &cfg); err != nil {
				return Config{}, err
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		// JSON has no duration type, so route it through YAML which does.
		data, _ = yaml.Marshal(raw)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Validate checks enumerations and required values.
func (c Config) Validate() error {
	var problems []string
	switch c.Store.Driver {
	case StoreMemory:
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			problems = append(problems, "store.redis.addr is required for the redis driver")
		}
	case StoreFile:
		if c.Store.File.Path == "" {
			problems = append(problems, "store.file.path is required for the file driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not one of memory, redis, file", c.Store.Driver))
	}
	if c.Store.EncryptionKey != "" {
		if _, err := middleware.ParseKey(c.Store.EncryptionKey); err != nil {
			problems = append(problems, "store.encryption_key: "+err.Error())
		}
	}
	for _, k := range c.Store.FallbackKeys {
		if _, err := middleware.ParseKey(k); err != nil {
			problems = append(problems, "store.fallback_keys: "+err.Error())
		}
	}
	if len(c.Store.FallbackKeys) > 0 && c.Store.EncryptionKey == "" {
		problems = append(problems, "store.fallback_keys requires store.encryption_key")
	}
	switch c.Archive.Driver {
	case ArchiveNone, "":
	case ArchiveSQLite:
		if c.Archive.Path == "" {
			problems = append(problems, "archive.path is required for the sqlite driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("archive.driver %q is not one of none, sqlite", c.Archive.Driver))
	}
	if _, err := middleware.CompilePatterns(c.Archive.MaskFields); err != nil {
		problems = append(problems, "archive.mask_fields: "+err.Error())
	}
	switch c.MCP.Transport {
	case TransportStdio, TransportSSE:
	default:
		problems = append(problems, fmt.Sprintf("mcp.transport %q is not one of stdio, sse", c.MCP.Transport))
	}
	if c.Session.IdleTimeout <= 0 {
		problems = append(problems, "session.idle_timeout must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		problems = append(problems, "session.sweep_interval must be positive")
	}
	if c.Escalation.SeverityThreshold < 0 {
		problems = append(problems, "escalation.severity_threshold must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"LOG_LEVEL":      &c.Log.Level,
		"STORE_DRIVER":   &c.Store.Driver,
		"REDIS_ADDR":     &c.Store.Redis.Addr,
		"REDIS_PASSWORD": &c.Store.Redis.Password,
		"REDIS_PREFIX":   &c.Store.Redis.Prefix,
		"STORE_PATH":     &c.Store.File.Path,
		"ARCHIVE_DRIVER": &c.Archive.Driver,
		"ARCHIVE_PATH":   &c.Archive.Path,
		"HTTP_ADDR":      &c.HTTP.Addr,
		"MCP_TRANSPORT":  &c.MCP.Transport,
		"ENCRYPTION_KEY": &c.Store.EncryptionKey,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"REDIS_DB":           &c.Store.Redis.DB,
		"SEVERITY_THRESHOLD": &c.Escalation.SeverityThreshold,
		"MCP_PORT":           &c.MCP.Port,
	}
	for key, dst := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"REDIS_TTL":      &c.Store.Redis.TTL,
		"IDLE_TIMEOUT":   &c.Session.IdleTimeout,
		"SWEEP_INTERVAL": &c.Session.SweepInterval,
		"LOCK_TTL":       &c.Session.LockTTL,
	}
	for key, dst := range durations {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = d
		}
	}
	return nil
}
