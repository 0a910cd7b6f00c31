// Package config resolves connection and policy parameters for the server.
// Values come from flags, environment variables, and an optional YAML file,
// in that order of precedence. Resolution happens once at process start; the
// resulting Config is shared read-only by every component and the raw
// environment is never consulted again.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode is the YOLO permission-override mode. It is consulted only by the
// access policy; no other component may branch on it.
type Mode int

const (
	// ModeOff enforces the backend's enabled-model allow-list for every
	// operation. The default.
	ModeOff Mode = iota
	// ModeRead permits read operations on any model the backend knows,
	// bypassing the allow-list; writes stay gated.
	ModeRead
	// ModeFull removes the allow-list gate entirely. The backend's own user
	// permissions remain the final authority.
	ModeFull
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeFull:
		return "full"
	default:
		return "off"
	}
}

// ParseMode parses the ODOO_YOLO token. The full level is spelled "true" in
// the environment for historical reasons.
func ParseMode(token string) (Mode, error) {
	switch token {
	case "", "off":
		return ModeOff, nil
	case "read":
		return ModeRead, nil
	case "true":
		return ModeFull, nil
	default:
		return ModeOff, fmt.Errorf("invalid ODOO_YOLO value %q (want off, read, or true)", token)
	}
}

const (
	TransportStdio = "stdio"
	TransportHTTP  = "streamable-http"
)

// Defaults mirrored from the operational settings of the upstream server.
const (
	DefaultURL            = "http://localhost:8069"
	DefaultHost           = "localhost"
	DefaultPort           = 8000
	DefaultDefaultLimit   = 10
	DefaultMaxLimit       = 100
	DefaultMaxSmartFields = 25
	DefaultRPCTimeout     = 30 * time.Second
)

// Config holds the resolved, immutable server configuration.
type Config struct {
	URL      string
	Database string // empty = auto-detect at connect time

	APIKey   string
	Username string
	Password string

	Transport string
	Host      string
	Port      int

	DefaultLimit   int
	MaxLimit       int
	MaxSmartFields int

	Yolo Mode

	LogLevel      string
	ClickHouseDSN string
	RPCTimeout    time.Duration
}

// HasAPIKey reports whether API-key authentication is configured. When both
// an API key and a username/password pair are present the key wins.
func (c Config) HasAPIKey() bool { return c.APIKey != "" }

// Options carries flag-level overrides and the resolution environment.
type Options struct {
	// Env is the variable lookup; defaults to os.Getenv.
	Env func(string) string
	// File is an optional YAML config path. A missing file is an error only
	// when the path was given explicitly.
	File string

	// Flag overrides; zero values mean "not set".
	Transport string
	Host      string
	Port      int
	LogLevel  string
}

// fileConfig is the YAML overlay shape. Pointer fields distinguish "absent"
// from zero values.
type fileConfig struct {
	URL            string `yaml:"url"`
	Database       string `yaml:"database"`
	APIKey         string `yaml:"api_key"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	Transport      string `yaml:"transport"`
	Host           string `yaml:"host"`
	Port           *int   `yaml:"port"`
	DefaultLimit   *int   `yaml:"default_limit"`
	MaxLimit       *int   `yaml:"max_limit"`
	MaxSmartFields *int   `yaml:"max_smart_fields"`
	Yolo           string `yaml:"yolo"`
	LogLevel       string `yaml:"log_level"`
	ClickHouseDSN  string `yaml:"clickhouse_dsn"`
	TimeoutSeconds *int   `yaml:"timeout_seconds"`
}

// Resolve assembles the configuration and validates it. The returned Config
// must be treated as read-only.
func Resolve(opts Options) (Config, error) {
	env := opts.Env
	if env == nil {
		env = os.Getenv
	}

	cfg := Config{
		URL:            DefaultURL,
		Transport:      TransportStdio,
		Host:           DefaultHost,
		Port:           DefaultPort,
		DefaultLimit:   DefaultDefaultLimit,
		MaxLimit:       DefaultMaxLimit,
		MaxSmartFields: DefaultMaxSmartFields,
		LogLevel:       "info",
		RPCTimeout:     DefaultRPCTimeout,
	}

	if opts.File != "" {
		if err := applyFile(&cfg, opts.File); err != nil {
			return Config{}, err
		}
	}

	yoloToken := ""
	applyEnv(&cfg, env, &yoloToken)

	// Flags win over everything.
	if opts.Transport != "" {
		cfg.Transport = opts.Transport
	}
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.Port != 0 {
		cfg.Port = opts.Port
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	if yoloToken != "" {
		mode, err := ParseMode(yoloToken)
		if err != nil {
			return Config{}, err
		}
		cfg.Yolo = mode
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.URL, fc.URL)
	setString(&cfg.Database, fc.Database)
	setString(&cfg.APIKey, fc.APIKey)
	setString(&cfg.Username, fc.Username)
	setString(&cfg.Password, fc.Password)
	setString(&cfg.Transport, fc.Transport)
	setString(&cfg.Host, fc.Host)
	setInt(&cfg.Port, fc.Port)
	setInt(&cfg.DefaultLimit, fc.DefaultLimit)
	setInt(&cfg.MaxLimit, fc.MaxLimit)
	setInt(&cfg.MaxSmartFields, fc.MaxSmartFields)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.ClickHouseDSN, fc.ClickHouseDSN)
	if fc.TimeoutSeconds != nil {
		cfg.RPCTimeout = time.Duration(*fc.TimeoutSeconds) * time.Second
	}
	if fc.Yolo != "" {
		mode, err := ParseMode(fc.Yolo)
		if err != nil {
			return err
		}
		cfg.Yolo = mode
	}
	return nil
}

func applyEnv(cfg *Config, env func(string) string, yoloToken *string) {
	setString(&cfg.URL, env("ODOO_URL"))
	setString(&cfg.Database, env("ODOO_DB"))
	setString(&cfg.APIKey, env("ODOO_API_KEY"))
	setString(&cfg.Username, env("ODOO_USER"))
	setString(&cfg.Password, env("ODOO_PASSWORD"))
	setString(&cfg.Transport, env("MCP_TRANSPORT"))
	setString(&cfg.Host, env("MCP_HOST"))
	envInt(&cfg.Port, env, "MCP_PORT")
	envInt(&cfg.DefaultLimit, env, "DEFAULT_LIMIT")
	envInt(&cfg.MaxLimit, env, "MAX_LIMIT")
	envInt(&cfg.MaxSmartFields, env, "MAX_SMART_FIELDS")
	setString(&cfg.LogLevel, env("ODOO_MCP_LOG_LEVEL"))
	setString(&cfg.ClickHouseDSN, env("CLICKHOUSE_DSN"))
	setString(yoloToken, env("ODOO_YOLO"))

	if v := env("ODOO_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RPCTimeout = time.Duration(n) * time.Second
		}
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func envInt(dst *int, env func(string) string, key string) {
	if v := env(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func validate(cfg Config) error {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return fmt.Errorf("invalid ODOO_URL %q: %w", cfg.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid ODOO_URL %q: scheme must be http or https", cfg.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid ODOO_URL %q: missing host", cfg.URL)
	}

	if cfg.APIKey == "" {
		if cfg.Username == "" || cfg.Password == "" {
			return errors.New("missing credentials: set ODOO_API_KEY, or ODOO_USER and ODOO_PASSWORD")
		}
	}

	switch cfg.Transport {
	case TransportStdio:
	case TransportHTTP:
		if cfg.Port < 1 || cfg.Port > 65535 {
			return fmt.Errorf("invalid MCP_PORT %d", cfg.Port)
		}
	default:
		return fmt.Errorf("invalid MCP_TRANSPORT %q (want %s or %s)", cfg.Transport, TransportStdio, TransportHTTP)
	}

	if cfg.DefaultLimit < 1 {
		return fmt.Errorf("DEFAULT_LIMIT must be positive, got %d", cfg.DefaultLimit)
	}
	if cfg.MaxLimit < 1 {
		return fmt.Errorf("MAX_LIMIT must be positive, got %d", cfg.MaxLimit)
	}
	if cfg.DefaultLimit > cfg.MaxLimit {
		return fmt.Errorf("DEFAULT_LIMIT %d exceeds MAX_LIMIT %d", cfg.DefaultLimit, cfg.MaxLimit)
	}
	if cfg.MaxSmartFields < 1 {
		return fmt.Errorf("MAX_SMART_FIELDS must be positive, got %d", cfg.MaxSmartFields)
	}
	if cfg.RPCTimeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", cfg.RPCTimeout)
	}
	return nil
}
