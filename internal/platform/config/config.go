package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 0 // event streams stay open
	defaultIdleTimeout      = 120 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultRequestTimeout   = 30 * time.Second
	defaultEnvironment      = "local"
	defaultLogLevel         = "info"
	defaultCookieName       = "funnel_session"
	defaultSessionTTL       = 30 * time.Minute
	defaultSweepInterval    = time.Minute
	defaultMaxFunnels       = 10000
	defaultCatalogPath      = "data/products.yaml"
	defaultLocalesDir       = "locales"
	defaultLocale           = "en"
	defaultCheckoutTimeout  = 10 * time.Second
	defaultIdempotencyKey   = "Idempotency-Key"
	defaultEventBuffer      = 16
	defaultEventKeepAlive   = 25 * time.Second
	minimumSessionHashBytes = 32
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string
	Server      ServerConfig
	Log         LogConfig
	Session     SessionConfig
	Catalog     CatalogConfig
	Locale      LocaleConfig
	Checkout    CheckoutConfig
	Events      EventsConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// LogConfig selects the logger level and encoding.
type LogConfig struct {
	Level       string
	Development bool
}

// SessionConfig controls the session cookie and the funnel registry.
type SessionConfig struct {
	CookieName    string
	HashKey       string
	BlockKey      string
	Secure        bool
	IdleTTL       time.Duration
	SweepInterval time.Duration
	MaxFunnels    int
}

// CatalogConfig points at the product catalog file.
type CatalogConfig struct {
	Path string
}

// LocaleConfig locates translation bundles.
type LocaleConfig struct {
	Dir     string
	Default string
}

// CheckoutConfig configures order submission. An empty BaseURL enables the
// local fake.
type CheckoutConfig struct {
	BaseURL           string
	Timeout           time.Duration
	IdempotencyHeader string
}

// EventsConfig tunes the server-sent event stream.
type EventsConfig struct {
	Buffer    int
	KeepAlive time.Duration
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the configuration from defaults, .env overrides, environment
// variables and the optional explicit map, in increasing precedence.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}

	env := strings.ToLower(stringWithDefault(lookup, "FUNNEL_ENVIRONMENT", defaultEnvironment))
	cfg := Config{
		Environment: env,
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "FUNNEL_SERVER_PORT", defaultPort),
			ReadTimeout:     durationWithDefault(lookup, "FUNNEL_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "FUNNEL_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "FUNNEL_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "FUNNEL_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
			RequestTimeout:  durationWithDefault(lookup, "FUNNEL_SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
		},
		Log: LogConfig{
			Level:       strings.ToLower(stringWithDefault(lookup, "FUNNEL_LOG_LEVEL", defaultLogLevel)),
			Development: boolWithDefault(lookup, "FUNNEL_LOG_DEVELOPMENT", env == defaultEnvironment),
		},
		Session: SessionConfig{
			CookieName:    stringWithDefault(lookup, "FUNNEL_SESSION_COOKIE_NAME", defaultCookieName),
			HashKey:       stringWithDefault(lookup, "FUNNEL_SESSION_HASH_KEY", ""),
			BlockKey:      stringWithDefault(lookup, "FUNNEL_SESSION_BLOCK_KEY", ""),
			Secure:        boolWithDefault(lookup, "FUNNEL_SESSION_SECURE", env != defaultEnvironment),
			IdleTTL:       durationWithDefault(lookup, "FUNNEL_SESSION_IDLE_TTL", defaultSessionTTL),
			SweepInterval: durationWithDefault(lookup, "FUNNEL_SESSION_SWEEP_INTERVAL", defaultSweepInterval),
			MaxFunnels:    intWithDefault(lookup, "FUNNEL_SESSION_MAX_FUNNELS", defaultMaxFunnels),
		},
		Catalog: CatalogConfig{
			Path: stringWithDefault(lookup, "FUNNEL_CATALOG_PATH", defaultCatalogPath),
		},
		Locale: LocaleConfig{
			Dir:     stringWithDefault(lookup, "FUNNEL_LOCALES_DIR", defaultLocalesDir),
			Default: stringWithDefault(lookup, "FUNNEL_LOCALE_DEFAULT", defaultLocale),
		},
		Checkout: CheckoutConfig{
			BaseURL:           strings.TrimRight(stringWithDefault(lookup, "FUNNEL_CHECKOUT_BASE_URL", ""), "/"),
			Timeout:           durationWithDefault(lookup, "FUNNEL_CHECKOUT_TIMEOUT", defaultCheckoutTimeout),
			IdempotencyHeader: stringWithDefault(lookup, "FUNNEL_CHECKOUT_IDEMPOTENCY_HEADER", defaultIdempotencyKey),
		},
		Events: EventsConfig{
			Buffer:    intWithDefault(lookup, "FUNNEL_EVENTS_BUFFER", defaultEventBuffer),
			KeepAlive: durationWithDefault(lookup, "FUNNEL_EVENTS_KEEPALIVE", defaultEventKeepAlive),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsLocal reports whether the process runs in the local environment.
func (c Config) IsLocal() bool { return c.Environment == defaultEnvironment }

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		missing = append(missing, "Server.ShutdownTimeout")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		missing = append(missing, "Log.Level")
	}
	if strings.TrimSpace(cfg.Session.CookieName) == "" {
		missing = append(missing, "Session.CookieName")
	}
	// local runs may rely on generated keys
	if !cfg.IsLocal() && len(cfg.Session.HashKey) < minimumSessionHashBytes {
		missing = append(missing, "Session.HashKey")
	}
	if cfg.Session.HashKey != "" && len(cfg.Session.HashKey) < minimumSessionHashBytes {
		missing = append(missing, "Session.HashKey")
	}
	switch len(cfg.Session.BlockKey) {
	case 0, 16, 24, 32:
	default:
		missing = append(missing, "Session.BlockKey")
	}
	if cfg.Session.IdleTTL <= 0 {
		missing = append(missing, "Session.IdleTTL")
	}
	if cfg.Session.SweepInterval <= 0 {
		missing = append(missing, "Session.SweepInterval")
	}
	if cfg.Session.MaxFunnels <= 0 {
		missing = append(missing, "Session.MaxFunnels")
	}
	if strings.TrimSpace(cfg.Catalog.Path) == "" {
		missing = append(missing, "Catalog.Path")
	}
	if strings.TrimSpace(cfg.Locale.Default) == "" {
		missing = append(missing, "Locale.Default")
	}
	if cfg.Checkout.BaseURL != "" && !strings.HasPrefix(cfg.Checkout.BaseURL, "http://") && !strings.HasPrefix(cfg.Checkout.BaseURL, "https://") {
		missing = append(missing, "Checkout.BaseURL")
	}
	if strings.TrimSpace(cfg.Checkout.IdempotencyHeader) == "" {
		missing = append(missing, "Checkout.IdempotencyHeader")
	}
	if cfg.Events.Buffer <= 0 {
		missing = append(missing, "Events.Buffer")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: dedupe(missing)}
	}
	return nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	values, err := godotenv.Read(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
