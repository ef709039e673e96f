// Package config provides configuration management for the gateway.
//
// Configuration comes from three layers, lowest precedence first: built-in
// defaults, an optional YAML file (MODELGATE_CONFIG), and environment
// variables. A .env file in the working directory is loaded into the
// environment first if present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBodySizeLimit is the maximum accepted request body size (10MB).
const DefaultBodySizeLimit int64 = 10 * 1024 * 1024

// Config holds the application configuration. It is constructed once at
// startup and read-only thereafter.
type Config struct {
	Environment string
	Server      ServerConfig
	Defaults    Defaults
	Providers   map[string]ProviderConfig
	Metrics     MetricsConfig
	Audit       AuditConfig
	Storage     StorageConfig
	History     HistoryConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string
	BodySizeLimit  int64
	RequestTimeout time.Duration
}

// ProviderConfig holds per-provider credentials and endpoint overrides.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// Available reports whether the provider can be used. Availability is
// credential presence only; there is no live reachability probe.
func (p ProviderConfig) Available() bool {
	return p.APIKey != ""
}

// Defaults holds the process-wide default generation parameters applied to
// requests that omit them.
type Defaults struct {
	Temperature      float64 `yaml:"temperature"`
	MaxTokens        int     `yaml:"max_tokens"`
	TopP             float64 `yaml:"top_p"`
	FrequencyPenalty float64 `yaml:"frequency_penalty"`
	PresencePenalty  float64 `yaml:"presence_penalty"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// AuditConfig holds request audit logging settings.
type AuditConfig struct {
	Enabled       bool          `yaml:"enabled"`
	RetentionDays int           `yaml:"retention_days"`
	BufferSize    int           `yaml:"buffer_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// StorageConfig selects the database backend used by the audit log.
type StorageConfig struct {
	Type       string           `yaml:"type"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`
	MongoDB    MongoDBConfig    `yaml:"mongodb"`
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgreSQLConfig holds PostgreSQL-specific configuration
type PostgreSQLConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// HistoryConfig holds chat-history store settings.
type HistoryConfig struct {
	Dir string `yaml:"dir"`
}

// fileConfig is the YAML file shape. Provider entries here are overlaid by
// environment variables, which always win.
type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Defaults  Defaults                  `yaml:"defaults"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Metrics   MetricsConfig             `yaml:"metrics"`
	Audit     AuditConfig               `yaml:"audit"`
	Storage   StorageConfig             `yaml:"storage"`
	History   HistoryConfig             `yaml:"history"`
}

// knownProviderEnvs maps the fixed provider set to their environment
// variables. This list is the authoritative source for provider
// auto-discovery from env vars.
var knownProviderEnvs = []struct {
	name       string
	apiKeyEnvs []string
	baseURLEnv string
}{
	{"openai", []string{"OPENAI_API_KEY"}, "OPENAI_BASE_URL"},
	{"anthropic", []string{"ANTHROPIC_API_KEY"}, "ANTHROPIC_BASE_URL"},
	{"groq", []string{"GROQ_API_KEY"}, "GROQ_BASE_URL"},
	// GEMINI_API_KEY is accepted as an alias for Google credentials.
	{"google", []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}, "GOOGLE_BASE_URL"},
}

// SupportedProviders returns the fixed set of provider names in a stable order.
func SupportedProviders() []string {
	names := make([]string, 0, len(knownProviderEnvs))
	for _, kp := range knownProviderEnvs {
		names = append(names, kp.name)
	}
	return names
}

// Load reads configuration from the optional .env file, the optional YAML
// config file, and the environment. Missing provider credentials mark the
// provider unavailable; they never fail the load.
func Load() (*Config, error) {
	// Load .env into the environment (optional, won't fail if not found)
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv("MODELGATE_CONFIG"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	return cfg, nil
}

// Validate enforces startup policy. In production at least one provider
// must be configured; in development the gateway may start with none.
func (c *Config) Validate() error {
	if c.Environment != "production" {
		return nil
	}
	for _, p := range c.Providers {
		if p.Available() {
			return nil
		}
	}
	return fmt.Errorf("production mode requires at least one provider API key")
}

// Provider returns the configuration for the named provider and whether the
// name belongs to the supported set.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	p, ok := c.Providers[name]
	return p, ok
}

func defaultConfig() *Config {
	providers := make(map[string]ProviderConfig, len(knownProviderEnvs))
	for _, kp := range knownProviderEnvs {
		providers[kp.name] = ProviderConfig{}
	}

	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:           "3000",
			BodySizeLimit:  DefaultBodySizeLimit,
			RequestTimeout: 60 * time.Second,
		},
		Defaults: Defaults{
			Temperature:      0.7,
			MaxTokens:        1000,
			TopP:             1.0,
			FrequencyPenalty: 0,
			PresencePenalty:  0,
		},
		Providers: providers,
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
		Audit: AuditConfig{
			Enabled:       false,
			RetentionDays: 30,
			BufferSize:    1000,
			FlushInterval: 5 * time.Second,
		},
		Storage: StorageConfig{
			Type:   "sqlite",
			SQLite: SQLiteConfig{Path: "data/modelgate.db"},
			PostgreSQL: PostgreSQLConfig{
				MaxConns: 10,
			},
			MongoDB: MongoDBConfig{Database: "modelgate"},
		},
		History: HistoryConfig{Dir: "data/chats"},
	}
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.Server.Port != "" {
		cfg.Server.Port = fc.Server.Port
	}
	if fc.Defaults != (Defaults{}) {
		cfg.Defaults = fc.Defaults
	}
	for name, p := range fc.Providers {
		if _, ok := cfg.Providers[name]; !ok {
			// Unknown provider names in the file are ignored; the
			// supported set is fixed.
			continue
		}
		cfg.Providers[name] = p
	}
	if fc.Metrics.Endpoint != "" || fc.Metrics.Enabled {
		cfg.Metrics = fc.Metrics
		if cfg.Metrics.Endpoint == "" {
			cfg.Metrics.Endpoint = "/metrics"
		}
	}
	if fc.Audit.Enabled {
		cfg.Audit.Enabled = true
	}
	if fc.Audit.RetentionDays > 0 {
		cfg.Audit.RetentionDays = fc.Audit.RetentionDays
	}
	if fc.Audit.BufferSize > 0 {
		cfg.Audit.BufferSize = fc.Audit.BufferSize
	}
	if fc.Audit.FlushInterval > 0 {
		cfg.Audit.FlushInterval = fc.Audit.FlushInterval
	}
	if fc.Storage.Type != "" {
		cfg.Storage.Type = fc.Storage.Type
	}
	if fc.Storage.SQLite.Path != "" {
		cfg.Storage.SQLite.Path = fc.Storage.SQLite.Path
	}
	if fc.Storage.PostgreSQL.URL != "" {
		cfg.Storage.PostgreSQL.URL = fc.Storage.PostgreSQL.URL
	}
	if fc.Storage.PostgreSQL.MaxConns > 0 {
		cfg.Storage.PostgreSQL.MaxConns = fc.Storage.PostgreSQL.MaxConns
	}
	if fc.Storage.MongoDB.URL != "" {
		cfg.Storage.MongoDB.URL = fc.Storage.MongoDB.URL
	}
	if fc.Storage.MongoDB.Database != "" {
		cfg.Storage.MongoDB.Database = fc.Storage.MongoDB.Database
	}
	if fc.History.Dir != "" {
		cfg.History.Dir = fc.History.Dir
	}

	return nil
}

// applyEnv overlays environment variables onto the config. Env values
// always win over file values for the same setting.
func applyEnv(cfg *Config) {
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	cfg.Server.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", cfg.Server.RequestTimeout)

	for _, kp := range knownProviderEnvs {
		p := cfg.Providers[kp.name]
		for _, env := range kp.apiKeyEnvs {
			if v := os.Getenv(env); v != "" {
				p.APIKey = v
				break
			}
		}
		if v := os.Getenv(kp.baseURLEnv); v != "" {
			p.BaseURL = v
		}
		cfg.Providers[kp.name] = p
	}

	cfg.Defaults.Temperature = getEnvFloat("DEFAULT_TEMPERATURE", cfg.Defaults.Temperature)
	cfg.Defaults.MaxTokens = getEnvInt("DEFAULT_MAX_TOKENS", cfg.Defaults.MaxTokens)
	cfg.Defaults.TopP = getEnvFloat("DEFAULT_TOP_P", cfg.Defaults.TopP)
	cfg.Defaults.FrequencyPenalty = getEnvFloat("DEFAULT_FREQUENCY_PENALTY", cfg.Defaults.FrequencyPenalty)
	cfg.Defaults.PresencePenalty = getEnvFloat("DEFAULT_PRESENCE_PENALTY", cfg.Defaults.PresencePenalty)

	cfg.Metrics.Enabled = getEnvBool("METRICS_ENABLED", cfg.Metrics.Enabled)
	if v := os.Getenv("METRICS_ENDPOINT"); v != "" {
		cfg.Metrics.Endpoint = v
	}

	cfg.Audit.Enabled = getEnvBool("AUDIT_ENABLED", cfg.Audit.Enabled)
	cfg.Audit.RetentionDays = getEnvInt("AUDIT_RETENTION_DAYS", cfg.Audit.RetentionDays)

	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLite.Path = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		cfg.Storage.PostgreSQL.URL = v
	}
	if v := os.Getenv("MONGODB_URL"); v != "" {
		cfg.Storage.MongoDB.URL = v
	}
	if v := os.Getenv("MONGODB_DATABASE"); v != "" {
		cfg.Storage.MongoDB.Database = v
	}
	if v := os.Getenv("HISTORY_DIR"); v != "" {
		cfg.History.Dir = v
	}
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(val, 64); err == nil {
		return f
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(val); err == nil {
		return n
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(val); err == nil {
		return b
	}
	return defaultVal
}

// getEnvDuration reads a duration from an environment variable, returning
// the default if not set or invalid. Accepts either plain integers
// (interpreted as seconds) or Go duration strings (e.g., "90s", "2m").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	return defaultVal
}
