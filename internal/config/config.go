// Package config loads and validates the resource hub configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the RH_ prefix (e.g., RH_STORE_BACKEND
// overrides store.backend in the YAML). A .env file in the working directory is
// loaded first so local development can keep secrets out of the YAML.
//
// The Supabase and admin variables (PUBLIC_SUPABASE_URL, ADMIN_USER, ...) are also
// accepted without the prefix because existing deployments inject them under those
// names.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends understood by store.Open.
const (
	BackendPostgREST = "postgrest"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"
)

// ConfigurationError reports a required setting that is missing or invalid.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return e.Key + " is required"
	}
	return e.Key + ": " + e.Reason
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Proposals ProposalsConfig `mapstructure:"proposals"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	TrustedProxies []string      `mapstructure:"trusted_proxies"`
}

// StoreConfig selects and configures the table store backend.
type StoreConfig struct {
	Backend  string         `mapstructure:"backend"`
	Supabase SupabaseConfig `mapstructure:"supabase"`
	Database DatabaseConfig `mapstructure:"database"`
}

// SupabaseConfig holds the hosted PostgREST endpoint settings.
type SupabaseConfig struct {
	URL     string        `mapstructure:"url"`
	AnonKey string        `mapstructure:"anon_key"`
	Schema  string        `mapstructure:"schema"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	// URL takes precedence over the discrete fields when set.
	URL                string `mapstructure:"url"`
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
}

// AdminConfig holds the single administrator credential and session settings.
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// PasswordHash is a bcrypt hash; when set it is used instead of Password.
	PasswordHash  string        `mapstructure:"password_hash"`
	SessionSecret string        `mapstructure:"session_secret"`
	SessionMaxAge time.Duration `mapstructure:"session_max_age"`
	CookieSecure  bool          `mapstructure:"cookie_secure"`
}

// ProposalsConfig holds the anonymous submission settings.
type ProposalsConfig struct {
	MaxPending int `mapstructure:"max_pending"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORS         CORSConfig      `mapstructure:"cors"`
	RateLimiting RateLimitConfig `mapstructure:"rate_limiting"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
	// RedisURL switches the limiter to a shared Redis-backed counter.
	RedisURL string `mapstructure:"redis_url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ServiceName string        `mapstructure:"service_name"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
	// StatsInterval is how often resource counts are sampled into metrics.
	StatsInterval time.Duration `mapstructure:"stats_interval"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// AuditConfig holds the admin audit trail destinations. With no destination
// configured entries are only written to the application log.
type AuditConfig struct {
	Enabled           bool               `mapstructure:"enabled"`
	LogFailedRequests bool               `mapstructure:"log_failed_requests"`
	File              AuditFileConfig    `mapstructure:"file"`
	Webhook           AuditWebhookConfig `mapstructure:"webhook"`
}

// AuditFileConfig writes JSON lines to Path, rotating at MaxSizeMB.
type AuditFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// AuditWebhookConfig posts each entry as JSON to URL.
type AuditWebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig holds object store credentials used by the import tool when
// a source or backup location is an s3://, gs:// or azblob:// URI. The bucket
// or container always comes from the URI.
type StorageConfig struct {
	S3    S3StorageConfig    `mapstructure:"s3"`
	Azure AzureStorageConfig `mapstructure:"azure"`
	GCS   GCSStorageConfig   `mapstructure:"gcs"`
}

// S3StorageConfig holds S3 and S3-compatible settings.
type S3StorageConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	// AuthMethod is one of default, static, oidc or assume_role.
	AuthMethod           string `mapstructure:"auth_method"`
	AccessKeyID          string `mapstructure:"access_key_id"`
	SecretAccessKey      string `mapstructure:"secret_access_key"`
	RoleARN              string `mapstructure:"role_arn"`
	RoleSessionName      string `mapstructure:"role_session_name"`
	ExternalID           string `mapstructure:"external_id"`
	WebIdentityTokenFile string `mapstructure:"web_identity_token_file"`
}

// AzureStorageConfig holds Azure Blob Storage settings.
type AzureStorageConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	// Endpoint overrides https://<account>.blob.core.windows.net/.
	Endpoint string `mapstructure:"endpoint"`
}

// GCSStorageConfig holds Google Cloud Storage settings. Without a credentials
// file or JSON the application default credentials are used.
type GCSStorageConfig struct {
	// AuthMethod is one of default, service_account or workload_identity.
	AuthMethod      string `mapstructure:"auth_method"`
	CredentialsFile string `mapstructure:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json"`
	Endpoint        string `mapstructure:"endpoint"`
}

// envAliases maps un-prefixed environment variables onto config keys.
var envAliases = map[string]string{
	"store.supabase.url":      "PUBLIC_SUPABASE_URL",
	"store.supabase.anon_key": "PUBLIC_SUPABASE_ANON_KEY",
	"store.database.url":      "DATABASE_URL",
	"admin.username":          "ADMIN_USER",
	"admin.password":          "ADMIN_PASSWORD",
	"admin.session_secret":    "ADMIN_SESSION_SECRET",
}

// bindEnvVars explicitly binds environment variables to config keys.
// This is necessary because AutomaticEnv() doesn't work well with nested structs during Unmarshal.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.trusted_proxies",

		// Store
		"store.backend",
		"store.supabase.schema",
		"store.supabase.timeout",
		"store.database.host",
		"store.database.port",
		"store.database.name",
		"store.database.user",
		"store.database.password",
		"store.database.ssl_mode",
		"store.database.max_connections",
		"store.database.min_idle_connections",

		// Admin
		"admin.password_hash",
		"admin.session_max_age",
		"admin.cookie_secure",

		// Proposals
		"proposals.max_pending",

		// Security
		"security.cors.allowed_origins",
		"security.cors.allowed_methods",
		"security.rate_limiting.enabled",
		"security.rate_limiting.requests_per_minute",
		"security.rate_limiting.burst",
		"security.rate_limiting.redis_url",

		// Logging
		"logging.level",
		"logging.format",

		// Telemetry
		"telemetry.service_name",
		"telemetry.metrics.enabled",
		"telemetry.metrics.prometheus_port",
		"telemetry.stats_interval",

		// Audit
		"audit.enabled",
		"audit.log_failed_requests",
		"audit.file.path",
		"audit.file.max_size_mb",
		"audit.file.max_backups",
		"audit.webhook.url",
		"audit.webhook.timeout",

		// Storage
		"storage.s3.region",
		"storage.s3.endpoint",
		"storage.s3.auth_method",
		"storage.s3.access_key_id",
		"storage.s3.secret_access_key",
		"storage.s3.role_arn",
		"storage.s3.role_session_name",
		"storage.s3.external_id",
		"storage.s3.web_identity_token_file",
		"storage.azure.account_name",
		"storage.azure.account_key",
		"storage.azure.endpoint",
		"storage.gcs.auth_method",
		"storage.gcs.credentials_file",
		"storage.gcs.credentials_json",
		"storage.gcs.endpoint",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	// The prefixed name wins over the alias when both are set.
	for key, alias := range envAliases {
		prefixed := "RH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables and validates
// the settings every binary needs. Admin settings are checked separately by
// ValidateAdmin because the import tool does not use them.
func Load(configPath string) (*Config, error) {
	// A missing .env file is the normal case outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v, _, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch re-reads the config file whenever it changes on disk and passes each
// valid result to onChange. Edits that fail to parse or validate are logged
// and skipped. It reports false when there is no config file to watch.
func Watch(configPath string, onChange func(*Config)) (bool, error) {
	v, found, err := newViper(configPath)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			slog.Warn("ignoring config change", "file", e.Name, "error", err)
			return
		}
		slog.Info("config file changed", "file", e.Name, "op", e.Op.String())
		onChange(cfg)
	})
	v.WatchConfig()
	return true, nil
}

// newViper builds a viper instance with defaults, the config file (when one
// exists) and environment bindings. found reports whether a file was read.
func newViper(configPath string) (v *viper.Viper, found bool, err error) {
	v = viper.New()

	setDefaults(v)

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/resourcehub")
	}

	found = true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(configPath != "" && errors.Is(err, os.ErrNotExist)) {
			return nil, false, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment variables
		found = false
	}

	v.SetEnvPrefix("RH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return nil, false, err
	}
	return v, found, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand environment variables in sensitive fields
	cfg.Store.Supabase.AnonKey = expandEnv(cfg.Store.Supabase.AnonKey)
	cfg.Store.Database.URL = expandEnv(cfg.Store.Database.URL)
	cfg.Store.Database.Password = expandEnv(cfg.Store.Database.Password)
	cfg.Admin.Password = expandEnv(cfg.Admin.Password)
	cfg.Admin.SessionSecret = expandEnv(cfg.Admin.SessionSecret)
	cfg.Security.RateLimiting.RedisURL = expandEnv(cfg.Security.RateLimiting.RedisURL)
	cfg.Storage.S3.SecretAccessKey = expandEnv(cfg.Storage.S3.SecretAccessKey)
	cfg.Storage.Azure.AccountKey = expandEnv(cfg.Storage.Azure.AccountKey)
	cfg.Storage.GCS.CredentialsJSON = expandEnv(cfg.Storage.GCS.CredentialsJSON)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.trusted_proxies", []string{})

	// Store defaults
	v.SetDefault("store.backend", BackendPostgREST)
	v.SetDefault("store.supabase.schema", "public")
	v.SetDefault("store.supabase.timeout", "15s")
	v.SetDefault("store.database.host", "localhost")
	v.SetDefault("store.database.port", 5432)
	v.SetDefault("store.database.name", "resourcehub")
	v.SetDefault("store.database.user", "resourcehub")
	v.SetDefault("store.database.ssl_mode", "require")
	v.SetDefault("store.database.max_connections", 10)
	v.SetDefault("store.database.min_idle_connections", 2)

	// Admin defaults
	v.SetDefault("admin.session_max_age", "168h")
	v.SetDefault("admin.cookie_secure", false)

	// Proposals defaults
	v.SetDefault("proposals.max_pending", 5)

	// Security defaults
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.requests_per_minute", 60)
	v.SetDefault("security.rate_limiting.burst", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Telemetry defaults
	v.SetDefault("telemetry.service_name", "resourcehub")
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)
	v.SetDefault("telemetry.stats_interval", "1m")

	// Audit defaults
	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.log_failed_requests", true)
	v.SetDefault("audit.file.max_size_mb", 100)
	v.SetDefault("audit.file.max_backups", 5)
	v.SetDefault("audit.webhook.timeout", "10s")

	// Storage defaults
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.auth_method", "default")
}

// expandEnv expands environment variables in the format ${VAR_NAME}
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &ConfigurationError{Key: "server.port", Reason: fmt.Sprintf("invalid port %d", c.Server.Port)}
	}

	switch c.Store.Backend {
	case BackendPostgREST:
		if c.Store.Supabase.URL == "" {
			return &ConfigurationError{Key: "store.supabase.url (PUBLIC_SUPABASE_URL)"}
		}
		if c.Store.Supabase.AnonKey == "" {
			return &ConfigurationError{Key: "store.supabase.anon_key (PUBLIC_SUPABASE_ANON_KEY)"}
		}
	case BackendPostgres:
		if c.Store.Database.URL == "" {
			if c.Store.Database.Host == "" {
				return &ConfigurationError{Key: "store.database.host"}
			}
			if c.Store.Database.Name == "" {
				return &ConfigurationError{Key: "store.database.name"}
			}
			if c.Store.Database.User == "" {
				return &ConfigurationError{Key: "store.database.user"}
			}
		}
	case BackendMemory:
	default:
		return &ConfigurationError{
			Key:    "store.backend",
			Reason: fmt.Sprintf("invalid backend %q (must be postgrest, postgres, or memory)", c.Store.Backend),
		}
	}

	if c.Proposals.MaxPending < 1 {
		return &ConfigurationError{Key: "proposals.max_pending", Reason: "must be at least 1"}
	}

	if c.Security.RateLimiting.Enabled && c.Security.RateLimiting.RequestsPerMinute < 1 {
		return &ConfigurationError{Key: "security.rate_limiting.requests_per_minute", Reason: "must be at least 1"}
	}

	if c.Audit.Enabled && c.Audit.Webhook.URL != "" && !strings.HasPrefix(c.Audit.Webhook.URL, "http://") && !strings.HasPrefix(c.Audit.Webhook.URL, "https://") {
		return &ConfigurationError{Key: "audit.webhook.url", Reason: "must be an http(s) URL"}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return &ConfigurationError{
			Key:    "logging.level",
			Reason: fmt.Sprintf("invalid level %q (must be debug, info, warn, or error)", c.Logging.Level),
		}
	}

	return nil
}

// ValidateAdmin checks the settings the admin endpoints depend on.
func (c *Config) ValidateAdmin() error {
	if c.Admin.Username == "" {
		return &ConfigurationError{Key: "admin.username (ADMIN_USER)"}
	}
	if c.Admin.Password == "" && c.Admin.PasswordHash == "" {
		return &ConfigurationError{Key: "admin.password (ADMIN_PASSWORD)"}
	}
	if c.Admin.SessionMaxAge <= 0 {
		return &ConfigurationError{Key: "admin.session_max_age", Reason: "must be positive"}
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetAddress returns the server address in host:port format
func (c *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
