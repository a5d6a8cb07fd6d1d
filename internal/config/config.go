// Package config provides configuration management for the transformation
// service. Configuration is loaded from YAML files with environment variable
// substitution, validated, and optionally watched for changes.
package config

import "time"

// ServiceConfig holds all configuration settings for the service.
type ServiceConfig struct {
	Server         ServerConfig         `json:"server" yaml:"server"`
	Storage        StorageConfig        `json:"storage" yaml:"storage"`
	Catalog        CatalogConfig        `json:"catalog" yaml:"catalog"`
	SchemaRegistry SchemaRegistryConfig `json:"schemaRegistry" yaml:"schemaRegistry"`
	Transform      TransformConfig      `json:"transform" yaml:"transform"`
	Auth           AuthConfig           `json:"auth" yaml:"auth"`
	RateLimit      RateLimitConfig      `json:"rateLimit" yaml:"rateLimit"`
	Secrets        SecretsConfig        `json:"secrets" yaml:"secrets"`
	Observability  ObservabilityConfig  `json:"observability" yaml:"observability"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host            string   `json:"host" yaml:"host"`
	Port            int      `json:"port" yaml:"port"`
	ReadTimeout     Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout    Duration `json:"writeTimeout" yaml:"writeTimeout"`
	IdleTimeout     Duration `json:"idleTimeout" yaml:"idleTimeout"`
	ShutdownTimeout Duration `json:"shutdownTimeout" yaml:"shutdownTimeout"`

	// MaxRequestBodySize caps the request body in bytes. Zero disables
	// the limit.
	MaxRequestBodySize int64 `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
}

// StorageConfig selects and configures the template and schema stores.
type StorageConfig struct {
	// Backend is the storage backend: "memory" or "postgres".
	Backend  string         `json:"backend" yaml:"backend"`
	Postgres PostgresConfig `json:"postgres" yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	DSN            string   `json:"dsn" yaml:"dsn"`
	MaxConns       int      `json:"maxConns" yaml:"maxConns"`
	MinConns       int      `json:"minConns" yaml:"minConns"`
	ConnectTimeout Duration `json:"connectTimeout" yaml:"connectTimeout"`

	// PasswordSecret names a secret whose value replaces the
	// __PASSWORD__ placeholder in the DSN at startup.
	PasswordSecret string `json:"passwordSecret" yaml:"passwordSecret"`
}

// CatalogConfig selects and configures the transformation catalog.
type CatalogConfig struct {
	// Backend is the catalog backend: "memory" or "redis".
	Backend string         `json:"backend" yaml:"backend"`
	Entries []CatalogEntry `json:"entries" yaml:"entries"`
	Redis   RedisConfig    `json:"redis" yaml:"redis"`
	Breaker BreakerConfig  `json:"breaker" yaml:"breaker"`
}

// CatalogEntry seeds the catalog with a named transformation expression.
type CatalogEntry struct {
	ID          string `json:"id" yaml:"id"`
	Expression  string `json:"expression" yaml:"expression"`
	Description string `json:"description" yaml:"description"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL          string   `json:"url" yaml:"url"`
	KeyPrefix    string   `json:"keyPrefix" yaml:"keyPrefix"`
	DialTimeout  Duration `json:"dialTimeout" yaml:"dialTimeout"`
	ReadTimeout  Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout Duration `json:"writeTimeout" yaml:"writeTimeout"`

	// PasswordSecret names a secret that, when set, overrides the
	// password embedded in the URL.
	PasswordSecret string `json:"passwordSecret" yaml:"passwordSecret"`
}

// BreakerConfig holds circuit breaker settings for catalog lookups.
type BreakerConfig struct {
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	MaxFailures int      `json:"maxFailures" yaml:"maxFailures"`
	Interval    Duration `json:"interval" yaml:"interval"`
	Timeout     Duration `json:"timeout" yaml:"timeout"`
}

// SchemaRegistryConfig holds schema registry settings.
type SchemaRegistryConfig struct {
	// CompatibilityMode is the schema compatibility checking mode:
	// "BACKWARD", "FORWARD", "FULL", or "NONE".
	CompatibilityMode string `json:"compatibilityMode" yaml:"compatibilityMode"`
}

// TransformConfig holds transformation behavior settings.
type TransformConfig struct {
	// ValidatePayloads enables structural validation of transformation
	// inputs and outputs against the schemas bound to the template.
	ValidatePayloads bool `json:"validatePayloads" yaml:"validatePayloads"`
}

// AuthConfig holds admin API authentication settings.
type AuthConfig struct {
	// Mode is the authentication mode: "none", "apikey", or "jwt".
	Mode    string         `json:"mode" yaml:"mode"`
	APIKeys []APIKeyConfig `json:"apiKeys" yaml:"apiKeys"`
	JWT     JWTConfig      `json:"jwt" yaml:"jwt"`
}

// APIKeyConfig describes a single accepted API key.
type APIKeyConfig struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Hash string `json:"hash" yaml:"hash"`

	// Algorithm is the hash algorithm: "bcrypt", "sha256", or "plaintext".
	Algorithm string   `json:"algorithm" yaml:"algorithm"`
	Scopes    []string `json:"scopes" yaml:"scopes"`
}

// JWTConfig holds JWT bearer authentication settings.
type JWTConfig struct {
	Issuer    string   `json:"issuer" yaml:"issuer"`
	Audiences []string `json:"audiences" yaml:"audiences"`
	JWKSURL   string   `json:"jwksUrl" yaml:"jwksUrl"`
	CacheTTL  Duration `json:"cacheTtl" yaml:"cacheTtl"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool    `json:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `json:"requestsPerSecond" yaml:"requestsPerSecond"`
	Burst             int     `json:"burst" yaml:"burst"`
	PerClient         bool    `json:"perClient" yaml:"perClient"`
}

// SecretsConfig selects and configures the secrets provider.
type SecretsConfig struct {
	// Provider is the secrets provider: "none", "env", or "vault".
	Provider  string      `json:"provider" yaml:"provider"`
	EnvPrefix string      `json:"envPrefix" yaml:"envPrefix"`
	Vault     VaultConfig `json:"vault" yaml:"vault"`
}

// VaultConfig holds HashiCorp Vault connection settings.
type VaultConfig struct {
	Address   string   `json:"address" yaml:"address"`
	Token     string   `json:"token" yaml:"token"`
	MountPath string   `json:"mountPath" yaml:"mountPath"`
	Timeout   Duration `json:"timeout" yaml:"timeout"`
}

// ObservabilityConfig holds logging, metrics, and tracing settings.
type ObservabilityConfig struct {
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"`
	Output     string `json:"output" yaml:"output"`
	TimeFormat string `json:"timeFormat" yaml:"timeFormat"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
	Port    int    `json:"port" yaml:"port"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled      bool    `json:"enabled" yaml:"enabled"`
	Endpoint     string  `json:"endpoint" yaml:"endpoint"`
	SamplingRate float64 `json:"samplingRate" yaml:"samplingRate"`
	ServiceName  string  `json:"serviceName" yaml:"serviceName"`
}

// DefaultConfig returns a ServiceConfig with default values.
func DefaultConfig() *ServiceConfig {
	return &ServiceConfig{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			ReadTimeout:        Duration(30 * time.Second),
			WriteTimeout:       Duration(30 * time.Second),
			IdleTimeout:        Duration(120 * time.Second),
			ShutdownTimeout:    Duration(15 * time.Second),
			MaxRequestBodySize: 10 << 20,
		},
		Storage: StorageConfig{
			Backend: "memory",
			Postgres: PostgresConfig{
				MaxConns:       10,
				MinConns:       2,
				ConnectTimeout: Duration(5 * time.Second),
			},
		},
		Catalog: CatalogConfig{
			Backend: "memory",
			Redis: RedisConfig{
				KeyPrefix:    "canonmorph:catalog:",
				DialTimeout:  Duration(5 * time.Second),
				ReadTimeout:  Duration(3 * time.Second),
				WriteTimeout: Duration(3 * time.Second),
			},
			Breaker: BreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Interval:    Duration(60 * time.Second),
				Timeout:     Duration(30 * time.Second),
			},
		},
		SchemaRegistry: SchemaRegistryConfig{
			CompatibilityMode: "NONE",
		},
		Transform: TransformConfig{
			ValidatePayloads: false,
		},
		Auth: AuthConfig{
			Mode: "none",
			JWT: JWTConfig{
				CacheTTL: Duration(15 * time.Minute),
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 100,
			Burst:             200,
			PerClient:         true,
		},
		Secrets: SecretsConfig{
			Provider:  "none",
			EnvPrefix: "CANONMORPH_SECRET_",
			Vault: VaultConfig{
				MountPath: "secret",
				Timeout:   Duration(10 * time.Second),
			},
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
				Port:    9091,
			},
			Tracing: TracingConfig{
				Enabled:      false,
				Endpoint:     "localhost:4317",
				SamplingRate: 1.0,
				ServiceName:  "canonmorph",
			},
		},
	}
}
