package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/canonmorph/canonmorph/internal/util"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates service configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// ValidateConfig validates a service configuration.
func ValidateConfig(config *ServiceConfig) error {
	v := NewValidator()
	return v.Validate(config)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *ServiceConfig) error {
	v.errors = make(ValidationErrors, 0)

	if config == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateServer(&config.Server)
	v.validateStorage(&config.Storage)
	v.validateCatalog(&config.Catalog)
	v.validateSchemaRegistry(&config.SchemaRegistry)
	v.validateAuth(&config.Auth)
	v.validateRateLimit(&config.RateLimit)
	v.validateSecrets(&config.Secrets)
	v.validateObservability(&config.Observability)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

// validateServer validates the HTTP server section.
func (v *Validator) validateServer(server *ServerConfig) {
	if server.Host == "" {
		v.addError("server.host", "host is required")
	}

	if err := util.ValidatePort(server.Port); err != nil {
		v.addError("server.port", err.Error())
	}

	v.validateNonNegativeDuration(server.ReadTimeout, "server.readTimeout")
	v.validateNonNegativeDuration(server.WriteTimeout, "server.writeTimeout")
	v.validateNonNegativeDuration(server.IdleTimeout, "server.idleTimeout")

	if time.Duration(server.ShutdownTimeout) <= 0 {
		v.addError("server.shutdownTimeout", "shutdownTimeout must be positive")
	}
}

// validateStorage validates the template storage section.
func (v *Validator) validateStorage(storage *StorageConfig) {
	validBackends := map[string]bool{
		"memory":   true,
		"postgres": true,
	}

	switch {
	case storage.Backend == "":
		v.addError("storage.backend", "backend is required")
	case !validBackends[storage.Backend]:
		v.addError("storage.backend", "backend must be memory or postgres")
	}

	if storage.Backend == "postgres" {
		v.validatePostgres(&storage.Postgres, "storage.postgres")
	}
}

// validatePostgres validates the PostgreSQL connection settings.
func (v *Validator) validatePostgres(pg *PostgresConfig, path string) {
	if pg.DSN == "" {
		v.addError(path+".dsn", "dsn is required when backend is postgres")
	}

	if pg.MaxConns < 0 {
		v.addError(path+".maxConns", "maxConns cannot be negative")
	}

	if pg.MinConns < 0 {
		v.addError(path+".minConns", "minConns cannot be negative")
	}

	if pg.MaxConns > 0 && pg.MinConns > pg.MaxConns {
		v.addError(path+".minConns", fmt.Sprintf("minConns %d exceeds maxConns %d", pg.MinConns, pg.MaxConns))
	}

	v.validateNonNegativeDuration(pg.ConnectTimeout, path+".connectTimeout")
}

// validateCatalog validates the transformation catalog section.
func (v *Validator) validateCatalog(catalog *CatalogConfig) {
	validBackends := map[string]bool{
		"memory": true,
		"redis":  true,
	}

	switch {
	case catalog.Backend == "":
		v.addError("catalog.backend", "backend is required")
	case !validBackends[catalog.Backend]:
		v.addError("catalog.backend", "backend must be memory or redis")
	}

	v.validateCatalogEntries(catalog.Entries)

	if catalog.Backend == "redis" {
		v.validateRedis(&catalog.Redis, "catalog.redis")
	}

	v.validateBreaker(&catalog.Breaker, "catalog.breaker")
}

// validateCatalogEntries validates seeded catalog entries.
func (v *Validator) validateCatalogEntries(entries []CatalogEntry) {
	ids := make(map[string]bool)

	for i, entry := range entries {
		path := fmt.Sprintf("catalog.entries[%d]", i)

		switch {
		case entry.ID == "":
			v.addError(path+".id", "entry id is required")
		case ids[entry.ID]:
			v.addError(path+".id", fmt.Sprintf("duplicate entry id: %s", entry.ID))
		default:
			if err := util.ValidateIdentifier(entry.ID, "id"); err != nil {
				v.addError(path+".id", err.Error())
			}
			ids[entry.ID] = true
		}

		if entry.Expression == "" {
			v.addError(path+".expression", "entry expression is required")
		}
	}
}

// validateRedis validates the Redis connection settings.
func (v *Validator) validateRedis(redis *RedisConfig, path string) {
	if redis.URL == "" {
		v.addError(path+".url", "url is required when backend is redis")
	} else if err := util.ValidateURL(redis.URL); err != nil {
		v.addError(path+".url", err.Error())
	}

	v.validateNonNegativeDuration(redis.DialTimeout, path+".dialTimeout")
	v.validateNonNegativeDuration(redis.ReadTimeout, path+".readTimeout")
	v.validateNonNegativeDuration(redis.WriteTimeout, path+".writeTimeout")
}

// validateBreaker validates circuit breaker settings.
func (v *Validator) validateBreaker(breaker *BreakerConfig, path string) {
	if !breaker.Enabled {
		return
	}

	if breaker.MaxFailures < 1 {
		v.addError(path+".maxFailures", "maxFailures must be at least 1 when enabled")
	}

	if time.Duration(breaker.Interval) <= 0 {
		v.addError(path+".interval", "interval must be positive when enabled")
	}

	if time.Duration(breaker.Timeout) <= 0 {
		v.addError(path+".timeout", "timeout must be positive when enabled")
	}
}

// validateSchemaRegistry validates the schema registry section.
func (v *Validator) validateSchemaRegistry(registry *SchemaRegistryConfig) {
	validModes := map[string]bool{
		"":         true,
		"BACKWARD": true,
		"FORWARD":  true,
		"FULL":     true,
		"NONE":     true,
	}

	if !validModes[strings.ToUpper(registry.CompatibilityMode)] {
		v.addError("schemaRegistry.compatibilityMode",
			fmt.Sprintf("invalid compatibility mode: %s", registry.CompatibilityMode))
	}
}

// validateAuth validates the authentication section.
func (v *Validator) validateAuth(auth *AuthConfig) {
	validModes := map[string]bool{
		"none":   true,
		"apikey": true,
		"jwt":    true,
	}

	switch {
	case auth.Mode == "":
		v.addError("auth.mode", "mode is required")
	case !validModes[auth.Mode]:
		v.addError("auth.mode", "mode must be none, apikey, or jwt")
	}

	if auth.Mode == "apikey" {
		v.validateAPIKeys(auth.APIKeys)
	}

	if auth.Mode == "jwt" {
		v.validateJWT(&auth.JWT, "auth.jwt")
	}
}

// validateAPIKeys validates configured API keys.
func (v *Validator) validateAPIKeys(keys []APIKeyConfig) {
	if len(keys) == 0 {
		v.addError("auth.apiKeys", "at least one API key is required when mode is apikey")
		return
	}

	validAlgorithms := map[string]bool{
		"bcrypt":    true,
		"sha256":    true,
		"plaintext": true,
	}

	ids := make(map[string]bool)

	for i, key := range keys {
		path := fmt.Sprintf("auth.apiKeys[%d]", i)

		switch {
		case key.ID == "":
			v.addError(path+".id", "key id is required")
		case ids[key.ID]:
			v.addError(path+".id", fmt.Sprintf("duplicate key id: %s", key.ID))
		default:
			ids[key.ID] = true
		}

		if key.Hash == "" {
			v.addError(path+".hash", "key hash is required")
		}

		if !validAlgorithms[key.Algorithm] {
			v.addError(path+".algorithm", "algorithm must be bcrypt, sha256, or plaintext")
		}
	}
}

// validateJWT validates JWT verification settings.
func (v *Validator) validateJWT(jwt *JWTConfig, path string) {
	if jwt.Issuer == "" {
		v.addError(path+".issuer", "issuer is required when mode is jwt")
	}

	if jwt.JWKSURL == "" {
		v.addError(path+".jwksUrl", "jwksUrl is required when mode is jwt")
	} else if err := util.ValidateURL(jwt.JWKSURL); err != nil {
		v.addError(path+".jwksUrl", err.Error())
	}
}

// validateRateLimit validates rate limiting settings.
func (v *Validator) validateRateLimit(rl *RateLimitConfig) {
	if !rl.Enabled {
		return
	}

	if rl.RequestsPerSecond <= 0 {
		v.addError("rateLimit.requestsPerSecond", "requestsPerSecond must be positive when enabled")
	}

	if rl.Burst < 1 {
		v.addError("rateLimit.burst", "burst must be at least 1 when enabled")
	}
}

// validateSecrets validates the secrets provider section.
func (v *Validator) validateSecrets(secrets *SecretsConfig) {
	validProviders := map[string]bool{
		"none":  true,
		"env":   true,
		"vault": true,
	}

	switch {
	case secrets.Provider == "":
		v.addError("secrets.provider", "provider is required")
	case !validProviders[secrets.Provider]:
		v.addError("secrets.provider", "provider must be none, env, or vault")
	}

	if secrets.Provider == "vault" {
		if secrets.Vault.Address == "" {
			v.addError("secrets.vault.address", "address is required when provider is vault")
		} else if err := util.ValidateURL(secrets.Vault.Address); err != nil {
			v.addError("secrets.vault.address", err.Error())
		}

		if secrets.Vault.MountPath == "" {
			v.addError("secrets.vault.mountPath", "mountPath is required when provider is vault")
		}
	}
}

// validateObservability validates logging, metrics, and tracing settings.
func (v *Validator) validateObservability(obs *ObservabilityConfig) {
	validLevels := map[string]bool{
		"":      true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[strings.ToLower(obs.Logging.Level)] {
		v.addError("observability.logging.level",
			fmt.Sprintf("invalid log level: %s", obs.Logging.Level))
	}

	validFormats := map[string]bool{
		"":        true,
		"json":    true,
		"console": true,
	}

	if !validFormats[strings.ToLower(obs.Logging.Format)] {
		v.addError("observability.logging.format",
			fmt.Sprintf("invalid log format: %s", obs.Logging.Format))
	}

	if obs.Metrics.Enabled {
		if obs.Metrics.Path != "" && !strings.HasPrefix(obs.Metrics.Path, "/") {
			v.addError("observability.metrics.path", "metrics path must start with /")
		}

		if obs.Metrics.Port != 0 {
			if err := util.ValidatePort(obs.Metrics.Port); err != nil {
				v.addError("observability.metrics.port", err.Error())
			}
		}
	}

	if obs.Tracing.Enabled {
		if obs.Tracing.Endpoint == "" {
			v.addError("observability.tracing.endpoint", "endpoint is required when tracing is enabled")
		}
	}

	if obs.Tracing.SamplingRate < 0 || obs.Tracing.SamplingRate > 1 {
		v.addError("observability.tracing.samplingRate", "samplingRate must be between 0 and 1")
	}
}

// validateNonNegativeDuration records an error when d is negative.
func (v *Validator) validateNonNegativeDuration(d Duration, path string) {
	if time.Duration(d) < 0 {
		v.addError(path, "duration cannot be negative")
	}
}

// addError appends a validation error.
func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}
