package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"golang.org/x/crypto/bcrypt"

	"github.com/canonmorph/canonmorph/internal/config"
	"github.com/canonmorph/canonmorph/internal/observability"
)

// Authentication modes accepted by AuthFromConfig.
const (
	AuthModeNone   = "none"
	AuthModeAPIKey = "apikey"
	AuthModeJWT    = "jwt"
)

// Supported API key hash algorithms.
const (
	HashAlgBcrypt    = "bcrypt"
	HashAlgSHA256    = "sha256"
	HashAlgPlaintext = "plaintext"
)

// Context keys set by the auth middleware on successful authentication.
const (
	// AuthSubjectKey holds the authenticated principal: the API key ID
	// or the JWT subject claim.
	AuthSubjectKey = "authSubject"
	// AuthScopesKey holds the scopes granted to the principal.
	AuthScopesKey = "authScopes"
)

// APIKeyHeader is the header carrying the API key.
const APIKeyHeader = "X-API-Key"

// Authentication errors.
var (
	// ErrInvalidAPIKey is returned when the API key matches no configured key.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrInvalidToken is returned when JWT validation fails.
	ErrInvalidToken = errors.New("invalid token")
)

// GetAuthSubject returns the authenticated principal from the context,
// or an empty string when the request is unauthenticated.
func GetAuthSubject(c *gin.Context) string {
	if v, exists := c.Get(AuthSubjectKey); exists {
		if subject, ok := v.(string); ok {
			return subject
		}
	}
	return ""
}

// AuthFromConfig builds the authentication middleware for the configured
// mode. Mode "none" (or a nil config) disables authentication entirely.
func AuthFromConfig(cfg *config.AuthConfig, logger observability.Logger) (gin.HandlerFunc, error) {
	if cfg == nil || cfg.Mode == "" || cfg.Mode == AuthModeNone {
		return func(c *gin.Context) {
			c.Next()
		}, nil
	}

	switch cfg.Mode {
	case AuthModeAPIKey:
		return APIKeyAuth(cfg.APIKeys, logger), nil
	case AuthModeJWT:
		return JWTAuth(&cfg.JWT, logger)
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", cfg.Mode)
	}
}

// APIKeyAuth returns a middleware that validates API keys against the
// configured key set. The key is read from the X-API-Key header, with
// Authorization: Bearer as a fallback.
func APIKeyAuth(keys []config.APIKeyConfig, logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		key := extractAPIKey(c)
		if key == "" {
			unauthorized(c, "API key is required")
			return
		}

		matched, err := matchAPIKey(key, keys, logger)
		if err != nil {
			logger.Warn("API key rejected",
				observability.String("clientIP", c.ClientIP()),
				observability.String("path", c.Request.URL.Path),
			)
			unauthorized(c, "invalid API key")
			return
		}

		c.Set(AuthSubjectKey, matched.ID)
		c.Set(AuthScopesKey, matched.Scopes)

		logger.Debug("API key validated",
			observability.String("keyID", matched.ID),
			observability.String("keyName", matched.Name),
		)

		c.Next()
	}
}

// extractAPIKey pulls the API key from the request headers.
func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader(APIKeyHeader); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// matchAPIKey checks the provided key against every configured key and
// returns the first match. All candidates are checked even after a match
// so that timing does not leak which entry matched.
func matchAPIKey(provided string, keys []config.APIKeyConfig, logger observability.Logger) (config.APIKeyConfig, error) {
	var matched config.APIKeyConfig
	found := false

	for _, candidate := range keys {
		if verifyAPIKey(provided, candidate, logger) && !found {
			matched = candidate
			found = true
		}
	}

	if !found {
		return config.APIKeyConfig{}, ErrInvalidAPIKey
	}
	return matched, nil
}

// verifyAPIKey checks the provided key against a single configured key
// using its hash algorithm.
func verifyAPIKey(provided string, candidate config.APIKeyConfig, logger observability.Logger) bool {
	switch candidate.Algorithm {
	case HashAlgBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(candidate.Hash), []byte(provided)) == nil
	case HashAlgSHA256, "":
		sum := sha256.Sum256([]byte(provided))
		providedHash := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(providedHash), []byte(strings.ToLower(candidate.Hash))) == 1
	case HashAlgPlaintext:
		logger.Warn("using plaintext API key comparison - not recommended for production")
		return subtle.ConstantTimeCompare([]byte(provided), []byte(candidate.Hash)) == 1
	default:
		return false
	}
}

// jwksKeySource fetches the signing key set for token verification.
// It exists so tests can substitute a static key set for the remote
// JWKS endpoint.
type jwksKeySource interface {
	Get(ctx context.Context, url string) (jwk.Set, error)
}

// JWTAuth returns a middleware that validates JWT bearer tokens against
// the issuer's JWKS endpoint. Keys are cached and refreshed in the
// background for the configured TTL.
func JWTAuth(cfg *config.JWTConfig, logger observability.Logger) (gin.HandlerFunc, error) {
	if cfg == nil || cfg.JWKSURL == "" {
		return nil, fmt.Errorf("jwt auth requires a JWKS URL")
	}

	ttl := cfg.CacheTTL.Duration()
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	cache := jwk.NewCache(context.Background())
	if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(ttl)); err != nil {
		return nil, fmt.Errorf("failed to register JWKS endpoint: %w", err)
	}

	return jwtAuthWithKeySource(cfg, cache, logger), nil
}

// jwtAuthWithKeySource builds the JWT middleware over an arbitrary key
// source.
func jwtAuthWithKeySource(cfg *config.JWTConfig, keys jwksKeySource, logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		raw := extractBearerToken(c)
		if raw == "" {
			unauthorized(c, "bearer token is required")
			return
		}

		token, err := validateToken(c.Request.Context(), raw, cfg, keys)
		if err != nil {
			logger.Warn("JWT rejected",
				observability.Error(err),
				observability.String("clientIP", c.ClientIP()),
				observability.String("path", c.Request.URL.Path),
			)
			unauthorized(c, "invalid token")
			return
		}

		c.Set(AuthSubjectKey, token.Subject())
		if scopes := tokenScopes(token); len(scopes) > 0 {
			c.Set(AuthScopesKey, scopes)
		}

		c.Next()
	}
}

// extractBearerToken pulls the bearer token from the Authorization header.
func extractBearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

// validateToken parses and validates a JWT against the key set, issuer,
// and audience list. An empty audience list accepts any audience.
func validateToken(ctx context.Context, raw string, cfg *config.JWTConfig, keys jwksKeySource) (jwt.Token, error) {
	set, err := keys.Get(ctx, cfg.JWKSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	opts := []jwt.ParseOption{
		jwt.WithKeySet(set, jws.WithInferAlgorithmFromKey(true)),
		jwt.WithValidate(true),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	token, err := jwt.Parse([]byte(raw), opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if len(cfg.Audiences) > 0 && !audienceAccepted(token.Audience(), cfg.Audiences) {
		return nil, fmt.Errorf("%w: audience not accepted", ErrInvalidToken)
	}

	return token, nil
}

// audienceAccepted reports whether any token audience appears in the
// accepted list.
func audienceAccepted(tokenAud, accepted []string) bool {
	for _, aud := range tokenAud {
		for _, want := range accepted {
			if aud == want {
				return true
			}
		}
	}
	return false
}

// tokenScopes extracts the scope claim, accepting both the
// space-separated string form and the array form.
func tokenScopes(token jwt.Token) []string {
	raw, ok := token.Get("scope")
	if !ok {
		if raw, ok = token.Get("scopes"); !ok {
			return nil
		}
	}

	switch v := raw.(type) {
	case string:
		return strings.Fields(v)
	case []interface{}:
		scopes := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
		return scopes
	default:
		return nil
	}
}

// unauthorized aborts the request with a 401 response.
func unauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "Unauthorized",
		"message": message,
	})
}
