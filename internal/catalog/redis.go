package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/canonmorph/canonmorph/internal/config"
	"github.com/canonmorph/canonmorph/internal/observability"
	"github.com/canonmorph/canonmorph/internal/util"
)

// defaultKeyPrefix namespaces catalog keys in a shared Redis instance.
const defaultKeyPrefix = "canonmorph:catalog:"

// redisStore is a Redis-backed catalog store. Lookups on the
// transformation path are protected by a circuit breaker; administrative
// operations talk to Redis directly so their errors surface unchanged.
type redisStore struct {
	logger    observability.Logger
	client    *redis.Client
	keyPrefix string
	breaker   *gobreaker.CircuitBreaker
}

// storeOptions holds optional settings for the Redis store.
type storeOptions struct {
	password string
}

// StoreOption configures the Redis catalog store.
type StoreOption func(*storeOptions)

// WithPassword overrides the password embedded in the connection URL.
// Used when the password comes from a secrets provider.
func WithPassword(password string) StoreOption {
	return func(o *storeOptions) {
		o.password = password
	}
}

// NewRedisStore connects to Redis and returns a catalog store seeded with
// the entries from the configuration.
func NewRedisStore(cfg *config.CatalogConfig, logger observability.Logger, opts ...StoreOption) (Store, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if cfg == nil || cfg.Redis.URL == "" {
		return nil, errors.New("redis URL is required")
	}

	options := &storeOptions{}
	for _, opt := range opts {
		opt(options)
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, errors.New("invalid redis URL: " + err.Error())
	}

	if options.password != "" {
		redisOpts.Password = options.password
	}

	applyRedisTimeouts(redisOpts, &cfg.Redis)

	client := redis.NewClient(redisOpts)

	if err := pingRedis(client); err != nil {
		_ = client.Close()
		return nil, errors.New("redis connection failed: " + err.Error())
	}

	s := &redisStore{
		logger:    logger,
		client:    client,
		keyPrefix: resolveKeyPrefix(cfg.Redis.KeyPrefix),
	}

	if cfg.Breaker.Enabled {
		s.breaker = newLookupBreaker(&cfg.Breaker, logger)
	}

	if err := s.seed(cfg.Entries); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("redis catalog initialized",
		observability.String("keyPrefix", s.keyPrefix),
		observability.Int("seededEntries", len(cfg.Entries)),
		observability.Bool("breakerEnabled", cfg.Breaker.Enabled))

	return s, nil
}

// applyRedisTimeouts applies timeout configuration overrides to Redis options.
func applyRedisTimeouts(opts *redis.Options, redisCfg *config.RedisConfig) {
	if redisCfg.DialTimeout > 0 {
		opts.DialTimeout = redisCfg.DialTimeout.Duration()
	}
	if redisCfg.ReadTimeout > 0 {
		opts.ReadTimeout = redisCfg.ReadTimeout.Duration()
	}
	if redisCfg.WriteTimeout > 0 {
		opts.WriteTimeout = redisCfg.WriteTimeout.Duration()
	}
}

// pingRedis tests the Redis connection with a timeout.
func pingRedis(client *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Ping(ctx).Err()
}

// resolveKeyPrefix returns the key prefix, defaulting to
// "canonmorph:catalog:" if empty.
func resolveKeyPrefix(prefix string) string {
	if prefix == "" {
		return defaultKeyPrefix
	}
	return prefix
}

// newLookupBreaker builds the circuit breaker protecting catalog lookups.
func newLookupBreaker(cfg *config.BreakerConfig, logger observability.Logger) *gobreaker.CircuitBreaker {
	maxFailures := safeIntToUint32(cfg.MaxFailures)

	settings := gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Interval:    cfg.Interval.Duration(),
		Timeout:     cfg.Timeout.Duration(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// A miss is a successful round trip. Only infrastructure
		// failures count against the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("catalog circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
			GetCatalogMetrics().breakerState.
				WithLabelValues(name).Set(float64(to))
		},
	}

	return gobreaker.NewCircuitBreaker(settings)
}

// safeIntToUint32 safely converts int to uint32.
func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // bounds checked above
}

// seed stores the configured entries so lookups work before any
// administrative writes.
func (s *redisStore) seed(entries []config.CatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, e := range entries {
		entry := Entry{ID: e.ID, Expression: e.Expression, Description: e.Description}
		if err := s.Put(ctx, entry); err != nil {
			return fmt.Errorf("failed to seed catalog entry %q: %w", e.ID, err)
		}
	}
	return nil
}

// Lookup returns the expression registered for the given identifier.
func (s *redisStore) Lookup(ctx context.Context, id string) (string, error) {
	start := time.Now()
	defer func() {
		GetCatalogMetrics().lookupDuration.WithLabelValues("redis").
			Observe(time.Since(start).Seconds())
	}()

	fetch := func() (interface{}, error) {
		return s.client.Get(ctx, s.keyPrefix+id).Result()
	}

	var result interface{}
	var err error
	if s.breaker != nil {
		result, err = s.breaker.Execute(fetch)
	} else {
		result, err = fetch()
	}

	if err != nil {
		if errors.Is(err, redis.Nil) {
			GetCatalogMetrics().lookupsTotal.WithLabelValues("redis", "miss").Inc()
			return "", NewUnknownTransformationError(id)
		}
		GetCatalogMetrics().lookupsTotal.WithLabelValues("redis", "error").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", util.NewCircuitOpenError("catalog", s.breaker.State().String())
		}
		s.logger.Error("catalog lookup failed",
			observability.String("id", id),
			observability.Error(err))
		return "", fmt.Errorf("catalog lookup failed: %w", err)
	}

	payload, ok := result.(string)
	if !ok {
		GetCatalogMetrics().lookupsTotal.WithLabelValues("redis", "error").Inc()
		return "", fmt.Errorf("catalog entry %q has unexpected type %T", id, result)
	}

	entry, err := decodeEntry(id, payload)
	if err != nil {
		GetCatalogMetrics().lookupsTotal.WithLabelValues("redis", "error").Inc()
		return "", err
	}

	GetCatalogMetrics().lookupsTotal.WithLabelValues("redis", "hit").Inc()
	return entry.Expression, nil
}

// Put creates or replaces an entry. Entries are stored as JSON so List
// and Get can recover descriptions.
func (s *redisStore) Put(ctx context.Context, entry Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode catalog entry %q: %w", entry.ID, err)
	}

	if err := s.client.Set(ctx, s.keyPrefix+entry.ID, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to store catalog entry %q: %w", entry.ID, err)
	}

	s.logger.Debug("catalog entry stored", observability.String("id", entry.ID))
	return nil
}

// Get returns the full entry for the given identifier.
func (s *redisStore) Get(ctx context.Context, id string) (Entry, error) {
	payload, err := s.client.Get(ctx, s.keyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, NewUnknownTransformationError(id)
		}
		return Entry{}, fmt.Errorf("failed to read catalog entry %q: %w", id, err)
	}
	return decodeEntry(id, payload)
}

// Delete removes an entry.
func (s *redisStore) Delete(ctx context.Context, id string) error {
	deleted, err := s.client.Del(ctx, s.keyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete catalog entry %q: %w", id, err)
	}
	if deleted == 0 {
		return NewUnknownTransformationError(id)
	}

	s.logger.Debug("catalog entry deleted", observability.String("id", id))
	return nil
}

// List returns all entries sorted by identifier.
func (s *redisStore) List(ctx context.Context) ([]Entry, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan catalog entries: %w", err)
	}
	if len(keys) == 0 {
		return []Entry{}, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog entries: %w", err)
	}

	entries := make([]Entry, 0, len(values))
	for i, value := range values {
		payload, ok := value.(string)
		if !ok {
			// Key removed between SCAN and MGET.
			continue
		}
		entry, err := decodeEntry(keys[i], payload)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

// Ping verifies Redis connectivity.
func (s *redisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *redisStore) Close() error {
	return s.client.Close()
}

// decodeEntry parses a stored catalog entry.
func decodeEntry(id, payload string) (Entry, error) {
	var entry Entry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		return Entry{}, fmt.Errorf("failed to decode catalog entry %q: %w", id, err)
	}
	return entry, nil
}

var _ Store = (*redisStore)(nil)
