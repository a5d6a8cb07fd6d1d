package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/canonmorph/canonmorph/internal/config"
	"github.com/canonmorph/canonmorph/internal/observability"
)

// memoryStore is an in-memory catalog store guarded by a RWMutex.
type memoryStore struct {
	logger  observability.Logger
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an in-memory catalog store seeded with the
// entries from the configuration.
func NewMemoryStore(cfg *config.CatalogConfig, logger observability.Logger) (Store, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	s := &memoryStore{
		logger:  logger,
		entries: make(map[string]Entry),
	}

	if cfg != nil {
		for _, e := range cfg.Entries {
			entry := Entry{ID: e.ID, Expression: e.Expression, Description: e.Description}
			if err := validateEntry(entry); err != nil {
				return nil, err
			}
			s.entries[entry.ID] = entry
		}
	}

	logger.Info("memory catalog initialized",
		observability.Int("entries", len(s.entries)))

	return s, nil
}

// Lookup returns the expression registered for the given identifier.
func (s *memoryStore) Lookup(ctx context.Context, id string) (string, error) {
	start := time.Now()

	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()

	GetCatalogMetrics().lookupDuration.WithLabelValues("memory").
		Observe(time.Since(start).Seconds())

	if !ok {
		GetCatalogMetrics().lookupsTotal.WithLabelValues("memory", "miss").Inc()
		return "", NewUnknownTransformationError(id)
	}

	GetCatalogMetrics().lookupsTotal.WithLabelValues("memory", "hit").Inc()
	return entry.Expression, nil
}

// Put creates or replaces an entry.
func (s *memoryStore) Put(ctx context.Context, entry Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[entry.ID] = entry
	s.mu.Unlock()

	s.logger.Debug("catalog entry stored", observability.String("id", entry.ID))
	return nil
}

// Get returns the full entry for the given identifier.
func (s *memoryStore) Get(ctx context.Context, id string) (Entry, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok {
		return Entry{}, NewUnknownTransformationError(id)
	}
	return entry, nil
}

// Delete removes an entry.
func (s *memoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return NewUnknownTransformationError(id)
	}
	delete(s.entries, id)

	s.logger.Debug("catalog entry deleted", observability.String("id", id))
	return nil
}

// List returns all entries sorted by identifier.
func (s *memoryStore) List(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	entries := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

// Ping implements Store. The memory store is always reachable.
func (s *memoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close implements Store. The memory store holds no external resources.
func (s *memoryStore) Close() error {
	return nil
}

var _ Store = (*memoryStore)(nil)
