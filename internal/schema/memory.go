package schema

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/canonmorph/canonmorph/internal/observability"
	"github.com/canonmorph/canonmorph/internal/util"
)

// memoryStore is an in-memory schema store guarded by a RWMutex.
type memoryStore struct {
	logger observability.Logger
	mu     sync.RWMutex
	byID   map[string]Record
	byKey  map[string]string
}

// NewMemoryStore creates an in-memory schema store.
func NewMemoryStore(logger observability.Logger) Store {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &memoryStore{
		logger: logger,
		byID:   make(map[string]Record),
		byKey:  make(map[string]string),
	}
}

// Create validates and stores a new record.
func (s *memoryStore) Create(ctx context.Context, record Record) (Record, error) {
	if err := record.Validate(); err != nil {
		return Record{}, err
	}

	key := recordKey(record.Subject, record.Type, record.ConsumerID, record.Version)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byKey[key]; exists {
		return Record{}, util.NewConflictError("schema", key,
			"version already registered")
	}

	now := time.Now().UTC()
	record.ID = uuid.NewString()
	record.CreatedAt = now
	record.UpdatedAt = now

	s.byID[record.ID] = record
	s.byKey[key] = record.ID

	s.logger.Debug("schema record created",
		observability.String("id", record.ID),
		observability.String("subject", record.Subject),
		observability.String("type", string(record.Type)),
		observability.String("version", record.Version))

	return record, nil
}

// GetByID returns the record with the given ID.
func (s *memoryStore) GetByID(ctx context.Context, id string) (Record, error) {
	s.mu.RLock()
	record, ok := s.byID[id]
	s.mu.RUnlock()

	if !ok {
		return Record{}, util.NewNotFoundError("schema", id)
	}
	return record, nil
}

// Get returns the record for the exact coordinate.
func (s *memoryStore) Get(ctx context.Context, subject string, schemaType Type, consumerID, version string) (Record, error) {
	key := recordKey(subject, schemaType, consumerID, version)

	s.mu.RLock()
	id, ok := s.byKey[key]
	var record Record
	if ok {
		record = s.byID[id]
	}
	s.mu.RUnlock()

	if !ok {
		return Record{}, util.NewNotFoundError("schema", key)
	}
	return record, nil
}

// ListVersions returns all records for (subject, type, consumerId)
// ordered by ascending semantic version.
func (s *memoryStore) ListVersions(ctx context.Context, subject string, schemaType Type, consumerID string) ([]Record, error) {
	s.mu.RLock()
	records := make([]Record, 0, 4)
	for _, record := range s.byID {
		if record.Subject == subject && record.Type == schemaType &&
			record.ConsumerID == consumerID {
			records = append(records, record)
		}
	}
	s.mu.RUnlock()

	sortByVersion(records)
	return records, nil
}

// Delete removes the record with the given ID.
func (s *memoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byID[id]
	if !ok {
		return util.NewNotFoundError("schema", id)
	}

	delete(s.byID, id)
	delete(s.byKey, recordKey(record.Subject, record.Type, record.ConsumerID, record.Version))

	s.logger.Debug("schema record deleted", observability.String("id", id))
	return nil
}

// Close implements Store. The memory store holds no external resources.
func (s *memoryStore) Close() error {
	return nil
}

var _ Store = (*memoryStore)(nil)
