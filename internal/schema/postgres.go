package schema

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/canonmorph/canonmorph/internal/observability"
	"github.com/canonmorph/canonmorph/internal/storage"
	"github.com/canonmorph/canonmorph/internal/util"
)

const schemaRecordsDDL = `
CREATE TABLE IF NOT EXISTS schema_records (
	id          UUID PRIMARY KEY,
	subject     TEXT        NOT NULL,
	schema_type TEXT        NOT NULL,
	consumer_id TEXT        NOT NULL DEFAULT '',
	version     TEXT        NOT NULL,
	definition  JSONB       NOT NULL,
	description TEXT        NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	UNIQUE (subject, schema_type, consumer_id, version)
)`

const schemaRecordColumns = "id, subject, schema_type, consumer_id, version, definition, description, created_at, updated_at"

// postgresStore is a PostgreSQL-backed schema store.
type postgresStore struct {
	logger observability.Logger
	pool   storage.Pool
}

// NewPostgresStore creates a schema store on the given connection pool
// and ensures the schema_records table exists.
func NewPostgresStore(ctx context.Context, pool storage.Pool, logger observability.Logger) (Store, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if pool == nil {
		return nil, errors.New("postgres pool is required")
	}

	s := &postgresStore{logger: logger, pool: pool}

	if _, err := pool.Exec(ctx, schemaRecordsDDL); err != nil {
		return nil, fmt.Errorf("failed to ensure schema_records table: %w", err)
	}

	logger.Info("postgres schema store initialized")
	return s, nil
}

// Create validates and stores a new record.
func (s *postgresStore) Create(ctx context.Context, record Record) (Record, error) {
	if err := record.Validate(); err != nil {
		return Record{}, err
	}

	now := time.Now().UTC()
	record.ID = uuid.NewString()
	record.CreatedAt = now
	record.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO schema_records (`+schemaRecordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		record.ID, record.Subject, string(record.Type), record.ConsumerID,
		record.Version, []byte(record.Definition), record.Description,
		record.CreatedAt, record.UpdatedAt)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			key := recordKey(record.Subject, record.Type, record.ConsumerID, record.Version)
			return Record{}, util.NewConflictError("schema", key,
				"version already registered")
		}
		return Record{}, fmt.Errorf("failed to insert schema record: %w", err)
	}

	s.logger.Debug("schema record created",
		observability.String("id", record.ID),
		observability.String("subject", record.Subject),
		observability.String("type", string(record.Type)),
		observability.String("version", record.Version))

	return record, nil
}

// GetByID returns the record with the given ID.
func (s *postgresStore) GetByID(ctx context.Context, id string) (Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+schemaRecordColumns+`
		FROM schema_records
		WHERE id = $1`, id)

	record, err := scanSchemaRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, util.NewNotFoundError("schema", id)
		}
		return Record{}, fmt.Errorf("failed to read schema record: %w", err)
	}
	return record, nil
}

// Get returns the record for the exact coordinate.
func (s *postgresStore) Get(ctx context.Context, subject string, schemaType Type, consumerID, version string) (Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+schemaRecordColumns+`
		FROM schema_records
		WHERE subject = $1 AND schema_type = $2 AND consumer_id = $3 AND version = $4`,
		subject, string(schemaType), consumerID, version)

	record, err := scanSchemaRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			key := recordKey(subject, schemaType, consumerID, version)
			return Record{}, util.NewNotFoundError("schema", key)
		}
		return Record{}, fmt.Errorf("failed to read schema record: %w", err)
	}
	return record, nil
}

// ListVersions returns all records for (subject, type, consumerId)
// ordered by ascending semantic version. Ordering happens in Go since
// text columns do not sort semantic versions correctly.
func (s *postgresStore) ListVersions(ctx context.Context, subject string, schemaType Type, consumerID string) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+schemaRecordColumns+`
		FROM schema_records
		WHERE subject = $1 AND schema_type = $2 AND consumer_id = $3`,
		subject, string(schemaType), consumerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schema records: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, 4)
	for rows.Next() {
		record, err := scanSchemaRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schema record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list schema records: %w", err)
	}

	sortByVersion(records)
	return records, nil
}

// Delete removes the record with the given ID.
func (s *postgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM schema_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schema record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return util.NewNotFoundError("schema", id)
	}

	s.logger.Debug("schema record deleted", observability.String("id", id))
	return nil
}

// Close implements Store. The shared pool is owned by the caller, so
// closing the store does not close it.
func (s *postgresStore) Close() error {
	return nil
}

// scanSchemaRecord reads one record from a row.
func scanSchemaRecord(row pgx.Row) (Record, error) {
	var (
		record     Record
		schemaType string
		definition []byte
	)
	err := row.Scan(&record.ID, &record.Subject, &schemaType,
		&record.ConsumerID, &record.Version, &definition,
		&record.Description, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return Record{}, err
	}
	record.Type = Type(schemaType)
	record.Definition = definition
	return record, nil
}

var _ Store = (*postgresStore)(nil)
