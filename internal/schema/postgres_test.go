package schema

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonmorph/canonmorph/internal/util"
)

var schemaRecordTestColumns = []string{
	"id", "subject", "schema_type", "consumer_id", "version",
	"definition", "description", "created_at", "updated_at",
}

// newMockSchemaStore creates a postgres schema store over a pgxmock pool.
func newMockSchemaStore(t *testing.T) (Store, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_records").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	store, err := NewPostgresStore(context.Background(), mock, nil)
	require.NoError(t, err)

	return store, mock
}

func TestNewPostgresStore_NilPool(t *testing.T) {
	t.Parallel()

	_, err := NewPostgresStore(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestPostgresStore_Create(t *testing.T) {
	store, mock := newMockSchemaStore(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO schema_records").
		WithArgs(pgxmock.AnyArg(), "orders", "canonical", "", "1.0.0",
			[]byte(`{"type":"object"}`), "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	created, err := store.Create(context.Background(), validCanonicalRecord())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Create_Invalid(t *testing.T) {
	store, mock := newMockSchemaStore(t)
	defer mock.Close()

	record := validCanonicalRecord()
	record.Version = "nope"

	// Validation fails before any SQL is issued.
	_, err := store.Create(context.Background(), record)
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Create_Duplicate(t *testing.T) {
	store, mock := newMockSchemaStore(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO schema_records").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := store.Create(context.Background(), validCanonicalRecord())
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrConflict)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetByID(t *testing.T) {
	store, mock := newMockSchemaStore(t)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM schema_records").
		WithArgs("abc-123").
		WillReturnRows(mock.NewRows(schemaRecordTestColumns).
			AddRow("abc-123", "orders", "canonical", "", "1.0.0",
				[]byte(`{"type":"object"}`), "", now, now))

	record, err := store.GetByID(context.Background(), "abc-123")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", record.ID)
	assert.Equal(t, TypeCanonical, record.Type)
	assert.JSONEq(t, `{"type":"object"}`, string(record.Definition))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetByID_NotFound(t *testing.T) {
	store, mock := newMockSchemaStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM schema_records").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockSchemaStore(t)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT (.+) FROM schema_records\s+WHERE subject = \$1 AND schema_type = \$2 AND consumer_id = \$3 AND version = \$4`).
		WithArgs("orders", "consumer-output", "billing-app", "1.0.0").
		WillReturnRows(mock.NewRows(schemaRecordTestColumns).
			AddRow("id-1", "orders", "consumer-output", "billing-app", "1.0.0",
				[]byte(`{"type":"object"}`), "", now, now))

	record, err := store.Get(context.Background(), "orders", TypeConsumerOutput, "billing-app", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "billing-app", record.ConsumerID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListVersions_SemverOrder(t *testing.T) {
	store, mock := newMockSchemaStore(t)
	defer mock.Close()

	now := time.Now().UTC()
	rows := mock.NewRows(schemaRecordTestColumns).
		AddRow("id-1", "orders", "canonical", "", "1.10.0", []byte(`{}`), "", now, now).
		AddRow("id-2", "orders", "canonical", "", "1.0.0", []byte(`{}`), "", now, now).
		AddRow("id-3", "orders", "canonical", "", "1.2.0", []byte(`{}`), "", now, now)

	mock.ExpectQuery("SELECT (.+) FROM schema_records").
		WithArgs("orders", "canonical", "").
		WillReturnRows(rows)

	records, err := store.ListVersions(context.Background(), "orders", TypeCanonical, "")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "1.0.0", records[0].Version)
	assert.Equal(t, "1.2.0", records[1].Version)
	assert.Equal(t, "1.10.0", records[2].Version)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := newMockSchemaStore(t)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM schema_records WHERE id = \$1`).
		WithArgs("id-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	assert.NoError(t, store.Delete(context.Background(), "id-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete_NotFound(t *testing.T) {
	store, mock := newMockSchemaStore(t)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM schema_records WHERE id = \$1`).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := store.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
