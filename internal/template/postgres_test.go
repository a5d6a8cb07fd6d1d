package template

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonmorph/canonmorph/internal/engine"
	"github.com/canonmorph/canonmorph/internal/util"
)

var templateTestColumns = []string{
	"consumer_id", "subject", "version", "engine",
	"template_expression", "configuration", "input_schema_id", "output_schema_id",
	"is_active", "description", "created_at", "updated_at",
}

// newMockTemplateStore creates a postgres template store over a pgxmock pool.
func newMockTemplateStore(t *testing.T) (Store, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS transformation_templates").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE UNIQUE INDEX IF NOT EXISTS transformation_templates_active_idx").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	store, err := NewPostgresStore(context.Background(), mock, nil)
	require.NoError(t, err)

	return store, mock
}

// expectLockPair queues the pair snapshot query with the given
// version to active flag rows.
func expectLockPair(mock pgxmock.PgxPoolIface, rows [][2]interface{}) {
	result := mock.NewRows([]string{"version", "is_active"})
	for _, row := range rows {
		result.AddRow(row[0], row[1])
	}
	mock.ExpectQuery("SELECT version, is_active").
		WithArgs("billing-app", "orders").
		WillReturnRows(result)
}

func TestNewPostgresStore_NilPool(t *testing.T) {
	t.Parallel()

	_, err := NewPostgresStore(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestPostgresStore_Create(t *testing.T) {
	store, mock := newMockTemplateStore(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transformation_templates").
		WithArgs("billing-app", "orders", "1.0.0", "direct",
			`{"id": doc.id}`, "", "", "",
			false, "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	created, err := store.Create(context.Background(), validTemplate(), false)
	require.NoError(t, err)
	assert.False(t, created.Active)
	assert.False(t, created.CreatedAt.IsZero())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Create_Activate(t *testing.T) {
	store, mock := newMockTemplateStore(t)
	defer mock.Close()

	// Activation deactivates the previous version in the same
	// transaction as the insert.
	mock.ExpectBegin()
	mock.ExpectExec("SET is_active = FALSE").
		WithArgs("billing-app", "orders", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO transformation_templates").
		WithArgs("billing-app", "orders", "1.0.0", "direct",
			`{"id": doc.id}`, "", "", "",
			true, "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	created, err := store.Create(context.Background(), validTemplate(), true)
	require.NoError(t, err)
	assert.True(t, created.Active)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Create_Invalid(t *testing.T) {
	store, mock := newMockTemplateStore(t)
	defer mock.Close()

	tmpl := validTemplate()
	tmpl.Version = "nope"

	// Validation fails before any SQL is issued.
	_, err := store.Create(context.Background(), tmpl, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Create_Duplicate(t *testing.T) {
	store, mock := newMockTemplateStore(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transformation_templates").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := store.Create(context.Background(), validTemplate(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrConflict)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetVersion(t *testing.T) {
	store, mock := newMockTemplateStore(t)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM transformation_templates").
		WithArgs("billing-app", "orders", "1.0.0").
		WillReturnRows(mock.NewRows(templateTestColumns).
			AddRow("billing-app", "orders", "1.0.0", "direct",
				`{"id": doc.id}`, "", "", "", true, "", now, now))

	tmpl, err := store.GetVersion(context.Background(), "billing-app", "orders", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, engine.TypeDirect, tmpl.Engine)
	assert.Equal(t, `{"id": doc.id}`, tmpl.Expression)
	assert.True(t, tmpl.Active)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetVersion_NotFound(t *testing.T) {
	store, mock := newMockTemplateStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM transformation_templates").
		WithArgs("billing-app", "orders", "9.9.9").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetVersion(context.Background(), "billing-app", "orders", "9.9.9")
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetActive(t *testing.T) {
	store, mock := newMockTemplateStore(t)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM transformation_templates").
		WithArgs("billing-app", "orders").
		WillReturnRows(mock.NewRows(templateTestColumns).
			AddRow("billing-app", "orders", "2.0.0", "router",
				`{"type":"router","routes":[]}`, `{"type":"router","routes":[]}`,
				"", "", true, "", now, now))

	tmpl, err := store.GetActive(context.Background(), "billing-app", "orders")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", tmpl.Version)
	assert.Equal(t, engine.TypeRouter, tmpl.Engine)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetActive_NotFound(t *testing.T) {
	store, mock := newMockTemplateStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM transformation_templates").
		WithArgs("billing-app", "orders").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetActive(context.Background(), "billing-app", "orders")
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListVersions_SemverOrder(t *testing.T) {
	store, mock := newMockTemplateStore(t)
	defer mock.Close()

	now := time.Now().UTC()
	rows := mock.NewRows(templateTestColumns).
		AddRow("billing-app", "orders", "1.10.0", "direct", "{}", "", "", "", false, "", now, now).
		AddRow("billing-app", "orders", "1.0.0", "direct", "{}", "", "", "", true, "", now, now).
		AddRow("billing-app", "orders", "1.2.0", "direct", "{}", "", "", "", false, "", now, now)

	mock.ExpectQuery("SELECT (.+) FROM transformation_templates").
		WithArgs("billing-app", "orders").
		WillReturnRows(rows)

	versions, err := store.ListVersions(context.Background(), "billing-app", "orders")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, "1.0.0", versions[0].Version)
	assert.Equal(t, "1.2.0", versions[1].Version)
	assert.Equal(t, "1.10.0", versions[2].Version)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountVersions(t *testing.T) {
	store, mock := newMockTemplateStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("billing-app", "orders").
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(2))

	count, err := store.CountVersions(context.Background(), "billing-app", "orders")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Activate(t *testing.T) {
	store, mock := newMockTemplateStore(t)
	defer mock.Close()

	mock.ExpectBegin()
	expectLockPair(mock, [][2]interface{}{
		{"1.0.0", true},
		{"2.0.0", false},
	})
	mock.ExpectExec("SET is_active = FALSE").
		WithArgs("billing-app", "orders", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("SET is_active = TRUE").
		WithArgs("billing-app", "orders", "2.0.0", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.Activate(context.Background(), "billing-app", "orders", "2.0.0")
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Activate_Idempotent(t *testing.T) {
	store, mock := newMockTemplateStore(t)
	defer mock.Close()

	// The target is already active, so the transaction commits
	// without touching any row.
	mock.ExpectBegin()
	expectLockPair(mock, [][2]interface{}{
		{"1.0.0", true},
		{"2.0.0", false},
	})
	mock.ExpectCommit()

	err := store.Activate(context.Background(), "billing-app", "orders", "1.0.0")
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Activate_NotFound(t *testing.T) {
	store, mock := newMockTemplateStore(t)
	defer mock.Close()

	mock.ExpectBegin()
	expectLockPair(mock, [][2]interface{}{
		{"1.0.0", true},
	})
	mock.ExpectRollback()

	err := store.Activate(context.Background(), "billing-app", "orders", "9.9.9")
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Deactivate_PromotesHighestRemaining(t *testing.T) {
	store, mock := newMockTemplateStore(t)
	defer mock.Close()

	mock.ExpectBegin()
	expectLockPair(mock, [][2]interface{}{
		{"1.0.0", false},
		{"3.0.0", true},
		{"2.0.0", false},
	})
	mock.ExpectExec("SET is_active = FALSE").
		WithArgs("billing-app", "orders", "3.0.0", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("SET is_active = TRUE").
		WithArgs("billing-app", "orders", "2.0.0", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.Deactivate(context.Background(), "billing-app", "orders", "3.0.0")
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Deactivate_NotActive(t *testing.T) {
	store, mock := newMockTemplateStore(t)
	defer mock.Close()

	mock.ExpectBegin()
	expectLockPair(mock, [][2]interface{}{
		{"1.0.0", false},
		{"2.0.0", true},
	})
	mock.ExpectRollback()

	err := store.Deactivate(context.Background(), "billing-app", "orders", "1.0.0")
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrConflict)
	assert.Contains(t, err.Error(), "not active")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Deactivate_OnlyVersion(t *testing.T) {
	store, mock := newMockTemplateStore(t)
	defer mock.Close()

	mock.ExpectBegin()
	expectLockPair(mock, [][2]interface{}{
		{"1.0.0", true},
	})
	mock.ExpectRollback()

	err := store.Deactivate(context.Background(), "billing-app", "orders", "1.0.0")
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrConflict)
	assert.Contains(t, err.Error(), "only version")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := newMockTemplateStore(t)
	defer mock.Close()

	mock.ExpectBegin()
	expectLockPair(mock, [][2]interface{}{
		{"1.0.0", false},
		{"2.0.0", true},
	})
	mock.ExpectExec("DELETE FROM transformation_templates").
		WithArgs("billing-app", "orders", "1.0.0").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	err := store.Delete(context.Background(), "billing-app", "orders", "1.0.0")
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete_Active(t *testing.T) {
	store, mock := newMockTemplateStore(t)
	defer mock.Close()

	mock.ExpectBegin()
	expectLockPair(mock, [][2]interface{}{
		{"1.0.0", false},
		{"2.0.0", true},
	})
	mock.ExpectRollback()

	err := store.Delete(context.Background(), "billing-app", "orders", "2.0.0")
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrConflict)
	assert.Contains(t, err.Error(), "active version")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete_OnlyVersion(t *testing.T) {
	store, mock := newMockTemplateStore(t)
	defer mock.Close()

	mock.ExpectBegin()
	expectLockPair(mock, [][2]interface{}{
		{"1.0.0", false},
	})
	mock.ExpectRollback()

	err := store.Delete(context.Background(), "billing-app", "orders", "1.0.0")
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrConflict)
	assert.Contains(t, err.Error(), "only version")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete_NotFound(t *testing.T) {
	store, mock := newMockTemplateStore(t)
	defer mock.Close()

	mock.ExpectBegin()
	expectLockPair(mock, nil)
	mock.ExpectRollback()

	err := store.Delete(context.Background(), "billing-app", "orders", "9.9.9")
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
