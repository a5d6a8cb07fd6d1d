package template

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/canonmorph/canonmorph/internal/engine"
	"github.com/canonmorph/canonmorph/internal/observability"
	"github.com/canonmorph/canonmorph/internal/storage"
	"github.com/canonmorph/canonmorph/internal/util"
)

// transformationTemplatesDDL creates the template table. The partial
// unique index enforces at most one active row per pair even against
// writers outside this process.
const transformationTemplatesDDL = `
CREATE TABLE IF NOT EXISTS transformation_templates (
	consumer_id         TEXT        NOT NULL,
	subject             TEXT        NOT NULL,
	version             TEXT        NOT NULL,
	engine              TEXT        NOT NULL,
	template_expression TEXT        NOT NULL,
	configuration       TEXT        NOT NULL DEFAULT '',
	input_schema_id     TEXT        NOT NULL DEFAULT '',
	output_schema_id    TEXT        NOT NULL DEFAULT '',
	is_active           BOOLEAN     NOT NULL DEFAULT FALSE,
	description         TEXT        NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (consumer_id, subject, version)
)`

const transformationTemplatesActiveIndexDDL = `
CREATE UNIQUE INDEX IF NOT EXISTS transformation_templates_active_idx
	ON transformation_templates (consumer_id, subject)
	WHERE is_active`

const templateColumns = "consumer_id, subject, version, engine, " +
	"template_expression, configuration, input_schema_id, output_schema_id, " +
	"is_active, description, created_at, updated_at"

// postgresStore persists template versions in PostgreSQL. State machine
// transitions run inside a transaction that locks the pair's rows, so
// concurrent lifecycle calls serialize per pair.
type postgresStore struct {
	logger observability.Logger
	pool   storage.Pool
}

// NewPostgresStore creates a template store over the given pool and
// ensures the backing table exists.
func NewPostgresStore(ctx context.Context, pool storage.Pool, logger observability.Logger) (Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres pool is required")
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	if _, err := pool.Exec(ctx, transformationTemplatesDDL); err != nil {
		return nil, fmt.Errorf("failed to ensure transformation_templates table: %w", err)
	}
	if _, err := pool.Exec(ctx, transformationTemplatesActiveIndexDDL); err != nil {
		return nil, fmt.Errorf("failed to ensure transformation_templates active index: %w", err)
	}

	return &postgresStore{
		logger: logger,
		pool:   pool,
	}, nil
}

// Create persists a new version, deactivating the pair's previous
// active version inside the same transaction when activate is set.
func (s *postgresStore) Create(ctx context.Context, tmpl Template, activate bool) (Template, error) {
	if err := tmpl.Validate(); err != nil {
		return Template{}, err
	}

	now := time.Now().UTC()
	tmpl.CreatedAt = now
	tmpl.UpdatedAt = now
	tmpl.Active = activate

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Template{}, fmt.Errorf("failed to begin transaction: %w", err)
	}

	if activate {
		_, err = tx.Exec(ctx, `
			UPDATE transformation_templates
			SET is_active = FALSE, updated_at = $3
			WHERE consumer_id = $1 AND subject = $2 AND is_active`,
			tmpl.ConsumerID, tmpl.Subject, now)
		if err != nil {
			s.rollback(ctx, tx)
			return Template{}, fmt.Errorf("failed to deactivate previous version: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO transformation_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		tmpl.ConsumerID, tmpl.Subject, tmpl.Version, string(tmpl.Engine),
		tmpl.Expression, tmpl.Configuration, tmpl.InputSchemaID, tmpl.OutputSchemaID,
		tmpl.Active, tmpl.Description, tmpl.CreatedAt, tmpl.UpdatedAt)
	if err != nil {
		s.rollback(ctx, tx)
		if storage.IsUniqueViolation(err) {
			return Template{}, util.NewConflictError("template", tmpl.Coordinate(),
				"version already exists")
		}
		return Template{}, fmt.Errorf("failed to insert template: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Template{}, fmt.Errorf("failed to commit template creation: %w", err)
	}

	return tmpl, nil
}

// GetVersion returns one version of a pair.
func (s *postgresStore) GetVersion(ctx context.Context, consumerID, subject, version string) (Template, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM transformation_templates
		WHERE consumer_id = $1 AND subject = $2 AND version = $3`,
		consumerID, subject, version)

	tmpl, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Template{}, util.NewNotFoundError("template", versionKey(consumerID, subject, version))
		}
		return Template{}, fmt.Errorf("failed to get template: %w", err)
	}
	return tmpl, nil
}

// GetActive returns the pair's active version.
func (s *postgresStore) GetActive(ctx context.Context, consumerID, subject string) (Template, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM transformation_templates
		WHERE consumer_id = $1 AND subject = $2 AND is_active`,
		consumerID, subject)

	tmpl, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Template{}, util.NewNotFoundError("template", versionKey(consumerID, subject, "active"))
		}
		return Template{}, fmt.Errorf("failed to get active template: %w", err)
	}
	return tmpl, nil
}

// ListVersions returns the pair's versions in ascending semantic
// version order. Ordering happens in Go since text columns do not sort
// semantic versions correctly.
func (s *postgresStore) ListVersions(ctx context.Context, consumerID, subject string) ([]Template, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+templateColumns+`
		FROM transformation_templates
		WHERE consumer_id = $1 AND subject = $2`,
		consumerID, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	templates := make([]Template, 0)
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, tmpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	sortByVersion(templates)
	return templates, nil
}

// CountVersions returns the number of versions stored for a pair.
func (s *postgresStore) CountVersions(ctx context.Context, consumerID, subject string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM transformation_templates
		WHERE consumer_id = $1 AND subject = $2`,
		consumerID, subject).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count templates: %w", err)
	}
	return count, nil
}

// Activate makes the given version the pair's active one. The pair's
// rows are locked for the whole swap, so two concurrent activations
// cannot leave two active rows or none.
func (s *postgresStore) Activate(ctx context.Context, consumerID, subject, version string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	versions, err := lockPair(ctx, tx, consumerID, subject)
	if err != nil {
		s.rollback(ctx, tx)
		return fmt.Errorf("failed to lock template pair: %w", err)
	}

	active, ok := versions[version]
	if !ok {
		s.rollback(ctx, tx)
		return util.NewNotFoundError("template", versionKey(consumerID, subject, version))
	}
	if active {
		// Already active, nothing to swap.
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit activation: %w", err)
		}
		return nil
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		UPDATE transformation_templates
		SET is_active = FALSE, updated_at = $3
		WHERE consumer_id = $1 AND subject = $2 AND is_active`,
		consumerID, subject, now)
	if err != nil {
		s.rollback(ctx, tx)
		return fmt.Errorf("failed to deactivate previous version: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE transformation_templates
		SET is_active = TRUE, updated_at = $4
		WHERE consumer_id = $1 AND subject = $2 AND version = $3`,
		consumerID, subject, version, now)
	if err != nil {
		s.rollback(ctx, tx)
		return fmt.Errorf("failed to activate version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit activation: %w", err)
	}

	s.logger.Debug("template version activated",
		observability.String("template", versionKey(consumerID, subject, version)),
	)

	return nil
}

// Deactivate turns the given version off and promotes the highest
// remaining version inside the same transaction. The guards re-check
// under the pair lock, so concurrent lifecycle calls cannot race them.
func (s *postgresStore) Deactivate(ctx context.Context, consumerID, subject, version string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	versions, err := lockPair(ctx, tx, consumerID, subject)
	if err != nil {
		s.rollback(ctx, tx)
		return fmt.Errorf("failed to lock template pair: %w", err)
	}

	active, ok := versions[version]
	if !ok {
		s.rollback(ctx, tx)
		return util.NewNotFoundError("template", versionKey(consumerID, subject, version))
	}
	if !active {
		s.rollback(ctx, tx)
		return util.NewConflictError("template", versionKey(consumerID, subject, version),
			"version is not active")
	}
	if len(versions) == 1 {
		s.rollback(ctx, tx)
		return util.NewConflictError("template", versionKey(consumerID, subject, version),
			"cannot deactivate the only version")
	}

	all := make([]Template, 0, len(versions))
	for v := range versions {
		all = append(all, Template{Version: v})
	}
	successor, ok := successorVersion(all, version)
	if !ok {
		s.rollback(ctx, tx)
		return util.NewConflictError("template", versionKey(consumerID, subject, version),
			"cannot deactivate the only version")
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		UPDATE transformation_templates
		SET is_active = FALSE, updated_at = $4
		WHERE consumer_id = $1 AND subject = $2 AND version = $3`,
		consumerID, subject, version, now)
	if err != nil {
		s.rollback(ctx, tx)
		return fmt.Errorf("failed to deactivate version: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE transformation_templates
		SET is_active = TRUE, updated_at = $4
		WHERE consumer_id = $1 AND subject = $2 AND version = $3`,
		consumerID, subject, successor, now)
	if err != nil {
		s.rollback(ctx, tx)
		return fmt.Errorf("failed to promote successor version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit deactivation: %w", err)
	}

	s.logger.Debug("template version deactivated",
		observability.String("template", versionKey(consumerID, subject, version)),
		observability.String("promoted", versionKey(consumerID, subject, successor)),
	)

	return nil
}

// Delete removes the given version. The guards re-check under the pair
// lock so two concurrent deletes cannot both pass the only-version
// check.
func (s *postgresStore) Delete(ctx context.Context, consumerID, subject, version string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	versions, err := lockPair(ctx, tx, consumerID, subject)
	if err != nil {
		s.rollback(ctx, tx)
		return fmt.Errorf("failed to lock template pair: %w", err)
	}

	active, ok := versions[version]
	if !ok {
		s.rollback(ctx, tx)
		return util.NewNotFoundError("template", versionKey(consumerID, subject, version))
	}
	if active {
		s.rollback(ctx, tx)
		return util.NewConflictError("template", versionKey(consumerID, subject, version),
			"cannot delete the active version")
	}
	if len(versions) == 1 {
		s.rollback(ctx, tx)
		return util.NewConflictError("template", versionKey(consumerID, subject, version),
			"cannot delete the only version")
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM transformation_templates
		WHERE consumer_id = $1 AND subject = $2 AND version = $3`,
		consumerID, subject, version)
	if err != nil {
		s.rollback(ctx, tx)
		return fmt.Errorf("failed to delete template: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit deletion: %w", err)
	}

	return nil
}

// Close implements Store. The shared pool is owned by the caller, so
// closing the store does not close it.
func (s *postgresStore) Close() error {
	return nil
}

// rollback rolls the transaction back and logs a failure to do so.
func (s *postgresStore) rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		s.logger.Error("failed to roll back transaction", observability.Error(err))
	}
}

// lockPair reads the pair's versions under FOR UPDATE so the guards and
// the writes that follow see a stable snapshot.
func lockPair(ctx context.Context, tx pgx.Tx, consumerID, subject string) (map[string]bool, error) {
	rows, err := tx.Query(ctx, `
		SELECT version, is_active
		FROM transformation_templates
		WHERE consumer_id = $1 AND subject = $2
		FOR UPDATE`,
		consumerID, subject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := make(map[string]bool)
	for rows.Next() {
		var version string
		var active bool
		if err := rows.Scan(&version, &active); err != nil {
			return nil, err
		}
		versions[version] = active
	}
	return versions, rows.Err()
}

// scanTemplate scans one template row.
func scanTemplate(row pgx.Row) (Template, error) {
	var tmpl Template
	var engineTag string

	err := row.Scan(
		&tmpl.ConsumerID,
		&tmpl.Subject,
		&tmpl.Version,
		&engineTag,
		&tmpl.Expression,
		&tmpl.Configuration,
		&tmpl.InputSchemaID,
		&tmpl.OutputSchemaID,
		&tmpl.Active,
		&tmpl.Description,
		&tmpl.CreatedAt,
		&tmpl.UpdatedAt,
	)
	if err != nil {
		return Template{}, err
	}

	tmpl.Engine = engine.Type(engineTag)
	return tmpl, nil
}

var _ Store = (*postgresStore)(nil)
