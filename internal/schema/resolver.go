package schema

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/canonmorph/canonmorph/internal/observability"
	"github.com/canonmorph/canonmorph/internal/util"
)

// Resolver turns schema references into concrete records.
type Resolver struct {
	logger observability.Logger
	store  Store
}

// NewResolver creates a resolver over the given store.
func NewResolver(store Store, logger observability.Logger) *Resolver {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Resolver{logger: logger, store: store}
}

// ResolveCanonical resolves a reference to a canonical schema record.
// The reference must not carry a consumerId.
func (r *Resolver) ResolveCanonical(ctx context.Context, ref Reference) (Record, error) {
	if ref.ConsumerID != "" {
		return Record{}, util.NewValidationError(
			"canonical schema reference must not set consumerId")
	}
	return r.resolve(ctx, ref, TypeCanonical, "")
}

// ResolveConsumerOutput resolves a reference to a consumer-output schema
// record. The consumer comes from the reference itself or, when the
// reference leaves it empty, from the consumerID argument.
func (r *Resolver) ResolveConsumerOutput(ctx context.Context, ref Reference, consumerID string) (Record, error) {
	effective := ref.ConsumerID
	if effective == "" {
		effective = consumerID
	}
	if effective == "" {
		return Record{}, util.NewValidationError(
			"consumer-output schema reference requires consumerId")
	}
	if ref.ConsumerID != "" && consumerID != "" && ref.ConsumerID != consumerID {
		return Record{}, util.NewValidationError(fmt.Sprintf(
			"schema reference consumerId %q does not match consumer %q",
			ref.ConsumerID, consumerID))
	}
	return r.resolve(ctx, ref, TypeConsumerOutput, effective)
}

func (r *Resolver) resolve(ctx context.Context, ref Reference, schemaType Type, consumerID string) (Record, error) {
	if err := util.ValidateIdentifier(ref.Subject, "subject"); err != nil {
		return Record{}, util.NewValidationError(err.Error())
	}

	if ref.Version != "" {
		return r.store.Get(ctx, ref.Subject, schemaType, consumerID, ref.Version)
	}

	records, err := r.store.ListVersions(ctx, ref.Subject, schemaType, consumerID)
	if err != nil {
		return Record{}, err
	}

	latest, ok := latestByVersion(records)
	if !ok {
		key := recordKey(ref.Subject, schemaType, consumerID, "latest")
		return Record{}, util.NewNotFoundError("schema", key)
	}

	r.logger.Debug("schema reference resolved to latest version",
		observability.String("subject", ref.Subject),
		observability.String("type", string(schemaType)),
		observability.String("version", latest.Version))

	return latest, nil
}

// latestByVersion returns the record with the highest semantic version.
// Records with unparseable version strings are skipped.
func latestByVersion(records []Record) (Record, bool) {
	var (
		best        Record
		bestVersion *semver.Version
	)
	for _, record := range records {
		v, err := semver.NewVersion(record.Version)
		if err != nil {
			continue
		}
		if bestVersion == nil || v.GreaterThan(bestVersion) {
			best = record
			bestVersion = v
		}
	}
	return best, bestVersion != nil
}
