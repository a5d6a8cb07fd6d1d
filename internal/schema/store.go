package schema

import (
	"context"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Store persists schema records.
type Store interface {
	// Create validates and stores a new record, assigning its ID and
	// timestamps. A record with the same (subject, type, consumerId,
	// version) returns a ConflictError.
	Create(ctx context.Context, record Record) (Record, error)

	// GetByID returns the record with the given ID.
	GetByID(ctx context.Context, id string) (Record, error)

	// Get returns the record for the exact coordinate.
	Get(ctx context.Context, subject string, schemaType Type, consumerID, version string) (Record, error)

	// ListVersions returns all records for (subject, type, consumerId)
	// ordered by ascending semantic version.
	ListVersions(ctx context.Context, subject string, schemaType Type, consumerID string) ([]Record, error)

	// Delete removes the record with the given ID.
	Delete(ctx context.Context, id string) error

	// Close releases backend resources.
	Close() error
}

// recordKey builds the composite lookup key for a record coordinate.
// Identifiers cannot contain '|', so the join is unambiguous.
func recordKey(subject string, schemaType Type, consumerID, version string) string {
	return fmt.Sprintf("%s|%s|%s|%s", subject, schemaType, consumerID, version)
}

// sortByVersion orders records by ascending semantic version. Records
// with unparseable versions sort first by plain string comparison; they
// cannot be created through Store.Create but may exist in externally
// managed tables.
func sortByVersion(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		vi, erri := semver.NewVersion(records[i].Version)
		vj, errj := semver.NewVersion(records[j].Version)
		if erri != nil || errj != nil {
			if (erri == nil) != (errj == nil) {
				return erri != nil
			}
			return records[i].Version < records[j].Version
		}
		return vi.LessThan(vj)
	})
}
