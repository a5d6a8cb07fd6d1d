package template

import (
	"context"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Store persists template versions and enforces the activation state
// machine. Multi-row transitions happen as one atomic unit per store
// implementation: a lock in memory, a transaction in postgres.
type Store interface {
	// Create persists a new version. The (consumer, subject, version)
	// coordinate must be free or a ConflictError is returned. When
	// activate is set, the pair's previous active version is
	// deactivated in the same atomic unit.
	Create(ctx context.Context, tmpl Template, activate bool) (Template, error)

	// GetVersion returns one version of a pair.
	GetVersion(ctx context.Context, consumerID, subject, version string) (Template, error)

	// GetActive returns the pair's active version.
	GetActive(ctx context.Context, consumerID, subject string) (Template, error)

	// ListVersions returns all versions of a pair in ascending semantic
	// version order.
	ListVersions(ctx context.Context, consumerID, subject string) ([]Template, error)

	// CountVersions returns the number of versions stored for a pair.
	CountVersions(ctx context.Context, consumerID, subject string) (int, error)

	// Activate makes the given version the pair's active one,
	// deactivating the previous active version atomically. Activating
	// the already active version is a no-op.
	Activate(ctx context.Context, consumerID, subject, version string) error

	// Deactivate turns the given version off and promotes the highest
	// remaining semantic version in the same atomic unit, so a pair
	// with versions always has an active one. It fails with a
	// ConflictError when the version is not active or is the pair's
	// only version.
	Deactivate(ctx context.Context, consumerID, subject, version string) error

	// Delete removes the given version. It fails with a ConflictError
	// when the version is active or is the pair's only version.
	Delete(ctx context.Context, consumerID, subject, version string) error

	// Close releases store resources.
	Close() error
}

// sortByVersion orders templates by ascending semantic version.
// Unparseable versions sort first by plain string comparison; they
// cannot be created through the Store but may exist in externally
// managed tables.
func sortByVersion(templates []Template) {
	sort.Slice(templates, func(i, j int) bool {
		vi, erri := semver.NewVersion(templates[i].Version)
		vj, errj := semver.NewVersion(templates[j].Version)
		if erri != nil || errj != nil {
			if (erri != nil) != (errj != nil) {
				return erri != nil
			}
			return templates[i].Version < templates[j].Version
		}
		return vi.LessThan(vj)
	})
}

// successorVersion picks the highest semantic version among the pair's
// templates excluding the one being deactivated. When no remaining
// version parses as semver (possible only in externally managed tables)
// the greatest by string comparison is promoted instead. The second
// return is false only when there is no other version at all.
func successorVersion(templates []Template, excluded string) (string, bool) {
	var best *semver.Version
	bestVersion := ""
	fallback := ""

	for _, tmpl := range templates {
		if tmpl.Version == excluded {
			continue
		}
		if fallback == "" || tmpl.Version > fallback {
			fallback = tmpl.Version
		}
		v, err := semver.NewVersion(tmpl.Version)
		if err != nil {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			bestVersion = tmpl.Version
		}
	}

	if best != nil {
		return bestVersion, true
	}
	return fallback, fallback != ""
}
